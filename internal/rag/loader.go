package rag

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/unidoc/unioffice/document"
	"github.com/unidoc/unioffice/spreadsheet"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// Loader 文件加载器接口：把原始字节解析为有序的文本单元
type Loader interface {
	Supports(filename string) bool
	Load(data []byte, filename string) ([]Document, error)
}

// PDFLoader PDF加载器，每页一个文本单元
type PDFLoader struct{}

func (l *PDFLoader) Supports(filename string) bool {
	return strings.ToLower(filepath.Ext(filename)) == ".pdf"
}

func (l *PDFLoader) Load(data []byte, filename string) ([]Document, error) {
	pdfReader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("解析PDF失败: %w", err)
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return nil, fmt.Errorf("获取PDF页数失败: %w", err)
	}

	var docs []Document
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			return nil, fmt.Errorf("读取PDF第%d页失败: %w", i, err)
		}

		ex, err := extractor.New(page)
		if err != nil {
			return nil, fmt.Errorf("创建PDF提取器失败: %w", err)
		}

		text, err := ex.ExtractText()
		if err != nil {
			return nil, fmt.Errorf("提取PDF第%d页文本失败: %w", i, err)
		}

		pageNum := i
		docs = append(docs, Document{
			PageContent: text,
			Metadata:    Metadata{Source: filename, Page: &pageNum},
		})
	}

	return docs, nil
}

// WordLoader Word文档加载器，整篇作为一个文本单元
type WordLoader struct{}

func (l *WordLoader) Supports(filename string) bool {
	return strings.ToLower(filepath.Ext(filename)) == ".docx"
}

func (l *WordLoader) Load(data []byte, filename string) ([]Document, error) {
	doc, err := document.Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("解析Word文档失败: %w", err)
	}
	defer doc.Close()

	var textBuilder strings.Builder
	for _, para := range doc.Paragraphs() {
		for _, run := range para.Runs() {
			textBuilder.WriteString(run.Text())
		}
		textBuilder.WriteString("\n")
	}

	text := strings.TrimSpace(textBuilder.String())
	if text == "" {
		return nil, nil
	}

	return []Document{{
		PageContent: text,
		Metadata:    Metadata{Source: filename},
	}}, nil
}

// ExcelLoader Excel加载器，首行为表头，之后每行一个文本单元
type ExcelLoader struct{}

func (l *ExcelLoader) Supports(filename string) bool {
	return strings.ToLower(filepath.Ext(filename)) == ".xlsx"
}

func (l *ExcelLoader) Load(data []byte, filename string) ([]Document, error) {
	ss, err := spreadsheet.Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("解析Excel文档失败: %w", err)
	}
	defer ss.Close()

	sheets := ss.Sheets()
	if len(sheets) == 0 {
		return nil, nil
	}

	// 只取第一个工作表，与原始表格导入行为一致
	var records [][]string
	for _, row := range sheets[0].Rows() {
		var cells []string
		for _, cell := range row.Cells() {
			cells = append(cells, cell.GetString())
		}
		records = append(records, cells)
	}

	return rowsToDocuments(records, filename), nil
}

// CSVLoader CSV加载器，首行为表头，之后每行一个文本单元
type CSVLoader struct{}

func (l *CSVLoader) Supports(filename string) bool {
	return strings.ToLower(filepath.Ext(filename)) == ".csv"
}

func (l *CSVLoader) Load(data []byte, filename string) ([]Document, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1 // 行宽不齐不视为错误

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("解析CSV失败: %w", err)
	}

	return rowsToDocuments(records, filename), nil
}

// rowsToDocuments 把表格行转换为"列名: 值"形式的文本单元，空单元格跳过
func rowsToDocuments(records [][]string, filename string) []Document {
	if len(records) < 2 {
		return nil
	}

	headers := records[0]
	var docs []Document
	for i, record := range records[1:] {
		var lines []string
		for j, value := range record {
			if j >= len(headers) {
				break
			}
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			lines = append(lines, fmt.Sprintf("%s: %s", headers[j], value))
		}
		if len(lines) == 0 {
			continue
		}

		rowIndex := i
		docs = append(docs, Document{
			PageContent: strings.Join(lines, "\n"),
			Metadata:    Metadata{Source: filename, Row: &rowIndex},
		})
	}

	return docs
}

// LoaderManager 按扩展名分发到对应加载器
type LoaderManager struct {
	loaders []Loader
}

// NewLoaderManager 创建加载器管理器
func NewLoaderManager() *LoaderManager {
	return &LoaderManager{
		loaders: []Loader{
			&PDFLoader{},
			&WordLoader{},
			&ExcelLoader{},
			&CSVLoader{},
		},
	}
}

// Supports 是否存在能处理该文件的加载器
func (m *LoaderManager) Supports(filename string) bool {
	for _, loader := range m.loaders {
		if loader.Supports(filename) {
			return true
		}
	}
	return false
}

// Load 解析文件。不支持的扩展名在API层已经拦截，这里再兜底一次。
func (m *LoaderManager) Load(data []byte, filename string) ([]Document, error) {
	for _, loader := range m.loaders {
		if loader.Supports(filename) {
			return loader.Load(data, filename)
		}
	}
	return nil, fmt.Errorf("不支持的文件格式: %s", filename)
}
