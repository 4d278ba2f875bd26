package rag

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unidoc/unioffice/spreadsheet"
)

func TestCSVLoaderSingleRow(t *testing.T) {
	loader := &CSVLoader{}

	docs, err := loader.Load([]byte("name,age\nAlice,30\n"), "people.csv")
	require.NoError(t, err)
	require.Len(t, docs, 1)

	assert.Contains(t, docs[0].PageContent, "name: Alice")
	assert.Contains(t, docs[0].PageContent, "age: 30")
	assert.Equal(t, "people.csv", docs[0].Metadata.Source)
	require.NotNil(t, docs[0].Metadata.Row)
	assert.Equal(t, 0, *docs[0].Metadata.Row)
}

func TestCSVLoaderHeaderOnly(t *testing.T) {
	loader := &CSVLoader{}

	// 只有表头没有数据行，不产出文本单元
	docs, err := loader.Load([]byte("name,age\n"), "empty.csv")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestCSVLoaderSkipsEmptyCells(t *testing.T) {
	loader := &CSVLoader{}

	docs, err := loader.Load([]byte("name,age,city\nBob,,Paris\n"), "people.csv")
	require.NoError(t, err)
	require.Len(t, docs, 1)

	assert.Contains(t, docs[0].PageContent, "name: Bob")
	assert.Contains(t, docs[0].PageContent, "city: Paris")
	assert.NotContains(t, docs[0].PageContent, "age:")
}

func TestCSVLoaderRaggedRows(t *testing.T) {
	loader := &CSVLoader{}

	// 行宽不齐：短行照常处理，超出表头的列被丢弃
	docs, err := loader.Load([]byte("a,b\n1\n2,3,4\n"), "ragged.csv")
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "a: 1", docs[0].PageContent)
	assert.Equal(t, "a: 2\nb: 3", docs[1].PageContent)
}

func TestCSVLoaderRowMetadataIndices(t *testing.T) {
	loader := &CSVLoader{}

	docs, err := loader.Load([]byte("name\nAlice\nBob\nCarol\n"), "names.csv")
	require.NoError(t, err)
	require.Len(t, docs, 3)

	for i, doc := range docs {
		require.NotNil(t, doc.Metadata.Row)
		assert.Equal(t, i, *doc.Metadata.Row)
		assert.Nil(t, doc.Metadata.Page)
	}
}

func TestExcelLoaderFirstSheet(t *testing.T) {
	ss := spreadsheet.New()
	sheet := ss.AddSheet()

	header := sheet.AddRow()
	header.AddCell().SetString("name")
	header.AddCell().SetString("age")

	row := sheet.AddRow()
	row.AddCell().SetString("Alice")
	row.AddCell().SetString("30")

	var buf bytes.Buffer
	require.NoError(t, ss.Save(&buf))

	loader := &ExcelLoader{}
	docs, err := loader.Load(buf.Bytes(), "people.xlsx")
	require.NoError(t, err)
	require.Len(t, docs, 1)

	assert.Contains(t, docs[0].PageContent, "name: Alice")
	assert.Contains(t, docs[0].PageContent, "age: 30")
	require.NotNil(t, docs[0].Metadata.Row)
	assert.Equal(t, 0, *docs[0].Metadata.Row)
}

func TestLoaderManagerDispatch(t *testing.T) {
	manager := NewLoaderManager()

	assert.True(t, manager.Supports("report.pdf"))
	assert.True(t, manager.Supports("REPORT.PDF"))
	assert.True(t, manager.Supports("notes.docx"))
	assert.True(t, manager.Supports("table.xlsx"))
	assert.True(t, manager.Supports("data.csv"))
	assert.False(t, manager.Supports("image.png"))
	assert.False(t, manager.Supports("archive"))
}

func TestLoaderManagerUnsupportedFormat(t *testing.T) {
	manager := NewLoaderManager()

	docs, err := manager.Load([]byte("binary"), "image.png")
	assert.Error(t, err)
	assert.Nil(t, docs)
}

func TestPDFLoaderInvalidBytes(t *testing.T) {
	loader := &PDFLoader{}

	docs, err := loader.Load([]byte("not a pdf"), "broken.pdf")
	assert.Error(t, err)
	assert.Nil(t, docs)
}

func TestWordLoaderInvalidBytes(t *testing.T) {
	loader := &WordLoader{}

	docs, err := loader.Load([]byte("not a docx"), "broken.docx")
	assert.Error(t, err)
	assert.Nil(t, docs)
}
