package rag

// Metadata 分块来源信息。字段固定，避免无类型字典在管线中传播。
// SessionID是向量分区键：写入、检索、删除都必须带上它，否则会话之间会互相泄漏。
type Metadata struct {
	Source    string
	Page      *int
	Row       *int
	SessionID string
}

// Document 一段带元数据的文本单元，加载、分块、向量化阶段共用
type Document struct {
	PageContent string
	Metadata    Metadata
}

// ToMap 转换为向量存储使用的扁平元数据
func (m Metadata) ToMap() map[string]interface{} {
	out := make(map[string]interface{})
	if m.Source != "" {
		out["source"] = m.Source
	}
	if m.Page != nil {
		out["page"] = float64(*m.Page)
	}
	if m.Row != nil {
		out["row"] = float64(*m.Row)
	}
	if m.SessionID != "" {
		out["session_id"] = m.SessionID
	}
	return out
}

// MetadataFromMap 从扁平元数据还原固定结构
func MetadataFromMap(in map[string]interface{}) Metadata {
	var m Metadata
	if v, ok := in["source"].(string); ok {
		m.Source = v
	}
	if v, ok := in["page"].(float64); ok {
		page := int(v)
		m.Page = &page
	}
	if v, ok := in["row"].(float64); ok {
		row := int(v)
		m.Row = &row
	}
	if v, ok := in["session_id"].(string); ok {
		m.SessionID = v
	}
	return m
}
