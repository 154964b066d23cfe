package model

// EsMetadataDocument 是写入 Elasticsearch 元数据索引的文档，ID 为 document_id。
type EsMetadataDocument struct {
	DocumentID   string   `json:"document_id"`
	UserID       string   `json:"user_id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	DocumentType string   `json:"document_type"`
	Jurisdiction string   `json:"jurisdiction"`
	Language     string   `json:"language"`
	Source       string   `json:"source"`
	Categories   []string `json:"categories"`
	Keywords     []string `json:"keywords"`
	LegalDomains []string `json:"legal_domains"`
	Embedded     bool     `json:"embedded"`
}

// KeywordHit 是关键词检索返回给前端的一条结果。
type KeywordHit struct {
	DocumentID   string   `json:"documentId"`
	Title        string   `json:"title"`
	DocumentType string   `json:"documentType"`
	Keywords     []string `json:"keywords"`
	Score        float64  `json:"score"`
}
