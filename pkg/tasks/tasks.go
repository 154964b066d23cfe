// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// EmbeddingTask asks the background consumer to embed one document.
type EmbeddingTask struct {
	DocumentID   string `json:"document_id"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap *int   `json:"chunk_overlap,omitempty"`
	RequestedBy  string `json:"requested_by,omitempty"`
}
