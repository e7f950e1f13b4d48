package events

import "time"

// GenerationDispatchPayload is sent by the document manager to Kafka for the document worker
type GenerationDispatchPayload struct {
	DispatchID   string    `json:"dispatch_id"`
	DocumentID   uint      `json:"document_id"`
	ScheduleName string    `json:"schedule_name"`
	DispatchedAt time.Time `json:"dispatched_at"`
}

// GenerationResultPayload is received by the document manager from Kafka (sent by the document worker)
type GenerationResultPayload struct {
	DispatchID   string `json:"dispatch_id"`
	DocumentID   uint   `json:"document_id"`
	ScheduleName string `json:"schedule_name"`
	Status       string `json:"status"`
	FilePath     string `json:"file_path,omitempty"`
	Error        string `json:"error,omitempty"`
}
