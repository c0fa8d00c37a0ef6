package models

// ModelInfo is one routable entry in a model listing. ID is always the
// fully-qualified identifier string (e.g. "client:7:llama3.1" or
// "openai:gpt-4o-mini"), so every listed model can be copied and targeted
// directly by a chat request.
type ModelInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Provider    string `json:"provider"`
	NodeID      int64  `json:"node_id,omitempty"`
	NodeName    string `json:"node_name,omitempty"`
	LatencyMs   int64  `json:"latency_ms,omitempty"`
	SizeBytes   int64  `json:"size_bytes,omitempty"`
	IsDefault   bool   `json:"is_default,omitempty"`
}
