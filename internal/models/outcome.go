package models

// Status classifies an orchestrator outcome for the transport layer
type Status string

const (
	StatusOK             Status = "ok"
	StatusClientError    Status = "client_error"
	StatusTransientError Status = "transient_error"
	StatusConfigError    Status = "config_error"
)

// Outcome is what every pipeline returns: a text response plus its classification
type Outcome struct {
	Text   string `json:"generated_text"`
	Status Status `json:"status"`
}

// OK reports whether the outcome carries a generated answer
func (o Outcome) OK() bool {
	return o.Status == StatusOK
}
