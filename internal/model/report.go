package model

import "time"

// BlastResult is the outcome of one row's send.
type BlastResult struct {
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// BlastReport aggregates a full blast run. Results preserve input row
// order and Total == Sent + Failed == len(Results).
type BlastReport struct {
	ID           string        `json:"id"`
	Mode         Mode          `json:"mode"`
	TemplateName string        `json:"templateName,omitempty"`
	Total        int           `json:"total"`
	Sent         int           `json:"sent"`
	Failed       int           `json:"failed"`
	Results      []BlastResult `json:"results"`
	CreatedAt    time.Time     `json:"createdAt"`
}
