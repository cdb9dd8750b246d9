package schemas

import "time"

// -- Browser Event Schemas --

// ConsoleLog is a single console message captured from the page.
type ConsoleLog struct {
	Type      string    `json:"type"`
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// PageError is an uncaught exception raised inside the page.
type PageError struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// APICallRecord is a network request observed while a context was alive.
type APICallRecord struct {
	URL          string    `json:"url"`
	Method       string    `json:"method"`
	ResourceType string    `json:"resource_type,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}
