package schemas

import (
	"fmt"
	"strings"
)

// -- Common Schemas --

// Status is the classification result of a scenario.
type Status string

const (
	StatusPending Status = "pending"
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusWarning Status = "warning"
	StatusSkip    Status = "skip"
	StatusError   Status = "error"
)

// AllStatuses lists every status in the order summaries present them.
var AllStatuses = []Status{StatusPass, StatusFail, StatusWarning, StatusSkip, StatusError, StatusPending}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseStatus converts a case-insensitive string into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return s, nil
}

// Credential holds a login identity.
type Credential struct {
	Email    string `json:"email" mapstructure:"email" yaml:"email"`
	Password string `json:"-" mapstructure:"password" yaml:"password"`
}

// IsZero reports whether neither field is set.
func (c Credential) IsZero() bool {
	return c.Email == "" && c.Password == ""
}

// Viewport is a named browser window size used by responsiveness sweeps.
type Viewport struct {
	Width  int    `json:"width" mapstructure:"width" yaml:"width"`
	Height int    `json:"height" mapstructure:"height" yaml:"height"`
	Label  string `json:"label" mapstructure:"label" yaml:"label"`
}

func (v Viewport) String() string {
	return fmt.Sprintf("%s (%dx%d)", v.Label, v.Width, v.Height)
}

// WaitPolicy controls how long a navigation blocks.
type WaitPolicy int

const (
	// WaitLoad blocks until the load event fires.
	WaitLoad WaitPolicy = iota
	// WaitDOMContentLoaded returns once the document has been parsed.
	WaitDOMContentLoaded
	// WaitNetworkIdle waits for the load event and then for network quiescence.
	WaitNetworkIdle
)

func (w WaitPolicy) String() string {
	switch w {
	case WaitDOMContentLoaded:
		return "domcontentloaded"
	case WaitNetworkIdle:
		return "networkidle"
	default:
		return "load"
	}
}

// ElementHandle identifies a DOM node resolved on a live page. It is only
// meaningful until the next navigation.
type ElementHandle struct {
	NodeID   int64  `json:"node_id"`
	Selector string `json:"selector"`
	Index    int    `json:"index"`
}
