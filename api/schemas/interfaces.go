package schemas

import (
	"context"
	"time"
)

// -- Browser Capability Interfaces --

// Page is the capability set a probe uses to drive a single browser tab.
// Every method blocks until the browser answers or ctx expires.
type Page interface {
	// Navigate loads url and blocks according to the wait policy.
	Navigate(ctx context.Context, url string, wait WaitPolicy) error
	// Reload reloads the current document.
	Reload(ctx context.Context, wait WaitPolicy) error
	// CurrentURL returns the location of the top-level frame.
	CurrentURL(ctx context.Context) (string, error)
	// Locate returns every element matching selector, or an empty slice.
	Locate(ctx context.Context, selector string) ([]ElementHandle, error)
	// Fill replaces the value of an input element by typing text into it.
	Fill(ctx context.Context, el ElementHandle, text string) error
	// Click clicks the element.
	Click(ctx context.Context, el ElementHandle) error
	// Evaluate runs a script in the page and decodes its result into res (may be nil).
	Evaluate(ctx context.Context, script string, res interface{}) error
	// CountVisible counts elements matching selector that currently render with a non-empty box.
	CountVisible(ctx context.Context, selector string) (int, error)
	// SetViewport resizes the emulated viewport.
	SetViewport(ctx context.Context, width, height int) error
	// CaptureScreenshot returns a PNG of the viewport or the full page.
	CaptureScreenshot(ctx context.Context, fullPage bool) ([]byte, error)
	// ReadLocalStorageItem returns the stored value and whether the key exists.
	ReadLocalStorageItem(ctx context.Context, key string) (string, bool, error)
	// WriteLocalStorageItem stores value under key for the current origin.
	WriteLocalStorageItem(ctx context.Context, key, value string) error
}

// EventLog is the read-only view of the console and network events captured
// for one browser context since it was created.
type EventLog interface {
	ConsoleLogs() []ConsoleLog
	PageErrors() []PageError
	APICalls() []APICallRecord
	// CountAPICalls counts recorded requests whose URL contains pattern, case-insensitively.
	CountAPICalls(pattern string) int
	// WaitNetworkIdle blocks until no request has been in flight for
	// quietPeriod, giving up after timeout.
	WaitNetworkIdle(ctx context.Context, quietPeriod, timeout time.Duration) error
}

// Session is one isolated browser context with its page and event log.
type Session interface {
	ID() string
	Page() Page
	Events() EventLog
	Close(ctx context.Context) error
}

// SessionProvider creates isolated browser sessions.
type SessionProvider interface {
	NewSession(ctx context.Context) (Session, error)
}
