// Package recorder holds the console and network history of one browser context.
//
// A Recorder is created when the context starts and discarded with it. Event
// handlers are its only writers; probes read it through schemas.EventLog and
// filter by snapshot when they need a time window.
package recorder

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uiprobe/api/schemas"
	"github.com/xkilldash9x/uiprobe/internal/wait"
)

// Recorder is safe for concurrent use.
type Recorder struct {
	logger *zap.Logger

	mu         sync.RWMutex
	console    []schemas.ConsoleLog
	pageErrors []schemas.PageError
	calls      []schemas.APICallRecord
	inflight   map[string]struct{}
}

var _ schemas.EventLog = (*Recorder)(nil)

// New returns an empty recorder.
func New(logger *zap.Logger) *Recorder {
	return &Recorder{
		logger:   logger.Named("recorder"),
		inflight: make(map[string]struct{}),
	}
}

// -- Writers (event handlers only) --

func (r *Recorder) AddConsole(entry schemas.ConsoleLog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.console = append(r.console, entry)
}

func (r *Recorder) AddPageError(pe schemas.PageError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pageErrors = append(r.pageErrors, pe)
}

// RequestStarted appends call to the request log and marks id in flight.
// Redirect hops reuse their request id and are recorded once per hop.
func (r *Recorder) RequestStarted(id string, call schemas.APICallRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
	r.inflight[id] = struct{}{}
}

// RequestFinished clears id from the in-flight set, whether it succeeded or failed.
func (r *Recorder) RequestFinished(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inflight, id)
}

// -- Readers --

func (r *Recorder) ConsoleLogs() []schemas.ConsoleLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]schemas.ConsoleLog, len(r.console))
	copy(out, r.console)
	return out
}

func (r *Recorder) PageErrors() []schemas.PageError {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]schemas.PageError, len(r.pageErrors))
	copy(out, r.pageErrors)
	return out
}

func (r *Recorder) APICalls() []schemas.APICallRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]schemas.APICallRecord, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *Recorder) CountAPICalls(pattern string) int {
	needle := strings.ToLower(pattern)
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, c := range r.calls {
		if strings.Contains(strings.ToLower(c.URL), needle) {
			n++
		}
	}
	return n
}

// Inflight returns the number of requests that have started but not finished.
func (r *Recorder) Inflight() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.inflight)
}

func (r *Recorder) WaitNetworkIdle(ctx context.Context, quietPeriod, timeout time.Duration) error {
	err := wait.Quiet(ctx, timeout, quietPeriod, r.Inflight)
	if err != nil {
		r.logger.Debug("Network did not settle.", zap.Int("inflight_requests", r.Inflight()), zap.Error(err))
	}
	return err
}

// ConsoleTail formats the last n console entries as "[type] text".
func ConsoleTail(log schemas.EventLog, n int) []string {
	entries := log.ConsoleLogs()
	if n >= 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, fmt.Sprintf("[%s] %s", e.Type, e.Text))
	}
	return out
}

// CountConsoleMentions counts console entries whose text contains word, case-insensitively.
func CountConsoleMentions(log schemas.EventLog, word string) int {
	needle := strings.ToLower(word)
	n := 0
	for _, e := range log.ConsoleLogs() {
		if strings.Contains(strings.ToLower(e.Text), needle) {
			n++
		}
	}
	return n
}
