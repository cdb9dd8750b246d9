package browser

import (
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/log"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uiprobe/api/schemas"
	"github.com/xkilldash9x/uiprobe/internal/recorder"
)

// listener translates CDP events of one target into recorder entries. It is
// registered once per browser context and is the recorder's only writer.
type listener struct {
	rec    *recorder.Recorder
	logger *zap.Logger
}

func newListener(rec *recorder.Recorder, logger *zap.Logger) *listener {
	return &listener{rec: rec, logger: logger.Named("events")}
}

// handle runs on chromedp's event goroutine and must not block.
func (l *listener) handle(ev interface{}) {
	switch e := ev.(type) {
	// -- Network Events --
	case *network.EventRequestWillBeSent:
		l.requestWillBeSent(e)
	case *network.EventLoadingFinished:
		l.rec.RequestFinished(string(e.RequestID))
	case *network.EventLoadingFailed:
		l.rec.RequestFinished(string(e.RequestID))

	// -- Console and Runtime Events --
	case *runtime.EventConsoleAPICalled:
		l.consoleAPICalled(e)
	case *log.EventEntryAdded:
		l.logEntryAdded(e)
	case *runtime.EventExceptionThrown:
		l.exceptionThrown(e)
	}
}

func (l *listener) requestWillBeSent(e *network.EventRequestWillBeSent) {
	if e.Request == nil {
		return
	}
	ts := time.Now()
	if e.WallTime != nil {
		ts = e.WallTime.Time()
	}
	l.rec.RequestStarted(string(e.RequestID), schemas.APICallRecord{
		URL:          e.Request.URL,
		Method:       e.Request.Method,
		ResourceType: string(e.Type),
		Timestamp:    ts,
	})
}

func (l *listener) consoleAPICalled(e *runtime.EventConsoleAPICalled) {
	var text strings.Builder
	for i, arg := range e.Args {
		if i > 0 {
			text.WriteString(" ")
		}
		text.WriteString(formatArg(arg))
	}
	l.rec.AddConsole(schemas.ConsoleLog{
		Type:      string(e.Type),
		Text:      text.String(),
		Source:    "console-api",
		Timestamp: eventTime(e.Timestamp),
	})
}

func (l *listener) logEntryAdded(e *log.EventEntryAdded) {
	if e.Entry == nil {
		return
	}
	l.rec.AddConsole(schemas.ConsoleLog{
		Type:      string(e.Entry.Level),
		Text:      e.Entry.Text,
		Source:    string(e.Entry.Source),
		Timestamp: eventTime(e.Entry.Timestamp),
	})
}

func (l *listener) exceptionThrown(e *runtime.EventExceptionThrown) {
	if e.ExceptionDetails == nil {
		return
	}
	// The exception description carries the message and stack.
	msg := e.ExceptionDetails.Text
	if e.ExceptionDetails.Exception != nil && e.ExceptionDetails.Exception.Description != "" {
		msg = e.ExceptionDetails.Exception.Description
	}
	l.logger.Debug("Uncaught exception in page.", zap.String("message", firstLine(msg)))
	l.rec.AddPageError(schemas.PageError{Message: msg, Timestamp: eventTime(e.Timestamp)})
}

// formatArg renders a console argument the way DevTools prints it.
func formatArg(arg *runtime.RemoteObject) string {
	if arg == nil {
		return ""
	}
	var val interface{}
	if arg.Value != nil && json.Unmarshal(arg.Value, &val) == nil {
		if s, ok := val.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", val)
	}
	if arg.Description != "" {
		return arg.Description
	}
	if arg.UnserializableValue != "" {
		return string(arg.UnserializableValue)
	}
	return fmt.Sprintf("[%s]", arg.Type)
}

func eventTime(ts *runtime.Timestamp) time.Time {
	if ts == nil {
		return time.Now()
	}
	return ts.Time()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
