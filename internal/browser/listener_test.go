package browser

import (
	"testing"

	"github.com/chromedp/cdproto/log"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/uiprobe/internal/recorder"
)

func newTestListener(t *testing.T) (*listener, *recorder.Recorder) {
	t.Helper()
	rec := recorder.New(zaptest.NewLogger(t))
	return newListener(rec, zaptest.NewLogger(t)), rec
}

func TestListener_Console(t *testing.T) {
	l, rec := newTestListener(t)

	l.handle(&runtime.EventConsoleAPICalled{
		Type: runtime.APITypeWarning,
		Args: []*runtime.RemoteObject{
			{Type: runtime.TypeString, Value: []byte(`"token"`)},
			{Type: runtime.TypeNumber, Value: []byte(`42`)},
			{Type: runtime.TypeObject, Description: "Object"},
			{Type: runtime.TypeUndefined},
		},
	})
	l.handle(&log.EventEntryAdded{Entry: &log.Entry{
		Level:  log.LevelError,
		Source: log.SourceNetwork,
		Text:   "Failed to load resource: 401",
	}})
	l.handle(&log.EventEntryAdded{})

	logs := rec.ConsoleLogs()
	require.Len(t, logs, 2)
	assert.Equal(t, "warning", logs[0].Type)
	assert.Equal(t, "token 42 Object [undefined]", logs[0].Text)
	assert.Equal(t, "console-api", logs[0].Source)
	assert.False(t, logs[0].Timestamp.IsZero())
	assert.Equal(t, "error", logs[1].Type)
	assert.Equal(t, "network", logs[1].Source)
}

func TestListener_Exceptions(t *testing.T) {
	l, rec := newTestListener(t)

	l.handle(&runtime.EventExceptionThrown{ExceptionDetails: &runtime.ExceptionDetails{
		Text:      "Uncaught",
		Exception: &runtime.RemoteObject{Description: "TypeError: badges is undefined\n    at render (app.js:10)"},
	}})
	l.handle(&runtime.EventExceptionThrown{ExceptionDetails: &runtime.ExceptionDetails{Text: "Uncaught SyntaxError"}})
	l.handle(&runtime.EventExceptionThrown{})

	errs := rec.PageErrors()
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Message, "TypeError: badges is undefined")
	assert.Equal(t, "Uncaught SyntaxError", errs[1].Message)
	assert.Empty(t, rec.ConsoleLogs(), "exceptions are page errors, not console lines")
}

func TestListener_Requests(t *testing.T) {
	l, rec := newTestListener(t)

	l.handle(&network.EventRequestWillBeSent{
		RequestID: "1",
		Type:      network.ResourceTypeFetch,
		Request:   &network.Request{URL: "http://app.test/api/Certification/7", Method: "GET"},
	})
	l.handle(&network.EventRequestWillBeSent{
		RequestID: "2",
		Type:      network.ResourceTypeScript,
		Request:   &network.Request{URL: "http://app.test/static/app.js", Method: "GET"},
	})
	l.handle(&network.EventRequestWillBeSent{RequestID: "3"})
	assert.Equal(t, 2, rec.Inflight())

	l.handle(&network.EventLoadingFinished{RequestID: "1"})
	l.handle(&network.EventLoadingFailed{RequestID: "2"})
	assert.Zero(t, rec.Inflight())

	calls := rec.APICalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "Fetch", calls[0].ResourceType)
	assert.Equal(t, 1, rec.CountAPICalls("/api/certification"))
}

func TestFormatArg(t *testing.T) {
	assert.Equal(t, "", formatArg(nil))
	assert.Equal(t, "NaN", formatArg(&runtime.RemoteObject{Type: runtime.TypeNumber, UnserializableValue: "NaN"}))
	assert.Equal(t, "true", formatArg(&runtime.RemoteObject{Type: runtime.TypeBoolean, Value: []byte(`true`)}))
}
