package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/log"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uiprobe/api/schemas"
	"github.com/xkilldash9x/uiprobe/internal/config"
	"github.com/xkilldash9x/uiprobe/internal/recorder"
	"github.com/xkilldash9x/uiprobe/internal/selector"
	"github.com/xkilldash9x/uiprobe/internal/wait"
)

const (
	defaultActionTimeout = 15 * time.Second
	networkQuietPeriod   = 500 * time.Millisecond
)

// Session is one isolated browser context holding a single page. Calls on a
// session are serialized.
type Session struct {
	id      string
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *zap.Logger
	cfg     config.BrowserConfig
	timeout time.Duration

	rec      *recorder.Recorder
	listener *listener

	// op serializes page interactions.
	op sync.Mutex

	onClose   func()
	closeOnce sync.Once
}

var (
	_ schemas.Session = (*Session)(nil)
	_ schemas.Page    = (*Session)(nil)
)

func newSession(browserCtx context.Context, cfg config.BrowserConfig, logger *zap.Logger) *Session {
	id := uuid.NewString()
	l := logger.With(zap.String("session_id", id[:8]))
	ctx, cancel := chromedp.NewContext(browserCtx, chromedp.WithNewBrowserContext())

	timeout := cfg.ActionTimeout
	if timeout <= 0 {
		timeout = defaultActionTimeout
	}
	rec := recorder.New(l)
	return &Session{
		id:       id,
		ctx:      ctx,
		cancel:   cancel,
		logger:   l,
		cfg:      cfg,
		timeout:  timeout,
		rec:      rec,
		listener: newListener(rec, l),
	}
}

// initialize creates the target, subscribes to events and applies the
// starting viewport.
func (s *Session) initialize(ctx context.Context) error {
	// Listeners must be in place before the first navigation.
	chromedp.ListenTarget(s.ctx, s.listener.handle)

	actions := []chromedp.Action{
		network.Enable(),
		runtime.Enable(),
		log.Enable(),
		page.Enable(),
	}
	if s.cfg.DisableCache {
		actions = append(actions, network.SetCacheDisabled(true))
	}
	if s.cfg.Viewport.Width > 0 && s.cfg.Viewport.Height > 0 {
		actions = append(actions, chromedp.EmulateViewport(int64(s.cfg.Viewport.Width), int64(s.cfg.Viewport.Height)))
	}
	if err := runBounded(ctx, s.ctx, s.timeout, actions...); err != nil {
		return err
	}
	s.logger.Debug("Browser session initialized.")
	return nil
}

func (s *Session) ID() string                   { return s.id }
func (s *Session) Page() schemas.Page           { return s }
func (s *Session) Events() schemas.EventLog     { return s.rec }
func (s *Session) Recorder() *recorder.Recorder { return s.rec }

// Close disposes the browser context. It is safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		s.logger.Debug("Closing browser session.")
		done := make(chan error, 1)
		go func() { done <- chromedp.Cancel(s.ctx) }()
		select {
		case err = <-done:
		case <-ctx.Done():
			s.cancel()
			err = ctx.Err()
		}
		s.cancel()
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		if s.onClose != nil {
			s.onClose()
		}
	})
	return err
}

// run executes actions under both the session lifetime and the caller's
// context, bounded by the action timeout.
func (s *Session) run(ctx context.Context, what string, actions ...chromedp.Action) error {
	s.op.Lock()
	defer s.op.Unlock()

	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	runCtx, cancelTimeout := context.WithTimeout(runCtx, s.timeout)
	defer cancelTimeout()

	err := chromedp.Run(runCtx, actions...)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%s: browser action timed out after %s", what, s.timeout)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}

// -- Navigation --

func (s *Session) Navigate(ctx context.Context, url string, policy schemas.WaitPolicy) error {
	s.logger.Debug("Navigating.", zap.String("url", url), zap.Stringer("wait", policy))
	if policy == schemas.WaitDOMContentLoaded {
		target, err := json.MarshalToString(url)
		if err != nil {
			return err
		}
		return s.run(ctx, "navigating to "+url, s.withoutLoad(
			chromedp.Evaluate(fmt.Sprintf("window.location.assign(%s)", target), nil)))
	}
	if err := s.run(ctx, "navigating to "+url, chromedp.Navigate(url)); err != nil {
		return err
	}
	return s.afterLoad(ctx, policy)
}

func (s *Session) Reload(ctx context.Context, policy schemas.WaitPolicy) error {
	if policy == schemas.WaitDOMContentLoaded {
		return s.run(ctx, "reloading", s.withoutLoad(page.Reload()))
	}
	if err := s.run(ctx, "reloading", chromedp.Reload()); err != nil {
		return err
	}
	return s.afterLoad(ctx, policy)
}

// withoutLoad starts a navigation and returns once the new document has been
// parsed. A marker on the old window tells the two documents apart.
func (s *Session) withoutLoad(start chromedp.Action) chromedp.Action {
	const marker = "__uiprobe_previous_document"
	var parsed bool
	return chromedp.Tasks{
		chromedp.Evaluate(fmt.Sprintf("window.%s = true", marker), nil),
		start,
		chromedp.Poll(fmt.Sprintf("window.%s === undefined && document.readyState !== 'loading'", marker), &parsed,
			chromedp.WithPollingInterval(50*time.Millisecond)),
	}
}

func (s *Session) afterLoad(ctx context.Context, policy schemas.WaitPolicy) error {
	if policy != schemas.WaitNetworkIdle {
		return nil
	}
	err := s.rec.WaitNetworkIdle(ctx, networkQuietPeriod, s.timeout)
	if errors.Is(err, wait.ErrTimeout) {
		// Long-polling pages never go idle; the load event already fired.
		s.logger.Debug("Network did not go idle after load.", zap.Duration("timeout", s.timeout))
		return nil
	}
	return err
}

func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var u string
	err := s.run(ctx, "reading location", chromedp.Location(&u))
	return u, err
}

// -- Elements --

func (s *Session) Locate(ctx context.Context, expr string) ([]schemas.ElementHandle, error) {
	query, by := expr, chromedp.ByQueryAll
	if xp, ok := trimXPath(expr); ok {
		query, by = xp, chromedp.BySearch
	}
	var nodes []*cdp.Node
	if err := s.run(ctx, "locating "+expr, chromedp.Nodes(query, &nodes, by, chromedp.AtLeast(0))); err != nil {
		return nil, err
	}
	handles := make([]schemas.ElementHandle, len(nodes))
	for i, n := range nodes {
		handles[i] = schemas.ElementHandle{NodeID: int64(n.NodeID), Selector: expr, Index: i}
	}
	return handles, nil
}

func (s *Session) Fill(ctx context.Context, el schemas.ElementHandle, text string) error {
	ids := []cdp.NodeID{cdp.NodeID(el.NodeID)}
	return s.run(ctx, "filling "+el.Selector,
		chromedp.SetValue(ids, "", chromedp.ByNodeID),
		chromedp.SendKeys(ids, text, chromedp.ByNodeID),
	)
}

func (s *Session) Click(ctx context.Context, el schemas.ElementHandle) error {
	ids := []cdp.NodeID{cdp.NodeID(el.NodeID)}
	return s.run(ctx, "clicking "+el.Selector, chromedp.Click(ids, chromedp.ByNodeID))
}

func (s *Session) Evaluate(ctx context.Context, script string, res interface{}) error {
	return s.run(ctx, "evaluating script", chromedp.Evaluate(script, res))
}

func (s *Session) CountVisible(ctx context.Context, expr string) (int, error) {
	script, err := countVisibleScript(expr)
	if err != nil {
		return 0, err
	}
	var n int
	err = s.run(ctx, "counting visible "+expr, chromedp.Evaluate(script, &n))
	return n, err
}

// -- Viewport and screenshots --

func (s *Session) SetViewport(ctx context.Context, width, height int) error {
	return s.run(ctx, fmt.Sprintf("resizing to %dx%d", width, height),
		chromedp.EmulateViewport(int64(width), int64(height)))
}

func (s *Session) CaptureScreenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	var buf []byte
	action := chromedp.CaptureScreenshot(&buf)
	if fullPage {
		// Quality 100 keeps the output PNG.
		action = chromedp.FullScreenshot(&buf, 100)
	}
	err := s.run(ctx, "capturing screenshot", action)
	return buf, err
}

// -- Storage --

type storageItem struct {
	Present bool   `json:"present"`
	Value   string `json:"value"`
}

func (s *Session) ReadLocalStorageItem(ctx context.Context, key string) (string, bool, error) {
	k, err := json.MarshalToString(key)
	if err != nil {
		return "", false, err
	}
	script := fmt.Sprintf(`(() => {
  const v = window.localStorage.getItem(%s);
  return {present: v !== null, value: v === null ? "" : v};
})()`, k)
	var item storageItem
	if err := s.run(ctx, "reading localStorage", chromedp.Evaluate(script, &item)); err != nil {
		return "", false, err
	}
	return item.Value, item.Present, nil
}

func (s *Session) WriteLocalStorageItem(ctx context.Context, key, value string) error {
	k, err := json.MarshalToString(key)
	if err != nil {
		return err
	}
	v, err := json.MarshalToString(value)
	if err != nil {
		return err
	}
	return s.run(ctx, "writing localStorage",
		chromedp.Evaluate(fmt.Sprintf("window.localStorage.setItem(%s, %s)", k, v), nil))
}

func trimXPath(expr string) (string, bool) {
	if len(expr) > len(selector.XPathPrefix) && expr[:len(selector.XPathPrefix)] == selector.XPathPrefix {
		return expr[len(selector.XPathPrefix):], true
	}
	return "", false
}

// countVisibleScript counts matches of expr with a non-empty box that are
// not hidden by visibility.
func countVisibleScript(expr string) (string, error) {
	e, err := json.MarshalToString(expr)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`(() => {
  const expr = %s;
  let nodes;
  if (expr.startsWith(%q)) {
    const snap = document.evaluate(expr.slice(%d), document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
    nodes = [];
    for (let i = 0; i < snap.snapshotLength; i++) nodes.push(snap.snapshotItem(i));
  } else {
    nodes = Array.from(document.querySelectorAll(expr));
  }
  return nodes.filter(el => {
    if (!(el instanceof Element)) return false;
    const r = el.getBoundingClientRect();
    return r.width > 0 && r.height > 0 && getComputedStyle(el).visibility !== "hidden";
  }).length;
})()`, e, selector.XPathPrefix, len(selector.XPathPrefix)), nil
}
