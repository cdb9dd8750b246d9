package badges

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uiprobe/api/schemas"
	"github.com/xkilldash9x/uiprobe/internal/harness"
	"github.com/xkilldash9x/uiprobe/internal/wait"
)

// ViewportResult is what one viewport of the sweep produced.
type ViewportResult struct {
	Viewport   schemas.Viewport
	Visible    int
	Screenshot string
}

// EvaluateViewports passes when every viewport shows at least one badge and
// otherwise names each failing viewport.
func EvaluateViewports(results []ViewportResult) harness.Verdict {
	if len(results) == 0 {
		return harness.Fail("no viewports were checked")
	}
	var failing, seen []string
	for _, r := range results {
		seen = append(seen, fmt.Sprintf("%s=%d", r.Viewport.Label, r.Visible))
		if r.Visible < 1 {
			failing = append(failing, r.Viewport.Label)
		}
	}
	if len(failing) > 0 {
		return harness.Fail("no visible badges at %s (%s)", strings.Join(failing, ", "), strings.Join(seen, ", "))
	}
	return harness.Pass("badges visible at every viewport (%s)", strings.Join(seen, ", "))
}

// Responsiveness resizes the page through each configured viewport in order.
func (p *Probe) Responsiveness(ctx context.Context, env *harness.Env) (harness.Verdict, error) {
	results := make([]ViewportResult, 0, len(p.cfg.Viewports))
	for _, vp := range p.cfg.Viewports {
		if err := env.Page.SetViewport(ctx, vp.Width, vp.Height); err != nil {
			return harness.Verdict{}, fmt.Errorf("resizing to %s: %w", vp, err)
		}

		visible, err := wait.Value(ctx, p.cfg.LayoutSettle, pollInterval,
			func(c context.Context) (int, error) { return p.countVisibleBadges(c, env.Page) },
			func(n int) bool { return n > 0 })
		if err != nil && !errors.Is(err, wait.ErrTimeout) {
			return harness.Verdict{}, fmt.Errorf("counting badges at %s: %w", vp, err)
		}

		res := ViewportResult{Viewport: vp, Visible: visible}
		res.Screenshot = p.screenshot(ctx, env, "viewport-"+strings.ToLower(vp.Label))
		env.Logger.Info("Viewport checked.",
			zap.String("viewport", vp.String()),
			zap.Int("visible_badges", visible))
		results = append(results, res)
	}
	return EvaluateViewports(results), nil
}

// countVisibleBadges returns the visible count of the first badge candidate
// that has any visible match.
func (p *Probe) countVisibleBadges(ctx context.Context, page schemas.Page) (int, error) {
	for _, expr := range p.cfg.Selectors.Badge {
		n, err := page.CountVisible(ctx, expr)
		if err != nil {
			return 0, err
		}
		if n > 0 {
			return n, nil
		}
	}
	return 0, nil
}
