package badges

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uiprobe/api/schemas"
	"github.com/xkilldash9x/uiprobe/internal/harness"
	"github.com/xkilldash9x/uiprobe/internal/selector"
)

// ClassifyCache compares the API calls observed during one render pass with
// the number of entities rendered by it. Fewer calls than entities suggests
// the requests are shared; anything else only warrants a warning because the
// observation window is timing-dependent.
func ClassifyCache(calls, entities int) harness.Verdict {
	switch {
	case entities == 0:
		return harness.Warn("inconclusive: %d call(s) but no rendered entities to compare against (timing-based heuristic)", calls)
	case calls < entities:
		return harness.Pass("%d call(s) for %d rendered entities; requests appear shared (timing-based heuristic)", calls, entities)
	default:
		return harness.Warn("%d call(s) for %d rendered entities; possible per-entity fetching (timing-based heuristic)", calls, entities)
	}
}

// SharedCache reloads the models view and counts the matching API calls made
// while it renders. Rendered entities are the matches of the first entity
// candidate that finds any, so markup variants that may appear side by side
// belong in one comma-separated candidate.
func (p *Probe) SharedCache(ctx context.Context, env *harness.Env) (harness.Verdict, error) {
	before := env.Events.CountAPICalls(p.cfg.APIPattern)

	if err := env.Page.Reload(ctx, schemas.WaitLoad); err != nil {
		return harness.Verdict{}, fmt.Errorf("reloading: %w", err)
	}
	if err := p.openModels(ctx, env); err != nil {
		return harness.Verdict{}, err
	}
	p.settle(ctx, env)

	calls := env.Events.CountAPICalls(p.cfg.APIPattern) - before
	entities, err := selector.Count(ctx, env.Page, p.entity)
	if err != nil {
		return harness.Verdict{}, err
	}
	env.Logger.Debug("Render pass observed.",
		zap.String("pattern", p.cfg.APIPattern),
		zap.Int("calls", calls),
		zap.Int("entities", entities))
	return ClassifyCache(calls, entities), nil
}
