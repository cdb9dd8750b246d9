// Package selector resolves logical page elements through ordered fallback
// candidates. The first candidate that matches anything wins; there is no
// scoring and no randomness.
package selector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xkilldash9x/uiprobe/api/schemas"
	"github.com/xkilldash9x/uiprobe/internal/wait"
)

// ErrUnresolved is wrapped by Outcome.Err when no candidate matched.
var ErrUnresolved = errors.New("selector: no candidate matched")

// XPathPrefix marks a candidate expression as XPath rather than CSS.
const XPathPrefix = "xpath="

// Locator resolves one logical element on a live page. Implementations must
// not mutate the page.
type Locator interface {
	Resolve(ctx context.Context, page schemas.Page) (Outcome, error)
}

// Candidate is a single DOM query tagged with the role it plays, such as
// "email field" or "submit button".
type Candidate struct {
	Expr string
	Role string
}

// IsXPath reports whether the expression carries the xpath= prefix.
func (c Candidate) IsXPath() bool { return strings.HasPrefix(c.Expr, XPathPrefix) }

func (c Candidate) String() string { return c.Expr }

// Resolve queries the page for c alone.
func (c Candidate) Resolve(ctx context.Context, page schemas.Page) (Outcome, error) {
	handles, err := page.Locate(ctx, c.Expr)
	if err != nil {
		return Outcome{}, fmt.Errorf("locating %s %q: %w", c.Role, c.Expr, err)
	}
	if len(handles) == 0 {
		return Outcome{Role: c.Role, Tried: []Candidate{c}}, nil
	}
	return Outcome{
		Resolved:   true,
		Role:       c.Role,
		Candidate:  c,
		MatchCount: len(handles),
		Element:    handles[0],
		Matches:    handles,
		Tried:      []Candidate{c},
	}, nil
}

// Chain tries its locators in priority order.
type Chain []Locator

// NewChain builds a chain of CSS or xpath= expressions sharing one role.
func NewChain(role string, exprs ...string) Chain {
	chain := make(Chain, 0, len(exprs))
	for _, e := range exprs {
		chain = append(chain, Candidate{Expr: e, Role: role})
	}
	return chain
}

// Resolve returns the outcome of the first locator that resolves. The Tried
// list accumulates every candidate queried, in order. A driver error stops
// the chain and is returned as-is; it is never reported as unresolved.
func (ch Chain) Resolve(ctx context.Context, page schemas.Page) (Outcome, error) {
	var tried []Candidate
	role := ""
	for _, loc := range ch {
		out, err := loc.Resolve(ctx, page)
		if err != nil {
			return Outcome{}, err
		}
		tried = append(tried, out.Tried...)
		if role == "" {
			role = out.Role
		}
		if out.Resolved {
			out.Tried = tried
			return out, nil
		}
	}
	return Outcome{Role: role, Tried: tried}, nil
}

// Outcome is either Resolved(candidate, matchCount) or Unresolved(tried).
// It is a value and is never mutated after it is returned.
type Outcome struct {
	Resolved   bool
	Role       string
	Candidate  Candidate
	MatchCount int
	// Element is the first match, the one subsequent actions target.
	Element schemas.ElementHandle
	Matches []schemas.ElementHandle
	Tried   []Candidate
}

// Err returns nil when resolved and an error wrapping ErrUnresolved otherwise.
func (o Outcome) Err() error {
	if o.Resolved {
		return nil
	}
	return fmt.Errorf("%w: %s (tried %s)", ErrUnresolved, o.roleName(), joinCandidates(o.Tried))
}

func (o Outcome) String() string {
	if o.Resolved {
		return fmt.Sprintf("%s resolved by %q (%d match(es))", o.roleName(), o.Candidate.Expr, o.MatchCount)
	}
	return fmt.Sprintf("%s unresolved after %s", o.roleName(), joinCandidates(o.Tried))
}

func (o Outcome) roleName() string {
	if o.Role == "" {
		return "element"
	}
	return o.Role
}

// Resolve runs loc once against page.
func Resolve(ctx context.Context, page schemas.Page, loc Locator) (Outcome, error) {
	return loc.Resolve(ctx, page)
}

// WaitResolve repeats the resolution until it succeeds or timeout elapses,
// for elements that render asynchronously. An expired bound yields the last
// unresolved outcome and a nil error; driver errors and parent cancellation
// are returned as errors.
func WaitResolve(ctx context.Context, page schemas.Page, loc Locator, timeout, interval time.Duration) (Outcome, error) {
	out, err := wait.Value(ctx, timeout, interval,
		func(c context.Context) (Outcome, error) { return loc.Resolve(c, page) },
		func(o Outcome) bool { return o.Resolved })
	if errors.Is(err, wait.ErrTimeout) {
		return out, nil
	}
	return out, err
}

// Count returns how many elements the first matching candidate yields, or 0.
func Count(ctx context.Context, page schemas.Page, loc Locator) (int, error) {
	out, err := loc.Resolve(ctx, page)
	if err != nil {
		return 0, err
	}
	return out.MatchCount, nil
}

func joinCandidates(cs []Candidate) string {
	if len(cs) == 0 {
		return "no candidates"
	}
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = fmt.Sprintf("%q", c.Expr)
	}
	return strings.Join(parts, ", ")
}
