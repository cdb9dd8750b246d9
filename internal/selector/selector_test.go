package selector

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/uiprobe/api/schemas"
	"github.com/xkilldash9x/uiprobe/internal/mocks"
)

func handles(sel string, n int) []schemas.ElementHandle {
	out := make([]schemas.ElementHandle, n)
	for i := range out {
		out[i] = schemas.ElementHandle{NodeID: int64(100 + i), Selector: sel, Index: i}
	}
	return out
}

func TestChain_FirstMatchingCandidateWins(t *testing.T) {
	exprs := []string{`input[type="email"]`, `input[name="email"]`, `#email`, `xpath=//input[@id="login"]`}

	// For every N, candidates 1..N-1 match nothing and candidate N matches.
	for n := range exprs {
		t.Run(fmt.Sprintf("candidate %d", n+1), func(t *testing.T) {
			page := new(mocks.MockPage)
			for i, e := range exprs {
				switch {
				case i < n:
					page.On("Locate", mock.Anything, e).Return([]schemas.ElementHandle{}, nil).Once()
				case i == n:
					page.On("Locate", mock.Anything, e).Return(handles(e, 2), nil).Once()
				}
			}

			out, err := NewChain("email field", exprs...).Resolve(context.Background(), page)
			require.NoError(t, err)
			require.True(t, out.Resolved)
			assert.Equal(t, exprs[n], out.Candidate.Expr)
			assert.Equal(t, 2, out.MatchCount)
			assert.Equal(t, int64(100), out.Element.NodeID, "the first match is the action target")
			assert.Len(t, out.Tried, n+1)
			assert.NoError(t, out.Err())

			page.AssertExpectations(t)
			for _, later := range exprs[n+1:] {
				page.AssertNotCalled(t, "Locate", mock.Anything, later)
			}
		})
	}
}

func TestChain_EarlierCandidateShadowsLaterMatches(t *testing.T) {
	page := new(mocks.MockPage)
	page.On("Locate", mock.Anything, "a").Return(handles("a", 1), nil)
	page.On("Locate", mock.Anything, "b").Return(handles("b", 5), nil)

	out, err := NewChain("submit button", "a", "b").Resolve(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, "a", out.Candidate.Expr, "priority order, not the most matches")
	page.AssertNotCalled(t, "Locate", mock.Anything, "b")
}

func TestChain_Unresolved(t *testing.T) {
	page := new(mocks.MockPage)
	page.On("Locate", mock.Anything, mock.Anything).Return([]schemas.ElementHandle{}, nil)

	out, err := NewChain("password field", "x", "y").Resolve(context.Background(), page)
	require.NoError(t, err)
	assert.False(t, out.Resolved)
	assert.Equal(t, []Candidate{{Expr: "x", Role: "password field"}, {Expr: "y", Role: "password field"}}, out.Tried)

	err = out.Err()
	require.ErrorIs(t, err, ErrUnresolved)
	assert.Contains(t, err.Error(), "password field")
	assert.Contains(t, err.Error(), `"x", "y"`)
	assert.Contains(t, out.String(), "unresolved")
}

func TestChain_DriverErrorIsNotUnresolved(t *testing.T) {
	boom := errors.New("target closed")
	page := new(mocks.MockPage)
	page.On("Locate", mock.Anything, "first").Return(nil, boom)

	out, err := NewChain("email field", "first", "second").Resolve(context.Background(), page)
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrUnresolved)
	assert.False(t, out.Resolved)
	page.AssertNotCalled(t, "Locate", mock.Anything, "second")
}

func TestChain_Nested(t *testing.T) {
	page := new(mocks.MockPage)
	page.On("Locate", mock.Anything, "a").Return([]schemas.ElementHandle{}, nil)
	page.On("Locate", mock.Anything, "b").Return([]schemas.ElementHandle{}, nil)
	page.On("Locate", mock.Anything, "c").Return(handles("c", 1), nil)

	chain := Chain{NewChain("tab", "a", "b"), Candidate{Expr: "c", Role: "tab"}}
	out, err := Resolve(context.Background(), page, chain)
	require.NoError(t, err)
	assert.True(t, out.Resolved)
	assert.Len(t, out.Tried, 3)
}

func TestWaitResolve(t *testing.T) {
	t.Run("awaits an element that renders late", func(t *testing.T) {
		page := new(mocks.MockPage)
		page.On("Locate", mock.Anything, ".MuiAlert-root").Return([]schemas.ElementHandle{}, nil).Twice()
		page.On("Locate", mock.Anything, ".MuiAlert-root").Return(handles(".MuiAlert-root", 1), nil)

		out, err := WaitResolve(context.Background(), page, NewChain("error indicator", ".MuiAlert-root"), time.Second, 5*time.Millisecond)
		require.NoError(t, err)
		assert.True(t, out.Resolved)
	})

	t.Run("bound expiry is an unresolved outcome, not an error", func(t *testing.T) {
		page := new(mocks.MockPage)
		page.On("Locate", mock.Anything, mock.Anything).Return([]schemas.ElementHandle{}, nil)

		out, err := WaitResolve(context.Background(), page, NewChain("error indicator", ".MuiAlert-root"), 30*time.Millisecond, 5*time.Millisecond)
		require.NoError(t, err)
		assert.False(t, out.Resolved)
		assert.ErrorIs(t, out.Err(), ErrUnresolved)
	})

	t.Run("driver errors surface", func(t *testing.T) {
		page := new(mocks.MockPage)
		page.On("Locate", mock.Anything, mock.Anything).Return(nil, errors.New("session closed"))

		_, err := WaitResolve(context.Background(), page, NewChain("x", "x"), time.Second, 5*time.Millisecond)
		assert.EqualError(t, err, `locating x "x": session closed`)
	})
}

func TestCount(t *testing.T) {
	page := new(mocks.MockPage)
	page.On("Locate", mock.Anything, `[class*="ModelCard"]`).Return([]schemas.ElementHandle{}, nil)
	page.On("Locate", mock.Anything, `[class*="model-card"]`).Return(handles("m", 4), nil)

	n, err := Count(context.Background(), page, NewChain("model card", `[class*="ModelCard"]`, `[class*="model-card"]`))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestCandidate_IsXPath(t *testing.T) {
	assert.True(t, Candidate{Expr: `xpath=//button[contains(., "Models")]`}.IsXPath())
	assert.False(t, Candidate{Expr: `button.models`}.IsXPath())
}
