package classify

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leadscout/leadscout/internal/lead"
	"github.com/leadscout/leadscout/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

type scriptedProvider struct {
	name    string
	replies []string
	errs    []error
	calls   int
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Complete(_ context.Context, _ string) (string, error) {
	i := p.calls
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return "", p.errs[i]
	}
	if i < len(p.replies) {
		return p.replies[i], nil
	}
	return "", errors.New("script exhausted")
}

func newTestChain(providers ...Provider) *Chain {
	c := NewChain(providers, time.Millisecond, zap.NewNop())
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func retryableErr(name string) error {
	return &ProviderError{Provider: name, StatusCode: 429, Retryable: true, Err: errors.New("rate limited")}
}

func terminalErr(name string) error {
	return &ProviderError{Provider: name, StatusCode: 500, Retryable: false, Err: errors.New("upstream down")}
}

const goodReply = `here you go: {"relevance": 8, "severity": 6, "score": 7, "summary": "hiring", "category": "saas"}`

func TestChainSucceedsAfterRetryableFailures(t *testing.T) {
	t.Parallel()

	p := &scriptedProvider{
		name:    "primary",
		errs:    []error{retryableErr("primary"), retryableErr("primary"), nil},
		replies: []string{"", "", goodReply},
	}
	chain := newTestChain(p)

	j, err := chain.Classify(context.Background(), lead.RawPost{Title: "t"})
	require.NoError(t, err)
	require.NotNil(t, j)
	require.Equal(t, 7, j.Score)
	require.Equal(t, lead.ProviderJudgment("primary"), j.Source)
	require.Equal(t, 3, p.calls)
}

func TestChainRetriesExhaustedThenNextProvider(t *testing.T) {
	t.Parallel()

	primary := &scriptedProvider{
		name: "primary",
		errs: []error{retryableErr("primary"), retryableErr("primary"), retryableErr("primary")},
	}
	secondary := &scriptedProvider{name: "secondary", replies: []string{goodReply}}
	chain := newTestChain(primary, secondary)

	j, err := chain.Classify(context.Background(), lead.RawPost{Title: "t"})
	require.NoError(t, err)
	require.NotNil(t, j)
	require.Equal(t, lead.ProviderJudgment("secondary"), j.Source)
	require.Equal(t, 3, primary.calls)
	require.Equal(t, 1, secondary.calls)
}

func TestChainTerminalErrorSkipsRetry(t *testing.T) {
	t.Parallel()

	primary := &scriptedProvider{name: "primary", errs: []error{terminalErr("primary")}}
	secondary := &scriptedProvider{name: "secondary", replies: []string{goodReply}}
	chain := newTestChain(primary, secondary)

	j, err := chain.Classify(context.Background(), lead.RawPost{Title: "t"})
	require.NoError(t, err)
	require.NotNil(t, j)
	require.Equal(t, 1, primary.calls)
}

func TestChainParseFailureMovesToNextProviderWithoutRetry(t *testing.T) {
	t.Parallel()

	primary := &scriptedProvider{name: "primary", replies: []string{"no json here at all"}}
	secondary := &scriptedProvider{name: "secondary", replies: []string{goodReply}}
	chain := newTestChain(primary, secondary)

	j, err := chain.Classify(context.Background(), lead.RawPost{Title: "t"})
	require.NoError(t, err)
	require.NotNil(t, j)
	require.Equal(t, 1, primary.calls)
	require.Equal(t, 1, secondary.calls)
}

func TestChainTotalExhaustionReturnsNil(t *testing.T) {
	t.Parallel()

	primary := &scriptedProvider{name: "primary", errs: []error{terminalErr("primary")}}
	secondary := &scriptedProvider{name: "secondary", errs: []error{terminalErr("secondary")}}
	chain := newTestChain(primary, secondary)

	j, err := chain.Classify(context.Background(), lead.RawPost{Title: "t"})
	require.NoError(t, err)
	require.Nil(t, j)
}

func TestChainNoProvidersReturnsNil(t *testing.T) {
	t.Parallel()

	chain := newTestChain()
	j, err := chain.Classify(context.Background(), lead.RawPost{Title: "t"})
	require.NoError(t, err)
	require.Nil(t, j)
}

func TestParseJudgmentClampsAndDefaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want lead.Judgment
	}{
		{
			name: "out of range scores clamped",
			in:   `{"relevance": 42, "severity": -3, "score": 0, "summary": "s", "category": "c"}`,
			want: lead.Judgment{Relevance: 10, Severity: 1, Score: 1, Summary: "s", Category: "c"},
		},
		{
			name: "missing strings defaulted",
			in:   `{"relevance": 5, "severity": 5, "score": 5}`,
			want: lead.Judgment{Relevance: 5, Severity: 5, Score: 5, Summary: lead.DefaultSummary, Category: lead.DefaultCategory},
		},
		{
			name: "quoted and float scores coerced",
			in:   `{"relevance": "8", "severity": 6.7, "score": "not a number", "summary": "s", "category": "c"}`,
			want: lead.Judgment{Relevance: 8, Severity: 6, Score: 1, Summary: "s", Category: "c"},
		},
		{
			name: "array payload uses first element",
			in:   `[{"relevance": 4, "severity": 4, "score": 4, "summary": "a", "category": "b"}, {"score": 9}]`,
			want: lead.Judgment{Relevance: 4, Severity: 4, Score: 4, Summary: "a", Category: "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseJudgment(tt.in, "p")
			require.NoError(t, err)
			tt.want.Source = lead.ProviderJudgment("p")
			require.Equal(t, tt.want, *got)
		})
	}
}

func TestParseJudgmentRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := ParseJudgment("the model refused", "p")
	require.Error(t, err)
	require.True(t, IsExtractionError(err))
}
