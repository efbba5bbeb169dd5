package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/leadscout/leadscout/internal/lead"
)

func TestAccept(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	window := 48 * time.Hour
	fresh := now.Add(-2 * time.Hour)
	stale := now.Add(-72 * time.Hour)

	tests := []struct {
		name string
		post lead.RawPost
		want bool
	}{
		{
			name: "fresh post with content",
			post: lead.RawPost{Title: "Need a dev", Content: "Looking for help with our backend", PostedAt: &fresh},
			want: true,
		},
		{
			name: "stale post rejected",
			post: lead.RawPost{Title: "Need a dev", Content: "Looking for help", PostedAt: &stale},
			want: false,
		},
		{
			name: "no timestamp accepted",
			post: lead.RawPost{Title: "Need a dev", Content: "Looking for help"},
			want: true,
		},
		{
			name: "boundary is inclusive",
			post: func() lead.RawPost {
				at := now.Add(-window)
				return lead.RawPost{Title: "t", Content: "long enough content here", PostedAt: &at}
			}(),
			want: true,
		},
		{
			name: "short submission metadata rejected",
			post: lead.RawPost{Title: "x", Content: "submitted by /u/someone [link] [comments]", PostedAt: &fresh},
			want: false,
		},
		{
			name: "long content containing marker kept",
			post: lead.RawPost{Title: "x", Content: "submitted by our team: " + longText(), PostedAt: &fresh},
			want: true,
		},
		{
			name: "empty title and content rejected",
			post: lead.RawPost{Title: "  ", Content: "", PostedAt: &fresh},
			want: false,
		},
		{
			name: "title-only post accepted",
			post: lead.RawPost{Title: "Hiring a contractor", Content: "", PostedAt: &fresh},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, Accept(tt.post, now, window))
		})
	}
}

func TestAcceptIsDeterministic(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	at := now.Add(-time.Hour)
	post := lead.RawPost{Title: "t", Content: "some real content about a problem", PostedAt: &at}
	first := Accept(post, now, 24*time.Hour)
	for range 10 {
		require.Equal(t, first, Accept(post, now, 24*time.Hour))
	}
}

func longText() string {
	s := ""
	for range 20 {
		s += "we keep hitting the same problem with invoicing "
	}
	return s
}
