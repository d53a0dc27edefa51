package fetcher

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/cnii-sentinel/internal/sentinel"
)

func TestBuildContextLabelsSources(t *testing.T) {
	t.Parallel()

	got := BuildContext([]sentinel.SearchResult{
		{Index: 1, Title: "Road expansion", URL: "https://punchng.com/a", PublishedDate: "2026-10-14", Content: "road expansion near Lagos-Ibadan"},
		{Index: 2, Title: "Empty", URL: "https://x.ng/b", Content: "   "},
		{Index: 3, Title: "Undated", URL: "https://guardian.ng/c", Content: "drainage works"},
	}, 0)

	want := "[Source 1] Road expansion\nURL: https://punchng.com/a\nPublished: 2026-10-14\nroad expansion near Lagos-Ibadan" +
		"\n\n[Source 3] Undated\nURL: https://guardian.ng/c\nPublished: unknown\ndrainage works"
	require.Equal(t, want, got)
}

func TestBuildContextTruncates(t *testing.T) {
	t.Parallel()

	got := BuildContext([]sentinel.SearchResult{{Index: 1, Content: "abcdefghij"}}, 4)
	require.Contains(t, got, "\nabcd…")
	require.NotContains(t, got, "abcde")
}

func TestHasText(t *testing.T) {
	t.Parallel()

	require.False(t, HasText(nil))
	require.False(t, HasText([]sentinel.SearchResult{{Content: " "}}))
	require.True(t, HasText([]sentinel.SearchResult{{Content: " "}, {Content: "x"}}))
}
