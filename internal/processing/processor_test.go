package processing_test

import (
	"testing"
	"time"

	"github.com/DeafMist/thread-scout/internal/processing"
	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "punctuation", input: "Great!!!   jeans", want: "Great jeans"},
		{name: "collapse whitespace", input: "foo\n\nbar\t baz", want: "foo bar baz"},
		{name: "remove urls", input: "Check https://example.com for info", want: "Check for info"},
		{name: "html entities", input: "H&amp;M tees", want: "H M tees"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, processing.CleanText(tt.input))
		})
	}
}

func TestExtractKeywords(t *testing.T) {
	text := "Jeans jeans denim denim denim selvedge and the the fit"
	got := processing.ExtractKeywords(text, 3, 3)
	require.Equal(t, []string{"denim", "jeans", "fit"}, got)

	require.Nil(t, processing.ExtractKeywords("", 5, 3))
}

func TestExtractKeywordsExclude(t *testing.T) {
	text := "best jeans jeans denim denim denim selvedge"
	got := processing.ExtractKeywords(text, 2, 3, "Denim")
	require.Equal(t, []string{"jeans", "best"}, got)
}

func TestExtractKeywordsIgnoresURLWords(t *testing.T) {
	text := "denim denim https://example.com/raw-denim-deals selvedge"
	got := processing.ExtractKeywords(text, 3, 3)
	require.ElementsMatch(t, []string{"denim", "selvedge"}, got)
}

func TestQueryTerms(t *testing.T) {
	require.Equal(t, []string{"best", "running", "shoes"}, processing.QueryTerms("What are the best running shoes for me?", 3))
	require.Equal(t, []string{"usb", "hub"}, processing.QueryTerms("usb hub usb", 0))
	require.Empty(t, processing.QueryTerms("how do I", 3))
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "hello", processing.Truncate("hello", 10))
	require.Equal(t, "hel", processing.Truncate("hello", 3))
	require.Equal(t, "caf", processing.Truncate("café", 4))
	require.Equal(t, "anything", processing.Truncate("anything", 0))
}

func TestBuildReportID(t *testing.T) {
	ts := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	id1 := processing.BuildReportID("jeans", "traditional_reddit_search", ts)
	id2 := processing.BuildReportID("jeans", "traditional_reddit_search", ts)
	require.NotEmpty(t, id1)
	require.Equal(t, id1, id2)
	require.NotEqual(t, id1, processing.BuildReportID("jeans", "multi_agent_web_search", ts))
}

func TestExtractURLs(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "empty", input: "", want: nil},
		{name: "no urls", input: "Hello world", want: nil},
		{name: "single url", input: "Check https://example.com for more", want: []string{"https://example.com"}},
		{name: "multiple urls", input: "Go to https://example.com or http://test.org now", want: []string{"https://example.com", "http://test.org"}},
		{name: "duplicate urls", input: "https://example.com and https://example.com again", want: []string{"https://example.com"}},
		{name: "markdown link", input: "[post](https://example.com/path/to/page).", want: []string{"https://example.com/path/to/page"}},
		{name: "trailing period", input: "See https://example.com/a.", want: []string{"https://example.com/a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, processing.ExtractURLs(tt.input))
		})
	}
}

func TestRemoveURLs(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "no urls", input: "Hello world", want: "Hello world"},
		{name: "single url", input: "Check https://example.com for more", want: "Check   for more"},
		{name: "url only", input: "https://example.com", want: " "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, processing.RemoveURLs(tt.input))
		})
	}
}

func TestHeadline(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxWords int
		want     string
	}{
		{name: "empty", text: "", maxWords: 10, want: ""},
		{name: "markdown heading", text: "## **Summary**\nLevi's wins.", maxWords: 10, want: "Summary"},
		{name: "multiple sentences", text: "Carhartt is durable! Prices vary.", maxWords: 10, want: "Carhartt is durable"},
		{name: "long text truncated", text: "The community strongly prefers raw selvedge denim from small makers", maxWords: 5, want: "The community strongly prefers raw..."},
		{name: "unlimited words", text: "Buy once cry once", maxWords: 0, want: "Buy once cry once"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, processing.Headline(tt.text, tt.maxWords))
		})
	}
}
