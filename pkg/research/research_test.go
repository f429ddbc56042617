package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/yesahmedyes/lecture-assistant/internal/pkg/logger"
	"github.com/yesahmedyes/lecture-assistant/pkg/pipeline"
)

type fakeSearcher struct {
	results map[string][]pipeline.Source
	err     error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string, maxResults int) ([]pipeline.Source, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	results := f.results[query]
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

func TestTopicRunsDefaultAndExtraQueries(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]pipeline.Source{
		"transformers overview": {{Title: "A", URL: "https://a.example"}},
		"transformers custom":   {{Title: "B", URL: "https://b.example"}},
	}}

	sources, err := Topic(context.Background(), searcher, "transformers",
		[]string{"transformers custom"}, 0, 0, logger.NewNopLogger())
	if err != nil {
		t.Fatalf("Topic: %v", err)
	}

	wantQueries := []string{
		"transformers overview",
		"transformers key concepts",
		"transformers latest research",
		"transformers custom",
	}
	if len(searcher.queries) != len(wantQueries) {
		t.Fatalf("ran %d queries, want %d", len(searcher.queries), len(wantQueries))
	}
	for i, q := range wantQueries {
		if searcher.queries[i] != q {
			t.Errorf("query[%d] = %q, want %q", i, searcher.queries[i], q)
		}
	}

	if len(sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(sources))
	}
	if sources[0].Query != "transformers overview" {
		t.Errorf("source query not stamped: %q", sources[0].Query)
	}
}

func TestTopicDeduplicatesURLs(t *testing.T) {
	dup := pipeline.Source{Title: "Same", URL: "https://same.example"}
	searcher := &fakeSearcher{results: map[string][]pipeline.Source{
		"x overview":        {dup},
		"x key concepts":    {dup},
		"x latest research": {dup},
	}}

	sources, err := Topic(context.Background(), searcher, "x", nil, 0, 0, logger.NewNopLogger())
	if err != nil {
		t.Fatalf("Topic: %v", err)
	}
	if len(sources) != 1 {
		t.Errorf("got %d sources, want 1 after dedupe", len(sources))
	}
}

func TestTopicCapsTotal(t *testing.T) {
	many := make([]pipeline.Source, 10)
	for i := range many {
		many[i] = pipeline.Source{URL: fmt.Sprintf("https://s%d.example", i)}
	}
	searcher := &fakeSearcher{results: map[string][]pipeline.Source{
		"x overview": many,
	}}

	sources, err := Topic(context.Background(), searcher, "x", nil, 10, 4, logger.NewNopLogger())
	if err != nil {
		t.Fatalf("Topic: %v", err)
	}
	if len(sources) != 4 {
		t.Errorf("got %d sources, want cap of 4", len(sources))
	}
}

func TestTopicFailsOnlyWhenAllQueriesFail(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("rate limited")}
	_, err := Topic(context.Background(), searcher, "x", nil, 0, 0, logger.NewNopLogger())
	if err == nil {
		t.Fatal("expected error when every query fails")
	}
}

func TestScoreAuthority(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want float64
	}{
		{name: "edu domain", url: "https://cs.stanford.edu", want: 3.0},
		{name: "publisher", url: "https://dl.acm.org/doi/10.1145/1", want: 2.5},
		{name: "arxiv stacks publisher and preprint bonus", url: "https://arxiv.org/abs/2301.00001", want: 3.5},
		{name: "blog platform", url: "https://medium.com/@someone/post", want: 0.5},
		{name: "forum penalty", url: "https://reddit.com/r/golang", want: -0.5},
		{name: "plain site", url: "https://example.com", want: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreAuthority(tt.url, "", "")
			if got != tt.want {
				t.Errorf("ScoreAuthority(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestPrioritizeOrdersAndCaps(t *testing.T) {
	sources := []pipeline.Source{
		{URL: "https://reddit.com/r/x"},
		{URL: "https://a.example"},
		{URL: "https://mit.edu/paper"},
		{URL: "https://b.example"},
	}

	top := Prioritize(sources, 3)
	if len(top) != 3 {
		t.Fatalf("got %d sources, want 3", len(top))
	}
	if top[0].URL != "https://mit.edu/paper" {
		t.Errorf("highest authority first, got %q", top[0].URL)
	}
	// Stable sort keeps equally scored sources in search order.
	if top[1].URL != "https://a.example" || top[2].URL != "https://b.example" {
		t.Errorf("tie order not preserved: %q, %q", top[1].URL, top[2].URL)
	}
	if top[0].Score <= top[2].Score {
		t.Errorf("scores not attached: %v <= %v", top[0].Score, top[2].Score)
	}
}

func TestHTMLToText(t *testing.T) {
	doc := `<html><head><style>body{color:red}</style>
<script>alert("hi")</script></head>
<body><h1>Title</h1><p>First   paragraph.</p><p>Second.</p></body></html>`

	got := HTMLToText(strings.NewReader(doc), 8000)
	if got != "Title First paragraph. Second." {
		t.Errorf("HTMLToText = %q", got)
	}
}

func TestHTMLToTextCapsLength(t *testing.T) {
	doc := "<p>" + strings.Repeat("word ", 100) + "</p>"
	got := HTMLToText(strings.NewReader(doc), 20)
	if len(got) != 20 {
		t.Errorf("len = %d, want 20", len(got))
	}
}
