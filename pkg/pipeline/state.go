package pipeline

// Source is one web source carried through the pipeline. Content and Score
// are filled in by the extraction and prioritization stages respectively.
type Source struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Snippet string  `json:"snippet,omitempty"`
	Query   string  `json:"query,omitempty"`
	Content string  `json:"content,omitempty"`
	Score   float64 `json:"score,omitempty"`
}

// Claim is one factual claim extracted from the prioritized sources.
type Claim struct {
	ID        int      `json:"id"`
	Text      string   `json:"text"`
	Citations []string `json:"citations,omitempty"`
}

// Citation maps a citation key to the source it points at.
type Citation struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// State is the working data of one session. It is exclusively owned by the
// engine driving that session and is passed to stages by value; stages
// return a new copy rather than mutating shared memory.
type State struct {
	Topic string `json:"topic"`
	Seed  int    `json:"seed"`

	// Planning
	SearchQueries []string `json:"search_queries,omitempty"`
	PlanSummary   string   `json:"plan_summary,omitempty"`
	PlanFeedback  string   `json:"plan_feedback,omitempty"`

	// Research
	SearchResults      []Source `json:"search_results,omitempty"`
	ExtractedSources   []Source `json:"extracted_sources,omitempty"`
	PrioritizedSources []Source `json:"prioritized_sources,omitempty"`

	// Claims
	Claims         []Claim             `json:"claims,omitempty"`
	CitationMap    map[string]Citation `json:"citation_map,omitempty"`
	ClaimsFeedback string              `json:"claims_feedback,omitempty"`

	// Authoring
	Outline         string `json:"outline,omitempty"`
	OutlineFeedback string `json:"outline_feedback,omitempty"`
	TonePrefs       string `json:"tone_prefs,omitempty"`
	Brief           string `json:"brief,omitempty"`
	FormattedBrief  string `json:"formatted_brief,omitempty"`
}

// Clone returns a deep copy so that no slice or map is aliased between the
// engine's working state and the copy handed to a stage.
func (s State) Clone() State {
	out := s
	out.SearchQueries = append([]string(nil), s.SearchQueries...)
	out.SearchResults = append([]Source(nil), s.SearchResults...)
	out.ExtractedSources = append([]Source(nil), s.ExtractedSources...)
	out.PrioritizedSources = append([]Source(nil), s.PrioritizedSources...)
	out.Claims = append([]Claim(nil), s.Claims...)
	if s.CitationMap != nil {
		out.CitationMap = make(map[string]Citation, len(s.CitationMap))
		for k, v := range s.CitationMap {
			out.CitationMap[k] = v
		}
	}
	return out
}

// Artifact is the retrievable output of a completed session.
type Artifact struct {
	Topic          string   `json:"topic"`
	Brief          string   `json:"final_brief"`
	FormattedBrief string   `json:"formatted_brief"`
	Outline        string   `json:"outline"`
	Sources        []Source `json:"sources"`
	Claims         []Claim  `json:"claims"`
}
