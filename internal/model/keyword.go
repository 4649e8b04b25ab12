package model

// KeywordIdea is a keyword suggestion from the keyword-explorer task.
type KeywordIdea struct {
	ID           int64   `json:"id"`
	Keyword      string  `json:"keyword"`
	SearchVolume int64   `json:"search_volume"`
	Competition  float64 `json:"competition"`
}

// KeywordTerm is a term the content task recommends including in the
// article body.
type KeywordTerm struct {
	Text         string  `json:"text"`
	SearchVolume int64   `json:"search_volume"`
	Repeat       int     `json:"repeat"`
	Density      float64 `json:"density"`
	Similarity   float64 `json:"similarity"`
	Frequency    float64 `json:"frequency"`
}

// SearchResult is one organic result from the discovery search, before
// competitor-aware reordering.
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
	OriginSite  string `json:"origin_site,omitempty"`
	Source      string `json:"source"` // matched competitor name, or "GENERAL"
}
