package models

// SearchHit is a raw index hit joined with its frame metadata.
type SearchHit struct {
	FrameRecord
	Score    float64 `json:"score"`
	RowIndex int     `json:"row_index"`
}

// SearchResult is a deduplicated, named result ready for presentation.
type SearchResult struct {
	Rank           int     `json:"rank"`
	VideoID        string  `json:"video_id"`
	Timestamp      float64 `json:"timestamp"`
	Score          float64 `json:"score"`
	FramePath      string  `json:"frame_path"`
	VideoPath      string  `json:"video_path"`
	Identifier     string  `json:"identifier"`
	ClipAvailable  bool    `json:"clip_available"`
	ImageAvailable bool    `json:"image_available"`
	ClipURL        string  `json:"clip_url,omitempty"`
	ImageURL       string  `json:"image_url,omitempty"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Query     string          `json:"query"`
	Results   []*SearchResult `json:"results"`
	ClipCount int             `json:"clip_count"`
	QueryTime int64           `json:"query_time_ms"`
	// Debug carries diagnostic text when the query failed or no clip could be produced.
	Debug string `json:"debug"`
}
