package models

// Passage is a single retrieval hit. For similarity search Score is the vector
// distance (lower is closer); for MMR search it is the marginal relevance score.
// ID identifies the stored chunk and stays the same across restarts.
type Passage struct {
	ID       string                 `json:"id"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
	Score    float64                `json:"score"`
	Rank     int                    `json:"rank"`
}

// RetrieveResponse is the response for a retrieval request.
type RetrieveResponse struct {
	SessionID string     `json:"session_id"`
	Query     string     `json:"query"`
	Passages  []*Passage `json:"passages"`
	QueryTime int64      `json:"query_time_ms"`
}

// UploadResponse is returned after documents were ingested into a session.
type UploadResponse struct {
	SessionID string        `json:"session_id"`
	Indexed   bool          `json:"indexed"`
	Message   string        `json:"message,omitempty"`
	Report    *IngestReport `json:"report,omitempty"`
}
