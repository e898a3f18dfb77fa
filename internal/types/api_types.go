package types

// PaginatedRankResponse 排名查询接口的分页响应
type PaginatedRankResponse struct {
	JobID      string            `json:"job_id"`
	Cursor     int64             `json:"cursor"`
	NextCursor int64             `json:"next_cursor"`
	Size       int64             `json:"size"`
	TotalCount int64             `json:"total_count"`
	Candidates []RankedCandidate `json:"candidates"`
}

// BenchmarkRunRequest 评测接口的请求体
type BenchmarkRunRequest struct {
	AlgorithmVersion string `json:"algorithm_version"`
}

// BenchmarkRunResponse 评测接口的响应
type BenchmarkRunResponse struct {
	RunID            string  `json:"run_id"`
	JobID            string  `json:"job_id"`
	AlgorithmVersion string  `json:"algorithm_version"`
	PrecisionAt5     float64 `json:"precision_at_5"`
	PrecisionAt10    float64 `json:"precision_at_10"`
	RecallAt5        float64 `json:"recall_at_5"`
	RecallAt10       float64 `json:"recall_at_10"`
	NDCGAt5          float64 `json:"ndcg_at_5"`
	NDCGAt10         float64 `json:"ndcg_at_10"`
	MRR              float64 `json:"mrr"`
}
