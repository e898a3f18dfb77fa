package types

import "time"

// RankCompletedEvent 排名流水线完成后发布的事件
type RankCompletedEvent struct {
	JobID       string    `json:"job_id"`
	PoolSize    int       `json:"pool_size"`
	NeuralSize  int       `json:"neural_size"`
	LLMSize     int       `json:"llm_size"`
	FinalSize   int       `json:"final_size"`
	Failures    int       `json:"failures"`
	CompletedAt time.Time `json:"completed_at"`
}

// BenchmarkCompletedEvent 评测运行完成后发布的事件
type BenchmarkCompletedEvent struct {
	RunID            string    `json:"run_id"`
	JobID            string    `json:"job_id"`
	AlgorithmVersion string    `json:"algorithm_version"`
	PrecisionAt5     float64   `json:"precision_at_5"`
	NDCGAt10         float64   `json:"ndcg_at_10"`
	MRR              float64   `json:"mrr"`
	CompletedAt      time.Time `json:"completed_at"`
}
