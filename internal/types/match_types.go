package types

// PreScoredCandidate 预筛阶段产出的候选人记录
// 由结构化元数据相似度与内容相似度混合出 PreScore
type PreScoredCandidate struct {
	CandidateID       string  `json:"candidate_id"`
	MetaSimilarity    float64 `json:"meta_similarity"`    // 属性匹配得分 [0,1]
	ContentSimilarity float64 `json:"content_similarity"` // 向量召回得分 [0,1]
	PreScore          float64 `json:"pre_score"`          // 混合结构分 [0,1]
}

// RankingCandidate 贯穿漏斗各阶段的瞬态记录
// 候选人每通过一个阶段，对应的分数字段被填充；不直接落库，
// 终态字段由流水线写入分数缓存表
type RankingCandidate struct {
	CandidateID     string  `json:"candidate_id"`
	PreScore        float64 `json:"pre_score"`
	NeuralRankScore float64 `json:"neural_rank_score"`
	LLMScore        float64 `json:"llm_score"`
	FinalScore      float64 `json:"final_score"`
	Explanation     string  `json:"explanation"`
}

// RankedCandidate 最终排名结果中的一项（对外返回结构）
type RankedCandidate struct {
	CandidateID     string  `json:"candidate_id"`
	PreScore        float64 `json:"pre_score"`
	NeuralRankScore float64 `json:"neural_rank_score"`
	LLMScore        float64 `json:"llm_score"`
	FinalScore      float64 `json:"final_score"`
	Explanation     string  `json:"explanation"`
}

// StageFailure 记录某一阶段中单个候选人或单个批次的失败
// 阶段不会因个体失败而中断，失败项被收集用于可观测性
type StageFailure struct {
	Stage       string `json:"stage"`
	CandidateID string `json:"candidate_id,omitempty"` // 单候选人失败时填充
	BatchIndex  int    `json:"batch_index,omitempty"`  // 整批失败时填充
	Reason      string `json:"reason"`
}

// RankingOutcome 一次完整流水线运行的产出
type RankingOutcome struct {
	JobID      string            `json:"job_id"`
	Candidates []RankedCandidate `json:"candidates"`
	PoolSize   int               `json:"pool_size"`   // 阶段1候选池大小
	NeuralSize int               `json:"neural_size"` // 阶段2存活数
	LLMSize    int               `json:"llm_size"`    // 阶段3存活数
	Failures   []StageFailure    `json:"failures,omitempty"`
}

// BatchEvaluationItem 批量评估请求中的一个候选人
type BatchEvaluationItem struct {
	CandidateID string `json:"candidate_id"`
	ResumeText  string `json:"resume_text"`
}

// BatchEvaluationResult 批量评估响应中的一项
// Explanation 仅包含正向表述，不含候选人短板
type BatchEvaluationResult struct {
	CandidateID string  `json:"candidate_id"`
	LLMScore    float64 `json:"llm_score"`
	Explanation string  `json:"explanation"`
}

// ParsedLocation 从位置字符串解析出的结构化位置
type ParsedLocation struct {
	Country  string `json:"country"`
	Region   string `json:"region"`
	IsRemote bool   `json:"is_remote"`
}

// BenchmarkMetrics 一次基准评测计算出的全部检索质量指标
type BenchmarkMetrics struct {
	PrecisionAt5  float64 `json:"precision_at_5"`
	PrecisionAt10 float64 `json:"precision_at_10"`
	RecallAt5     float64 `json:"recall_at_5"`
	RecallAt10    float64 `json:"recall_at_10"`
	NDCGAt5       float64 `json:"ndcg_at_5"`
	NDCGAt10      float64 `json:"ndcg_at_10"`
	MRR           float64 `json:"mrr"`
}
