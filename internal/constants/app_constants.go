package constants

import "time"

// 漏斗各阶段的固定收窄参数
const (
	// PreScorePoolSize 阶段1结构化预筛返回的候选池上限
	PreScorePoolSize = 50
	// NeuralRerankTopN 阶段2神经重排后保留的候选人数
	NeuralRerankTopN = 10
	// LLMBatchSize 阶段3单次批量评估的候选人上限
	LLMBatchSize = 20
)

// 分数融合权重，三者之和恒为1
const (
	FusionWeightPreScore    = 0.20
	FusionWeightNeuralScore = 0.50
	FusionWeightLLMScore    = 0.30
)

// 分数缓存各字段的独立过期窗口
const (
	// PairwiseScoreTTL 神经分与LLM分的过期窗口
	PairwiseScoreTTL = 7 * 24 * time.Hour
	// ExplanationTTL 解释文本的过期窗口
	ExplanationTTL = 30 * 24 * time.Hour
)

// 预筛结构分的混合权重（元数据 vs 内容向量召回）
const (
	PreScoreMetaWeight    = 0.5
	PreScoreContentWeight = 0.5
)

// DefaultScoringTimeout 外部打分服务单次调用的默认超时
// 可通过配置覆盖；超时按单候选人/单批次的瞬态失败处理
const DefaultScoringTimeout = 30 * time.Second

// AlgorithmVersion 当前排名算法版本，写入基准评测结果用于趋势追踪
const AlgorithmVersion = "cascade-v1"
