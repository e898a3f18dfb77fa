package similarity

import (
	"errors"
	"fmt"
	"math"
)

// ErrDimensionMismatch 两个待比较向量维度不一致
// 维度不匹配是硬错误，不允许静默降级为0分
var ErrDimensionMismatch = errors.New("向量维度不匹配")

// CosineSimilarity 计算两个定长向量的余弦相似度 dot(a,b)/(‖a‖·‖b‖)
// 任一向量为零向量（退化Embedding）时返回0，避免除零
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// SemanticSimilarity 将余弦相似度的 [-1,1] 区间映射到 [0,1]
// 语义相反的Embedding落在0附近而不是负值
func SemanticSimilarity(a, b []float64) (float64, error) {
	cos, err := CosineSimilarity(a, b)
	if err != nil {
		return 0, err
	}
	return (cos + 1) / 2, nil
}

// EmbeddingScore 计算 0-100 的Embedding相似度分数
// 任一Embedding缺失时返回0——缺失是合法的"无信号"状态，
// 与维度不匹配（数据存在但损坏）区别对待
func EmbeddingScore(a, b []float64) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, nil
	}
	sem, err := SemanticSimilarity(a, b)
	if err != nil {
		return 0, err
	}
	return 100 * sem, nil
}

// Clamp01 将数值钳制到 [0,1] 区间
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
