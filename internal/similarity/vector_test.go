package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilaritySelf(t *testing.T) {
	v := []float64{0.3, -1.2, 4.5, 0.01}

	cos, err := CosineSimilarity(v, v)
	require.NoError(t, err, "同维向量不应返回错误")
	assert.InDelta(t, 1.0, cos, 1e-9, "向量与自身的余弦相似度应为1")

	sem, err := SemanticSimilarity(v, v)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sem, 1e-9, "向量与自身的语义相似度应为1")
}

func TestCosineSimilarityZeroNorm(t *testing.T) {
	zero := []float64{0, 0, 0}
	w := []float64{1, 2, 3}

	cos, err := CosineSimilarity(zero, w)
	require.NoError(t, err, "零向量不是错误")
	assert.Equal(t, 0.0, cos, "零向量与任意向量的余弦相似度应为0")

	cos, err = CosineSimilarity(w, zero)
	require.NoError(t, err)
	assert.Equal(t, 0.0, cos)
}

func TestCosineSimilarityDimensionMismatch(t *testing.T) {
	a := []float64{1, 2}
	b := []float64{1, 2, 3}

	_, err := CosineSimilarity(a, b)
	require.Error(t, err, "维度不匹配必须返回错误而不是静默0分")
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = SemanticSimilarity(a, b)
	assert.ErrorIs(t, err, ErrDimensionMismatch, "语义相似度应透传维度错误")
}

func TestCosineSimilarityOpposite(t *testing.T) {
	a := []float64{1, 0}
	b := []float64{-1, 0}

	cos, err := CosineSimilarity(a, b)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, cos, 1e-9)

	// 语义相反映射到0附近而非负数
	sem, err := SemanticSimilarity(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, sem, 1e-9)
}

func TestEmbeddingScoreMissingVector(t *testing.T) {
	v := []float64{0.5, 0.5}

	score, err := EmbeddingScore(nil, v)
	require.NoError(t, err, "缺失Embedding是合法的无信号状态")
	assert.Equal(t, 0.0, score)

	score, err = EmbeddingScore(v, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)

	score, err = EmbeddingScore(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
}

func TestEmbeddingScoreIdentical(t *testing.T) {
	v := []float64{0.1, 0.9, -0.3}
	score, err := EmbeddingScore(v, v)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, score, 1e-9)
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-0.5))
	assert.Equal(t, 1.0, Clamp01(1.5))
	assert.Equal(t, 0.42, Clamp01(0.42))
}
