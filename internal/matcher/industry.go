package matcher

import (
	"talent-rank-go/internal/similarity"
)

// IndustryScore 行业重合度评分，0-100
// 策略为二值命中：归一化后任意非空交集记100分，无交集记0分，
// 任一列表为空记0分
func IndustryScore(candidateIndustries, jobIndustries []string) float64 {
	candSet := normalizeSet(candidateIndustries)
	jobSet := normalizeSet(jobIndustries)

	if len(candSet) == 0 || len(jobSet) == 0 {
		return 0
	}
	if intersectionCount(candSet, jobSet) > 0 {
		return 100
	}
	return 0
}

// WeightedIndustryScore 加权行业相似度评分，0-100
//
// Deprecated: 历史版本的加权公式（0.4×交集占比 + 0.6×Embedding语义相似度），
// 仅保留用于离线对比评测，生产排名路径一律使用二值的 IndustryScore。
func WeightedIndustryScore(candidateIndustries, jobIndustries []string, candidateEmbedding, jobEmbedding []float64) (float64, error) {
	candSet := normalizeSet(candidateIndustries)
	jobSet := normalizeSet(jobIndustries)

	var ratio float64
	if len(jobSet) > 0 {
		ratio = float64(intersectionCount(candSet, jobSet)) / float64(len(jobSet))
	}

	embScore, err := similarity.EmbeddingScore(candidateEmbedding, jobEmbedding)
	if err != nil {
		return 0, err
	}

	return 0.4*ratio*100 + 0.6*embScore, nil
}
