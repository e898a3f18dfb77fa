package evaluation

import "math"

// 二值相关性下的检索质量指标
// relevant 为人工标注的相关候选人集合，ranked 为算法输出的有序候选人ID列表

// PrecisionAtK 前K个结果中相关项的占比
// K取 min(K, len(ranked)) 之前分母仍用K——截断惩罚是有意的
func PrecisionAtK(ranked []string, relevant map[string]struct{}, k int) float64 {
	if k <= 0 || len(relevant) == 0 {
		return 0
	}

	hits := 0
	limit := k
	if limit > len(ranked) {
		limit = len(ranked)
	}
	for _, id := range ranked[:limit] {
		if _, ok := relevant[id]; ok {
			hits++
		}
	}
	return float64(hits) / float64(k)
}

// RecallAtK 前K个结果覆盖了多大比例的相关项
func RecallAtK(ranked []string, relevant map[string]struct{}, k int) float64 {
	if k <= 0 || len(relevant) == 0 {
		return 0
	}

	hits := 0
	limit := k
	if limit > len(ranked) {
		limit = len(ranked)
	}
	for _, id := range ranked[:limit] {
		if _, ok := relevant[id]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(relevant))
}

// DCGAtK 二值相关性的折损累计增益，位次i（从1起）贡献 1/log2(i+1)
func DCGAtK(ranked []string, relevant map[string]struct{}, k int) float64 {
	limit := k
	if limit > len(ranked) {
		limit = len(ranked)
	}

	var dcg float64
	for i := 0; i < limit; i++ {
		if _, ok := relevant[ranked[i]]; ok {
			dcg += 1.0 / math.Log2(float64(i)+2)
		}
	}
	return dcg
}

// IDCGAtK 理想排序下的DCG：所有相关项排在最前面
func IDCGAtK(relevantCount, k int) float64 {
	limit := k
	if limit > relevantCount {
		limit = relevantCount
	}

	var idcg float64
	for i := 0; i < limit; i++ {
		idcg += 1.0 / math.Log2(float64(i)+2)
	}
	return idcg
}

// NDCGAtK 归一化折损累计增益，IDCG为0时返回0
func NDCGAtK(ranked []string, relevant map[string]struct{}, k int) float64 {
	if k <= 0 {
		return 0
	}
	idcg := IDCGAtK(len(relevant), k)
	if idcg == 0 {
		return 0
	}
	return DCGAtK(ranked, relevant, k) / idcg
}

// MRR 第一个相关结果位次的倒数，没有命中时返回0
func MRR(ranked []string, relevant map[string]struct{}) float64 {
	for i, id := range ranked {
		if _, ok := relevant[id]; ok {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}
