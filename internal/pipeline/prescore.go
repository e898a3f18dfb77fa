package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"talent-rank-go/internal/logger"
	"talent-rank-go/internal/matcher"
	"talent-rank-go/internal/similarity"
	"talent-rank-go/internal/storage"
	"talent-rank-go/internal/storage/models"
	"talent-rank-go/internal/types"
)

// vectorSearchMultiplier 向量召回数量相对池上限的放大倍数
// 召回面放宽一些，避免纯向量头部与结构分头部错位时漏掉候选人
const vectorSearchMultiplier = 4

// preScorePool 漏斗第一阶段：结构化预筛
// 元数据相似度与内容相似度各占一半混合出pre_score，降序截取前limit个；
// 数据库错误向上传播，无候选人时返回空池而不是错误
func (p *Pipeline) preScorePool(ctx context.Context, job *models.JobPosting, limit int) ([]types.PreScoredCandidate, error) {
	profiles, err := p.store.ListActiveCandidateProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询候选人池失败: %w", err)
	}
	if len(profiles) == 0 {
		return nil, nil
	}

	contentScores := p.contentSimilarities(ctx, job, limit*vectorSearchMultiplier)

	pool := make([]types.PreScoredCandidate, 0, len(profiles))
	for i := range profiles {
		profile := &profiles[i]
		meta := metaSimilarity(job, profile)
		content := contentScores[profile.CandidateID]

		pre := 0.5*meta + 0.5*content
		if len(contentScores) == 0 {
			// 内容信号整体缺失时退化为纯结构分，而不是让所有人都吃0.5的折扣
			pre = meta
		}

		pool = append(pool, types.PreScoredCandidate{
			CandidateID:       profile.CandidateID,
			MetaSimilarity:    meta,
			ContentSimilarity: content,
			PreScore:          similarity.Clamp01(pre),
		})
	}

	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].PreScore != pool[j].PreScore {
			return pool[i].PreScore > pool[j].PreScore
		}
		return pool[i].CandidateID < pool[j].CandidateID
	})

	if len(pool) > limit {
		pool = pool[:limit]
	}
	return pool, nil
}

// contentSimilarities 通过岗位文本向量在Qdrant召回相似简历
// 向量缺失或检索失败都只降级为空信号，绝不让预筛阶段失败
func (p *Pipeline) contentSimilarities(ctx context.Context, job *models.JobPosting, limit int) map[string]float64 {
	if p.vectors == nil || p.jobVectors == nil {
		return nil
	}

	vector, _, err := p.jobVectors.GetJobVector(ctx, job.JobID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logger.Warn().Err(err).Str("job_id", job.JobID).Msg("读取岗位向量失败，内容相似度降级为空")
		}
		return nil
	}
	if len(vector) == 0 {
		return nil
	}

	results, err := p.vectors.SearchSimilarCandidates(ctx, vector, limit)
	if err != nil {
		logger.Warn().Err(err).Str("job_id", job.JobID).Msg("向量召回失败，内容相似度降级为空")
		return nil
	}

	scores := make(map[string]float64, len(results))
	for _, result := range results {
		candidateID := result.CandidateID()
		if candidateID == "" {
			continue
		}
		scores[candidateID] = similarity.Clamp01(float64(result.Score))
	}
	return scores
}

// metaSimilarity 基于结构化属性的元数据相似度
// 行业、技能、位置三路信号等权平均；双方都有标题向量时加入第四路
func metaSimilarity(job *models.JobPosting, profile *models.CandidateProfile) float64 {
	jobIndustries, _ := models.JSONToStrings(job.IndustriesJSON)
	candIndustries, _ := models.JSONToStrings(profile.IndustriesJSON)
	// 次要相关行业同样参与重合判定
	candRelated, _ := models.JSONToStrings(profile.RelatedIndustriesJSON)
	candIndustries = append(candIndustries, candRelated...)
	jobSkills, _ := models.JSONToStrings(job.HardSkillsJSON)
	candSkills, _ := models.JSONToStrings(profile.HardSkillsJSON)

	total := 0.0
	parts := 0

	total += matcher.IndustryScore(candIndustries, jobIndustries) / 100.0
	parts++

	total += matcher.SkillsCoverageScore(jobSkills, candSkills) / 100.0
	parts++

	total += matcher.LocationRuleScore(job.Location, profile.Location, profile.WillingToRelocate)
	parts++

	jobTitleVec, _ := models.JSONToFloats(job.TitleEmbedding)
	candTitleVec, _ := models.JSONToFloats(profile.TitleEmbedding)
	if len(jobTitleVec) > 0 && len(candTitleVec) > 0 {
		if score, err := similarity.SemanticSimilarity(jobTitleVec, candTitleVec); err == nil {
			total += score
			parts++
		}
	}

	return similarity.Clamp01(total / float64(parts))
}
