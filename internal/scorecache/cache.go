package scorecache

import (
	"context"
	"time"

	"talent-rank-go/internal/constants"
	"talent-rank-go/internal/logger"
	"talent-rank-go/internal/similarity"
	"talent-rank-go/internal/storage/models"
)

// scoreStore 分数缓存表的读写接口，由storage.MySQL实现
type scoreStore interface {
	GetScoreCacheEntries(ctx context.Context, jobID string, candidateIDs []string) (map[string]*models.MatchScoreCache, error)
	UpsertScoreCache(ctx context.Context, entry *models.MatchScoreCache, updateColumns []string) error
}

// Snapshot 单个 (岗位, 候选人) 的缓存快照
// 各字段独立判新：过期的字段以nil/空串呈现，调用方视同缓存未命中
type Snapshot struct {
	NeuralScore *float64
	LLMScore    *float64
	Explanation string
}

// Cache 在 match_score_cache 表之上套一层按字段TTL的新鲜度语义。
// 神经分与LLM分共用7天窗口，解释文本保留30天；
// 写入都是尽力而为，失败只记日志，绝不阻断排名流程。
type Cache struct {
	store scoreStore
	now   func() time.Time
}

func NewCache(store scoreStore) *Cache {
	return &Cache{
		store: store,
		now:   time.Now,
	}
}

// Load 批量读取候选人的缓存快照，过期字段已被剔除
// 读取失败时返回空map，调用方按全量未命中处理
func (c *Cache) Load(ctx context.Context, jobID string, candidateIDs []string) map[string]Snapshot {
	snapshots := make(map[string]Snapshot, len(candidateIDs))
	if len(candidateIDs) == 0 {
		return snapshots
	}

	entries, err := c.store.GetScoreCacheEntries(ctx, jobID, candidateIDs)
	if err != nil {
		logger.Warn().Err(err).Str("job_id", jobID).Int("candidates", len(candidateIDs)).
			Msg("读取分数缓存失败，按全量未命中处理")
		return snapshots
	}

	now := c.now()
	for candidateID, entry := range entries {
		snapshots[candidateID] = c.toSnapshot(entry, now)
	}
	return snapshots
}

func (c *Cache) toSnapshot(entry *models.MatchScoreCache, now time.Time) Snapshot {
	var snap Snapshot
	age := now.Sub(entry.UpdatedAt)

	if age <= constants.PairwiseScoreTTL {
		snap.NeuralScore = entry.NeuralRankScore
		snap.LLMScore = entry.LLMScore
	}
	if age <= constants.ExplanationTTL {
		snap.Explanation = entry.Explanation
	}
	return snap
}

// PutNeuralScore 写入单个候选人的神经重排分
// 所有分数入库前统一截断到[0,1]，表里不会出现域外值
func (c *Cache) PutNeuralScore(ctx context.Context, jobID, candidateID string, score float64) {
	score = similarity.Clamp01(score)
	entry := &models.MatchScoreCache{
		JobID:           jobID,
		CandidateID:     candidateID,
		NeuralRankScore: &score,
	}
	c.upsert(ctx, entry, []string{"neural_rank_score"})
}

// PutLLMResult 写入单个候选人的LLM分与解释
func (c *Cache) PutLLMResult(ctx context.Context, jobID, candidateID string, score float64, explanation string) {
	score = similarity.Clamp01(score)
	entry := &models.MatchScoreCache{
		JobID:       jobID,
		CandidateID: candidateID,
		LLMScore:    &score,
		Explanation: explanation,
	}
	c.upsert(ctx, entry, []string{"llm_score", "explanation"})
}

// PutFinalScores 写入融合结果（预筛分与最终分）
func (c *Cache) PutFinalScores(ctx context.Context, jobID, candidateID string, preScore, finalScore float64) {
	preScore = similarity.Clamp01(preScore)
	finalScore = similarity.Clamp01(finalScore)
	entry := &models.MatchScoreCache{
		JobID:       jobID,
		CandidateID: candidateID,
		PreScore:    &preScore,
		FinalScore:  &finalScore,
	}
	c.upsert(ctx, entry, []string{"pre_score", "final_score"})
}

// LoadExplanations 读取一组候选人的未过期解释文本
func (c *Cache) LoadExplanations(ctx context.Context, jobID string, candidateIDs []string) map[string]string {
	explanations := make(map[string]string, len(candidateIDs))
	for candidateID, snap := range c.Load(ctx, jobID, candidateIDs) {
		if snap.Explanation != "" {
			explanations[candidateID] = snap.Explanation
		}
	}
	return explanations
}

func (c *Cache) upsert(ctx context.Context, entry *models.MatchScoreCache, columns []string) {
	if err := c.store.UpsertScoreCache(ctx, entry, columns); err != nil {
		logger.Warn().Err(err).
			Str("job_id", entry.JobID).
			Str("candidate_id", entry.CandidateID).
			Strs("columns", columns).
			Msg("写入分数缓存失败，忽略并继续")
	}
}
