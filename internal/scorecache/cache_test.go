package scorecache

import (
	"context"
	"errors"
	"testing"
	"time"

	"talent-rank-go/internal/storage/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScoreStore struct {
	entries map[string]*models.MatchScoreCache
	loadErr error
	upserts []*models.MatchScoreCache
	columns [][]string
}

func (f *fakeScoreStore) GetScoreCacheEntries(ctx context.Context, jobID string, candidateIDs []string) (map[string]*models.MatchScoreCache, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	result := make(map[string]*models.MatchScoreCache)
	for _, id := range candidateIDs {
		if entry, ok := f.entries[id]; ok {
			result[id] = entry
		}
	}
	return result, nil
}

func (f *fakeScoreStore) UpsertScoreCache(ctx context.Context, entry *models.MatchScoreCache, updateColumns []string) error {
	f.upserts = append(f.upserts, entry)
	f.columns = append(f.columns, updateColumns)
	return nil
}

func floatPtr(v float64) *float64 { return &v }

func TestLoadFreshEntry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeScoreStore{entries: map[string]*models.MatchScoreCache{
		"cand-a": {
			JobID:           "job-1",
			CandidateID:     "cand-a",
			NeuralRankScore: floatPtr(0.8),
			LLMScore:        floatPtr(0.7),
			Explanation:     "技术栈高度匹配",
			UpdatedAt:       now.Add(-24 * time.Hour),
		},
	}}
	cache := NewCache(store)
	cache.now = func() time.Time { return now }

	snaps := cache.Load(context.Background(), "job-1", []string{"cand-a", "cand-b"})
	require.Len(t, snaps, 1)

	snap := snaps["cand-a"]
	require.NotNil(t, snap.NeuralScore)
	assert.InDelta(t, 0.8, *snap.NeuralScore, 1e-9)
	require.NotNil(t, snap.LLMScore)
	assert.InDelta(t, 0.7, *snap.LLMScore, 1e-9)
	assert.Equal(t, "技术栈高度匹配", snap.Explanation)
}

func TestLoadExpiredScoresKeepExplanation(t *testing.T) {
	// 8天前写入：分数已超7天窗口，解释仍在30天窗口内
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeScoreStore{entries: map[string]*models.MatchScoreCache{
		"cand-a": {
			JobID:           "job-1",
			CandidateID:     "cand-a",
			NeuralRankScore: floatPtr(0.8),
			LLMScore:        floatPtr(0.7),
			Explanation:     "经验契合",
			UpdatedAt:       now.Add(-8 * 24 * time.Hour),
		},
	}}
	cache := NewCache(store)
	cache.now = func() time.Time { return now }

	snap := cache.Load(context.Background(), "job-1", []string{"cand-a"})["cand-a"]
	assert.Nil(t, snap.NeuralScore, "超过7天的神经分应视为未命中")
	assert.Nil(t, snap.LLMScore, "超过7天的LLM分应视为未命中")
	assert.Equal(t, "经验契合", snap.Explanation)
}

func TestLoadAllExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeScoreStore{entries: map[string]*models.MatchScoreCache{
		"cand-a": {
			JobID:       "job-1",
			CandidateID: "cand-a",
			LLMScore:    floatPtr(0.7),
			Explanation: "早已过期",
			UpdatedAt:   now.Add(-31 * 24 * time.Hour),
		},
	}}
	cache := NewCache(store)
	cache.now = func() time.Time { return now }

	snap := cache.Load(context.Background(), "job-1", []string{"cand-a"})["cand-a"]
	assert.Nil(t, snap.LLMScore)
	assert.Empty(t, snap.Explanation, "超过30天的解释应被剔除")
}

func TestLoadStoreFailureIsMiss(t *testing.T) {
	store := &fakeScoreStore{loadErr: errors.New("connection refused")}
	cache := NewCache(store)

	snaps := cache.Load(context.Background(), "job-1", []string{"cand-a"})
	assert.Empty(t, snaps, "读取失败时应按全量未命中处理而不是报错")
}

func TestPutMethodsUpdateOnlyOwnColumns(t *testing.T) {
	store := &fakeScoreStore{}
	cache := NewCache(store)
	ctx := context.Background()

	cache.PutNeuralScore(ctx, "job-1", "cand-a", 0.8)
	cache.PutLLMResult(ctx, "job-1", "cand-a", 0.7, "优势明显")
	cache.PutFinalScores(ctx, "job-1", "cand-a", 0.6, 0.68)

	require.Len(t, store.upserts, 3)
	assert.Equal(t, []string{"neural_rank_score"}, store.columns[0])
	assert.Equal(t, []string{"llm_score", "explanation"}, store.columns[1])
	assert.Equal(t, []string{"pre_score", "final_score"}, store.columns[2])

	require.NotNil(t, store.upserts[2].FinalScore)
	assert.InDelta(t, 0.68, *store.upserts[2].FinalScore, 1e-9)
}

func TestPutMethodsClampScores(t *testing.T) {
	store := &fakeScoreStore{}
	cache := NewCache(store)
	ctx := context.Background()

	cache.PutNeuralScore(ctx, "job-1", "cand-a", 1.2)
	cache.PutLLMResult(ctx, "job-1", "cand-a", -0.1, "解析异常")
	cache.PutFinalScores(ctx, "job-1", "cand-a", 1.5, -2.0)

	require.Len(t, store.upserts, 3)
	assert.InDelta(t, 1.0, *store.upserts[0].NeuralRankScore, 1e-9, "域外值截断到上界")
	assert.InDelta(t, 0.0, *store.upserts[1].LLMScore, 1e-9, "域外值截断到下界")
	assert.InDelta(t, 1.0, *store.upserts[2].PreScore, 1e-9)
	assert.InDelta(t, 0.0, *store.upserts[2].FinalScore, 1e-9)
}

func TestLoadExplanations(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeScoreStore{entries: map[string]*models.MatchScoreCache{
		"cand-a": {JobID: "job-1", CandidateID: "cand-a", Explanation: "契合度高", UpdatedAt: now.Add(-time.Hour)},
		"cand-b": {JobID: "job-1", CandidateID: "cand-b", UpdatedAt: now.Add(-time.Hour)},
	}}
	cache := NewCache(store)
	cache.now = func() time.Time { return now }

	explanations := cache.LoadExplanations(context.Background(), "job-1", []string{"cand-a", "cand-b"})
	assert.Equal(t, map[string]string{"cand-a": "契合度高"}, explanations)
}
