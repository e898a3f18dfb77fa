package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"talent-rank-go/internal/evaluation"
	"talent-rank-go/internal/storage/models"
	"talent-rank-go/internal/types"

	hertzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRanker struct {
	outcome *types.RankingOutcome
	err     error
	calls   int
}

func (f *fakeRanker) Rank(ctx context.Context, jobID string) (*types.RankingOutcome, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.outcome, nil
}

type fakeSessionCache struct {
	cachedIDs   []string
	cachedTotal int64
	lockValue   string
	stored      []types.RankedCandidate
}

func (f *fakeSessionCache) GetCachedRankResults(ctx context.Context, jobID string, cursor, limit int64) ([]string, int64, error) {
	return f.cachedIDs, f.cachedTotal, nil
}

func (f *fakeSessionCache) CacheRankResults(ctx context.Context, jobID string, results []types.RankedCandidate, ttl time.Duration) error {
	f.stored = results
	return nil
}

func (f *fakeSessionCache) AcquireLock(ctx context.Context, lockKey string, expiration time.Duration) (string, error) {
	return f.lockValue, nil
}

func (f *fakeSessionCache) ReleaseLock(ctx context.Context, lockKey string, lockValue string) (bool, error) {
	return true, nil
}

type fakeScoreReader struct {
	entries map[string]*models.MatchScoreCache
}

func (f *fakeScoreReader) GetScoreCacheEntries(ctx context.Context, jobID string, candidateIDs []string) (map[string]*models.MatchScoreCache, error) {
	return f.entries, nil
}

func score(v float64) *float64 { return &v }

func newRankEngine(h *RankHandler) *route.Engine {
	engine := route.NewEngine(hertzconfig.NewOptions(nil))
	engine.GET("/api/v1/jobs/:job_id/candidates/rank", h.HandleRankCandidates)
	return engine
}

func TestHandleRankCandidates(t *testing.T) {
	ranker := &fakeRanker{outcome: &types.RankingOutcome{
		JobID: "job-1",
		Candidates: []types.RankedCandidate{
			{CandidateID: "cand-a", FinalScore: 0.9, Explanation: "高度契合"},
			{CandidateID: "cand-b", FinalScore: 0.7},
		},
		PoolSize: 2, NeuralSize: 2, LLMSize: 2,
	}}
	h := &RankHandler{ranker: ranker, sessionTTL: time.Minute}
	engine := newRankEngine(h)

	w := ut.PerformRequest(engine, "GET", "/api/v1/jobs/job-1/candidates/rank", nil)
	resp := w.Result()
	require.Equal(t, 200, resp.StatusCode())

	var body types.PaginatedRankResponse
	require.NoError(t, json.Unmarshal(resp.Body(), &body))
	assert.Equal(t, "job-1", body.JobID)
	assert.Equal(t, int64(2), body.TotalCount)
	require.Len(t, body.Candidates, 2)
	assert.Equal(t, "cand-a", body.Candidates[0].CandidateID)
	assert.Equal(t, 1, ranker.calls)
}

func TestHandleRankCandidatesPagination(t *testing.T) {
	var candidates []types.RankedCandidate
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		candidates = append(candidates, types.RankedCandidate{CandidateID: id})
	}
	h := &RankHandler{
		ranker:     &fakeRanker{outcome: &types.RankingOutcome{JobID: "job-1", Candidates: candidates}},
		sessionTTL: time.Minute,
	}
	engine := newRankEngine(h)

	w := ut.PerformRequest(engine, "GET", "/api/v1/jobs/job-1/candidates/rank?cursor=2&size=2", nil)
	resp := w.Result()
	require.Equal(t, 200, resp.StatusCode())

	var body types.PaginatedRankResponse
	require.NoError(t, json.Unmarshal(resp.Body(), &body))
	assert.Equal(t, int64(5), body.TotalCount)
	require.Len(t, body.Candidates, 2)
	assert.Equal(t, "c", body.Candidates[0].CandidateID)
	assert.Equal(t, int64(4), body.NextCursor)
}

func TestHandleRankCandidatesPipelineError(t *testing.T) {
	h := &RankHandler{ranker: &fakeRanker{err: errors.New("connection refused")}, sessionTTL: time.Minute}
	engine := newRankEngine(h)

	w := ut.PerformRequest(engine, "GET", "/api/v1/jobs/job-1/candidates/rank", nil)
	assert.Equal(t, 500, w.Result().StatusCode())
}

func TestHandleRankCandidatesSessionHit(t *testing.T) {
	ranker := &fakeRanker{}
	h := &RankHandler{
		ranker: ranker,
		sessions: &fakeSessionCache{
			cachedIDs:   []string{"cand-a"},
			cachedTotal: 1,
		},
		scores: &fakeScoreReader{entries: map[string]*models.MatchScoreCache{
			"cand-a": {
				JobID:       "job-1",
				CandidateID: "cand-a",
				PreScore:    score(0.5),
				FinalScore:  score(0.68),
				Explanation: "经验契合",
			},
		}},
		sessionTTL: time.Minute,
	}
	engine := newRankEngine(h)

	w := ut.PerformRequest(engine, "GET", "/api/v1/jobs/job-1/candidates/rank", nil)
	resp := w.Result()
	require.Equal(t, 200, resp.StatusCode())

	var body types.PaginatedRankResponse
	require.NoError(t, json.Unmarshal(resp.Body(), &body))
	require.Len(t, body.Candidates, 1)
	assert.InDelta(t, 0.68, body.Candidates[0].FinalScore, 1e-9)
	assert.Equal(t, "经验契合", body.Candidates[0].Explanation)
	assert.Equal(t, 0, ranker.calls, "会话缓存命中时不应触发流水线")
}

func TestHandleRankCandidatesLockContention(t *testing.T) {
	ranker := &fakeRanker{}
	h := &RankHandler{
		ranker:     ranker,
		sessions:   &fakeSessionCache{lockValue: ""},
		scores:     &fakeScoreReader{},
		sessionTTL: time.Minute,
	}
	engine := newRankEngine(h)

	w := ut.PerformRequest(engine, "GET", "/api/v1/jobs/job-1/candidates/rank", nil)
	assert.Equal(t, 202, w.Result().StatusCode(), "别的请求持有锁时返回202")
	assert.Equal(t, 0, ranker.calls)
}

func TestHandleRankCandidatesCachesResult(t *testing.T) {
	sessions := &fakeSessionCache{lockValue: "lock-1"}
	h := &RankHandler{
		ranker: &fakeRanker{outcome: &types.RankingOutcome{
			JobID:      "job-1",
			Candidates: []types.RankedCandidate{{CandidateID: "cand-a", FinalScore: 0.9}},
		}},
		sessions:   sessions,
		scores:     &fakeScoreReader{},
		sessionTTL: time.Minute,
	}
	engine := newRankEngine(h)

	w := ut.PerformRequest(engine, "GET", "/api/v1/jobs/job-1/candidates/rank", nil)
	require.Equal(t, 200, w.Result().StatusCode())
	require.Len(t, sessions.stored, 1, "排名结果应写入会话缓存")
	assert.Equal(t, "cand-a", sessions.stored[0].CandidateID)
}

type fakeBenchmarkRunner struct {
	result *models.BenchmarkResult
	err    error
}

func (f *fakeBenchmarkRunner) RunBenchmark(ctx context.Context, jobID string, algorithmVersion string) (*models.BenchmarkResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newBenchmarkEngine(h *BenchmarkHandler) *route.Engine {
	engine := route.NewEngine(hertzconfig.NewOptions(nil))
	engine.POST("/api/v1/jobs/:job_id/benchmark", h.HandleRunBenchmark)
	return engine
}

func TestHandleRunBenchmark(t *testing.T) {
	h := NewBenchmarkHandler(&fakeBenchmarkRunner{result: &models.BenchmarkResult{
		RunID:            "run-1",
		JobID:            "job-1",
		AlgorithmVersion: "cascade-v1",
		PrecisionAt5:     0.6,
		MRR:              1.0,
	}})
	engine := newBenchmarkEngine(h)

	payload := []byte(`{"algorithm_version": "cascade-v1"}`)
	w := ut.PerformRequest(engine, "POST", "/api/v1/jobs/job-1/benchmark",
		&ut.Body{Body: bytes.NewReader(payload), Len: len(payload)},
		ut.Header{Key: "Content-Type", Value: "application/json"})
	resp := w.Result()
	require.Equal(t, 200, resp.StatusCode())

	var body types.BenchmarkRunResponse
	require.NoError(t, json.Unmarshal(resp.Body(), &body))
	assert.Equal(t, "run-1", body.RunID)
	assert.InDelta(t, 0.6, body.PrecisionAt5, 1e-9)
}

func TestHandleRunBenchmarkGroundTruthMissing(t *testing.T) {
	h := NewBenchmarkHandler(&fakeBenchmarkRunner{err: evaluation.ErrGroundTruthMissing})
	engine := newBenchmarkEngine(h)

	w := ut.PerformRequest(engine, "POST", "/api/v1/jobs/job-1/benchmark", nil)
	assert.Equal(t, 404, w.Result().StatusCode())
}
