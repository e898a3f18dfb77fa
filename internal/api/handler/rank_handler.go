package handler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"talent-rank-go/internal/config"
	"talent-rank-go/internal/constants"
	"talent-rank-go/internal/logger"
	"talent-rank-go/internal/pipeline"
	"talent-rank-go/internal/storage"
	"talent-rank-go/internal/storage/models"
	"talent-rank-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

const rankLockTTL = 2 * time.Minute

// ranker 排名入口，生产实现为 pipeline.Pipeline
type ranker interface {
	Rank(ctx context.Context, jobID string) (*types.RankingOutcome, error)
}

// sessionCache 排名会话缓存与分布式锁（Redis）
type sessionCache interface {
	GetCachedRankResults(ctx context.Context, jobID string, cursor, limit int64) ([]string, int64, error)
	CacheRankResults(ctx context.Context, jobID string, results []types.RankedCandidate, ttl time.Duration) error
	AcquireLock(ctx context.Context, lockKey string, expiration time.Duration) (string, error)
	ReleaseLock(ctx context.Context, lockKey string, lockValue string) (bool, error)
}

// scoreReader 分数缓存表的批量读取（MySQL）
type scoreReader interface {
	GetScoreCacheEntries(ctx context.Context, jobID string, candidateIDs []string) (map[string]*models.MatchScoreCache, error)
}

// rankEventPublisher 排名完成事件发布端
type rankEventPublisher interface {
	PublishRankCompleted(ctx context.Context, event *types.RankCompletedEvent) error
}

// RankHandler 候选人排名查询接口
// 第一次请求触发流水线计算并把结果写入Redis会话缓存（ZSET），
// 后续分页请求直接从缓存取候选人ID、从分数缓存表补全明细；
// 并发的首次请求靠分布式锁收敛成一次流水线运行
type RankHandler struct {
	cfg        *config.Config
	ranker     ranker
	sessions   sessionCache
	scores     scoreReader
	publisher  rankEventPublisher
	sessionTTL time.Duration
}

func NewRankHandler(cfg *config.Config, storageManager *storage.Storage, pipe *pipeline.Pipeline) *RankHandler {
	h := &RankHandler{
		cfg:        cfg,
		ranker:     pipe,
		sessionTTL: config.GetDuration(cfg.Pipeline.SessionCacheTTL, 30*time.Minute),
	}
	if storageManager.Redis != nil {
		h.sessions = storageManager.Redis
	}
	if storageManager.MySQL != nil {
		h.scores = storageManager.MySQL
	}
	if storageManager.RabbitMQ != nil {
		h.publisher = storageManager.RabbitMQ
	}
	return h
}

// HandleRankCandidates GET /api/v1/jobs/:job_id/candidates/rank
func (h *RankHandler) HandleRankCandidates(ctx context.Context, c *app.RequestContext) {
	jobID := c.Param("job_id")
	if jobID == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "缺少job_id"})
		return
	}

	cursor := int64(0)
	size := int64(10)
	if val, err := strconv.ParseInt(c.Query("cursor"), 10, 64); err == nil && val >= 0 {
		cursor = val
	}
	if val, err := strconv.ParseInt(c.Query("size"), 10, 64); err == nil && val > 0 && val <= 100 {
		size = val
	}

	// 会话缓存命中时直接分页返回，不触发流水线
	if resp, ok := h.pageFromSession(ctx, jobID, cursor, size); ok {
		c.JSON(consts.StatusOK, resp)
		return
	}

	if h.sessions != nil {
		lockKey := fmt.Sprintf(constants.KeyRankLock, jobID)
		lockValue, err := h.sessions.AcquireLock(ctx, lockKey, rankLockTTL)
		if err != nil {
			logger.Warn().Err(err).Str("job_id", jobID).Msg("获取排名锁失败，降级为无锁计算")
		} else if lockValue == "" {
			c.JSON(consts.StatusAccepted, utils.H{"message": "排名计算中，请稍后重试"})
			return
		} else {
			defer func() {
				if _, releaseErr := h.sessions.ReleaseLock(ctx, lockKey, lockValue); releaseErr != nil {
					logger.Warn().Err(releaseErr).Str("job_id", jobID).Msg("释放排名锁失败")
				}
			}()
		}
	}

	outcome, err := h.ranker.Rank(ctx, jobID)
	if err != nil {
		logger.Error().Err(err).Str("job_id", jobID).Msg("排名流水线执行失败")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "排名计算失败"})
		return
	}

	h.afterRank(ctx, outcome)

	c.JSON(consts.StatusOK, paginate(outcome.JobID, outcome.Candidates, cursor, size))
}

// pageFromSession 尝试用Redis会话缓存服务分页请求
// 缓存里只有候选人ID序，分数明细从分数缓存表批量补全
func (h *RankHandler) pageFromSession(ctx context.Context, jobID string, cursor, size int64) (*types.PaginatedRankResponse, bool) {
	if h.sessions == nil || h.scores == nil {
		return nil, false
	}

	candidateIDs, totalCount, err := h.sessions.GetCachedRankResults(ctx, jobID, cursor, size)
	if err != nil {
		logger.Warn().Err(err).Str("job_id", jobID).Msg("读取排名会话缓存失败")
		return nil, false
	}
	if totalCount == 0 {
		return nil, false
	}

	candidates := make([]types.RankedCandidate, 0, len(candidateIDs))
	if len(candidateIDs) > 0 {
		entries, err := h.scores.GetScoreCacheEntries(ctx, jobID, candidateIDs)
		if err != nil {
			logger.Warn().Err(err).Str("job_id", jobID).Msg("补全排名明细失败")
			return nil, false
		}
		for _, id := range candidateIDs {
			entry, ok := entries[id]
			if !ok {
				candidates = append(candidates, types.RankedCandidate{CandidateID: id})
				continue
			}
			candidates = append(candidates, types.RankedCandidate{
				CandidateID:     id,
				PreScore:        derefScore(entry.PreScore),
				NeuralRankScore: derefScore(entry.NeuralRankScore),
				LLMScore:        derefScore(entry.LLMScore),
				FinalScore:      derefScore(entry.FinalScore),
				Explanation:     entry.Explanation,
			})
		}
	}

	return &types.PaginatedRankResponse{
		JobID:      jobID,
		Cursor:     cursor,
		NextCursor: nextCursor(cursor, size, totalCount),
		Size:       size,
		TotalCount: totalCount,
		Candidates: candidates,
	}, true
}

// afterRank 流水线成功后的尽力而为收尾：写会话缓存、发完成事件
func (h *RankHandler) afterRank(ctx context.Context, outcome *types.RankingOutcome) {
	if h.sessions != nil && len(outcome.Candidates) > 0 {
		if err := h.sessions.CacheRankResults(ctx, outcome.JobID, outcome.Candidates, h.sessionTTL); err != nil {
			logger.Warn().Err(err).Str("job_id", outcome.JobID).Msg("写入排名会话缓存失败")
		}
	}

	if h.publisher != nil {
		event := &types.RankCompletedEvent{
			JobID:       outcome.JobID,
			PoolSize:    outcome.PoolSize,
			NeuralSize:  outcome.NeuralSize,
			LLMSize:     outcome.LLMSize,
			FinalSize:   len(outcome.Candidates),
			Failures:    len(outcome.Failures),
			CompletedAt: time.Now(),
		}
		if err := h.publisher.PublishRankCompleted(ctx, event); err != nil {
			logger.Warn().Err(err).Str("job_id", outcome.JobID).Msg("发布排名完成事件失败")
		}
	}
}

func paginate(jobID string, candidates []types.RankedCandidate, cursor, size int64) *types.PaginatedRankResponse {
	total := int64(len(candidates))

	start := cursor
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}

	page := make([]types.RankedCandidate, end-start)
	copy(page, candidates[start:end])

	return &types.PaginatedRankResponse{
		JobID:      jobID,
		Cursor:     cursor,
		NextCursor: nextCursor(cursor, size, total),
		Size:       size,
		TotalCount: total,
		Candidates: page,
	}
}

func nextCursor(cursor, size, total int64) int64 {
	next := cursor + size
	if next >= total {
		return cursor
	}
	return next
}

func derefScore(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
