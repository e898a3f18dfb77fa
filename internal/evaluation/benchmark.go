package evaluation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"talent-rank-go/internal/logger"
	"talent-rank-go/internal/storage/models"
	"talent-rank-go/internal/types"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// ErrGroundTruthMissing 岗位没有可用的人工标注真值
// 没有真值的评测没有意义，这是硬错误而不是空指标
var ErrGroundTruthMissing = errors.New("缺少基准真值标注")

// groundTruthStore 评测所需的关系库读写面
type groundTruthStore interface {
	GetGroundTruth(ctx context.Context, jobID string) (*models.GroundTruth, error)
	InsertBenchmarkResult(ctx context.Context, result *models.BenchmarkResult) error
}

// ranker 被评测的排名入口，生产实现为 pipeline.Pipeline
type ranker interface {
	Rank(ctx context.Context, jobID string) (*types.RankingOutcome, error)
}

// EventPublisher 评测完成事件的发布端，允许为nil（不发事件）
type EventPublisher interface {
	PublishBenchmarkCompleted(ctx context.Context, event *types.BenchmarkCompletedEvent) error
}

// Harness 基准评测入口
// 独立于排名流水线运行：调用流水线的公开排名输出，与人工标注真值
// 对比计算检索质量指标，结果追加写入 benchmark_results 表
type Harness struct {
	store     groundTruthStore
	ranker    ranker
	publisher EventPublisher
	now       func() time.Time
	log       zerolog.Logger
}

func NewHarness(store groundTruthStore, ranker ranker, publisher EventPublisher) (*Harness, error) {
	if store == nil {
		return nil, fmt.Errorf("真值存储不能为空")
	}
	if ranker == nil {
		return nil, fmt.Errorf("排名入口不能为空")
	}
	return &Harness{
		store:     store,
		ranker:    ranker,
		publisher: publisher,
		now:       time.Now,
		log:       logger.WithComponent("evaluation"),
	}, nil
}

// RunBenchmark 对单个岗位执行一次评测
// 真值缺失或为空时返回 ErrGroundTruthMissing；结果行落库成功后
// 尽力发布 benchmark.completed 事件，发布失败不影响返回值
func (h *Harness) RunBenchmark(ctx context.Context, jobID string, algorithmVersion string) (*models.BenchmarkResult, error) {
	truth, err := h.store.GetGroundTruth(ctx, jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: job_id=%s", ErrGroundTruthMissing, jobID)
		}
		return nil, fmt.Errorf("读取基准真值失败: %w", err)
	}

	relevantIDs, err := models.JSONToStrings(truth.RelevantCandidateJSON)
	if err != nil {
		return nil, fmt.Errorf("解析真值候选人列表失败: %w", err)
	}
	if len(relevantIDs) == 0 {
		return nil, fmt.Errorf("%w: job_id=%s 的标注列表为空", ErrGroundTruthMissing, jobID)
	}

	relevant := make(map[string]struct{}, len(relevantIDs))
	for _, id := range relevantIDs {
		relevant[id] = struct{}{}
	}

	outcome, err := h.ranker.Rank(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("评测运行排名流水线失败: %w", err)
	}

	ranked := make([]string, len(outcome.Candidates))
	for i, c := range outcome.Candidates {
		ranked[i] = c.CandidateID
	}

	metrics := ComputeMetrics(ranked, relevant)

	runID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("生成评测运行ID失败: %w", err)
	}

	result := &models.BenchmarkResult{
		RunID:            runID.String(),
		JobID:            jobID,
		AlgorithmVersion: algorithmVersion,
		PrecisionAt5:     metrics.PrecisionAt5,
		PrecisionAt10:    metrics.PrecisionAt10,
		RecallAt5:        metrics.RecallAt5,
		RecallAt10:       metrics.RecallAt10,
		NDCGAt5:          metrics.NDCGAt5,
		NDCGAt10:         metrics.NDCGAt10,
		MRR:              metrics.MRR,
		PoolSize:         outcome.PoolSize,
		NeuralSize:       outcome.NeuralSize,
		LLMSize:          outcome.LLMSize,
		FinalSize:        len(outcome.Candidates),
	}

	if err := h.store.InsertBenchmarkResult(ctx, result); err != nil {
		return nil, fmt.Errorf("写入评测结果失败: %w", err)
	}

	if h.publisher != nil {
		event := &types.BenchmarkCompletedEvent{
			RunID:            result.RunID,
			JobID:            jobID,
			AlgorithmVersion: algorithmVersion,
			PrecisionAt5:     metrics.PrecisionAt5,
			NDCGAt10:         metrics.NDCGAt10,
			MRR:              metrics.MRR,
			CompletedAt:      h.now(),
		}
		if pubErr := h.publisher.PublishBenchmarkCompleted(ctx, event); pubErr != nil {
			h.log.Warn().Err(pubErr).Str("run_id", result.RunID).Str("job_id", jobID).
				Msg("发布评测完成事件失败，忽略并继续")
		}
	}

	return result, nil
}

// ComputeMetrics 对一份排名输出计算全部七项指标，K固定为5和10
func ComputeMetrics(ranked []string, relevant map[string]struct{}) types.BenchmarkMetrics {
	return types.BenchmarkMetrics{
		PrecisionAt5:  PrecisionAtK(ranked, relevant, 5),
		PrecisionAt10: PrecisionAtK(ranked, relevant, 10),
		RecallAt5:     RecallAtK(ranked, relevant, 5),
		RecallAt10:    RecallAtK(ranked, relevant, 10),
		NDCGAt5:       NDCGAtK(ranked, relevant, 5),
		NDCGAt10:      NDCGAtK(ranked, relevant, 10),
		MRR:           MRR(ranked, relevant),
	}
}
