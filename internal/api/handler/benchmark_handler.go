package handler

import (
	"context"
	"encoding/json"
	"errors"

	"talent-rank-go/internal/constants"
	"talent-rank-go/internal/evaluation"
	"talent-rank-go/internal/logger"
	"talent-rank-go/internal/storage/models"
	"talent-rank-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// benchmarkRunner 评测入口，生产实现为 evaluation.Harness
type benchmarkRunner interface {
	RunBenchmark(ctx context.Context, jobID string, algorithmVersion string) (*models.BenchmarkResult, error)
}

// BenchmarkHandler 基准评测接口
type BenchmarkHandler struct {
	harness benchmarkRunner
}

func NewBenchmarkHandler(harness benchmarkRunner) *BenchmarkHandler {
	return &BenchmarkHandler{harness: harness}
}

// HandleRunBenchmark POST /api/v1/jobs/:job_id/benchmark
func (h *BenchmarkHandler) HandleRunBenchmark(ctx context.Context, c *app.RequestContext) {
	jobID := c.Param("job_id")
	if jobID == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "缺少job_id"})
		return
	}

	var req types.BenchmarkRunRequest
	if body := c.Request.Body(); len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			c.JSON(consts.StatusBadRequest, utils.H{"error": "请求体格式错误"})
			return
		}
	}
	if req.AlgorithmVersion == "" {
		req.AlgorithmVersion = constants.AlgorithmVersion
	}

	result, err := h.harness.RunBenchmark(ctx, jobID, req.AlgorithmVersion)
	if err != nil {
		if errors.Is(err, evaluation.ErrGroundTruthMissing) {
			c.JSON(consts.StatusNotFound, utils.H{"error": "该岗位没有基准真值标注"})
			return
		}
		logger.Error().Err(err).Str("job_id", jobID).Msg("评测运行失败")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "评测运行失败"})
		return
	}

	c.JSON(consts.StatusOK, types.BenchmarkRunResponse{
		RunID:            result.RunID,
		JobID:            result.JobID,
		AlgorithmVersion: result.AlgorithmVersion,
		PrecisionAt5:     result.PrecisionAt5,
		PrecisionAt10:    result.PrecisionAt10,
		RecallAt5:        result.RecallAt5,
		RecallAt10:       result.RecallAt10,
		NDCGAt5:          result.NDCGAt5,
		NDCGAt10:         result.NDCGAt10,
		MRR:              result.MRR,
	})
}
