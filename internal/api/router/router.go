package router

import (
	"context"

	"talent-rank-go/internal/api/handler"
	"talent-rank-go/internal/config"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"
)

// RegisterRoutes 注册 API 路由
// 配置了 server.api_key 时排名与评测接口走Bearer鉴权，健康检查始终开放
func RegisterRoutes(h *server.Hertz, cfg *config.Config, rankHandler *handler.RankHandler, benchmarkHandler *handler.BenchmarkHandler) {
	h.GET("/api/v1/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})

	api := h.Group("/api/v1")
	if cfg.Server.APIKey != "" {
		api.Use(keyauth.New(
			keyauth.WithKeyLookUp("header:Authorization", "Bearer"),
			keyauth.WithValidator(func(c context.Context, ctx *app.RequestContext, key string) (bool, error) {
				return key == cfg.Server.APIKey, nil
			}),
		))
	}

	api.GET("/jobs/:job_id/candidates/rank", rankHandler.HandleRankCandidates)
	api.POST("/jobs/:job_id/benchmark", benchmarkHandler.HandleRunBenchmark)
}
