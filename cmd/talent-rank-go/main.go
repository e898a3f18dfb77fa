package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"talent-rank-go/internal/api/handler"
	"talent-rank-go/internal/api/router"
	"talent-rank-go/internal/config"
	"talent-rank-go/internal/evaluation"
	"talent-rank-go/internal/logger"
	"talent-rank-go/internal/pipeline"
	"talent-rank-go/internal/scorecache"
	"talent-rank-go/internal/scorer"
	"talent-rank-go/internal/storage"
	"talent-rank-go/internal/tracing"

	"github.com/cloudwego/hertz/pkg/app/server"
	hertzconfig "github.com/cloudwego/hertz/pkg/common/config"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/spf13/pflag"
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "配置文件路径")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("加载配置失败")
	}

	initLogger(cfg)
	glog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Tracing.Enabled {
		shutdownTracing, err := tracing.InitProvider(ctx, cfg.Tracing.OTLPEndpoint)
		if err != nil {
			glog.Fatalf("初始化Tracing失败: %v", err)
		}
		defer func() {
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			if err := shutdownTracing(shutdownCtx); err != nil {
				glog.Warnf("关闭Tracing导出器失败: %v", err)
			}
		}()
		glog.Info("OpenTelemetry导出器初始化成功")
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	glog.Info("存储服务初始化成功")

	if storageManager.MySQL == nil {
		glog.Fatalf("MySQL是排名服务的硬依赖，未初始化")
	}

	scoringService, err := buildScoringService(cfg)
	if err != nil {
		glog.Fatalf("初始化打分服务失败: %v", err)
	}
	glog.Info("LLM打分服务初始化成功")

	deps := pipeline.Dependencies{
		Store:  storageManager.MySQL,
		Cache:  scorecache.NewCache(storageManager.MySQL),
		Scorer: scoringService,
	}
	if storageManager.Qdrant != nil {
		deps.Vectors = storageManager.Qdrant
	}
	if storageManager.Redis != nil {
		deps.JobVectors = storageManager.Redis
	}
	if storageManager.MinIO != nil {
		deps.Texts = storageManager.MinIO
	}

	pipe, err := pipeline.NewPipeline(deps, &cfg.Pipeline)
	if err != nil {
		glog.Fatalf("初始化排名流水线失败: %v", err)
	}
	glog.Info("排名流水线初始化成功")

	var publisher evaluation.EventPublisher
	if storageManager.RabbitMQ != nil {
		publisher = storageManager.RabbitMQ
	}
	harness, err := evaluation.NewHarness(storageManager.MySQL, pipe, publisher)
	if err != nil {
		glog.Fatalf("初始化评测模块失败: %v", err)
	}

	rankHandler := handler.NewRankHandler(cfg, storageManager, pipe)
	benchmarkHandler := handler.NewBenchmarkHandler(harness)

	serverOpts := []hertzconfig.Option{
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
	}
	var tracerCfg *hertztracing.Config
	if cfg.Tracing.Enabled {
		tracer, tCfg := hertztracing.NewServerTracer()
		tracerCfg = tCfg
		serverOpts = append(serverOpts, tracer)
	}

	h := server.New(serverOpts...)
	if tracerCfg != nil {
		h.Use(hertztracing.ServerMiddleware(tracerCfg))
	}

	router.RegisterRoutes(h, cfg, rankHandler, benchmarkHandler)
	glog.Info("HTTP路由注册成功")

	glog.Infof("HTTP服务器启动中，监听地址: %s", cfg.Server.Address)
	go func() {
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Fatalf("服务器关闭失败: %v", err)
	}
	glog.Info("优雅退出完成")
}

func initLogger(cfg *config.Config) {
	logger.Init(logger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})
	logger.Logger = logger.Logger.With().
		Str("app", "talent-rank-go").
		Logger()

	glog.SetLogger(hertzadapter.From(logger.Logger))
}

// buildScoringService 按配置组装LLM打分客户端
// 单对打分与批量评估的模型可独立配置，未配置时都用默认模型
func buildScoringService(cfg *config.Config) (scorer.ScoringService, error) {
	pairwiseName := cfg.Scorer.PairwiseModel
	if pairwiseName == "" {
		pairwiseName = cfg.GetModelForTask("pairwise_scoring")
	}

	pairwiseModel, err := scorer.NewAliyunQwenChatModel(cfg.Aliyun.APIKey, pairwiseName, cfg.Aliyun.APIURL)
	if err != nil {
		return nil, err
	}
	pairwiseModel.WithSamplingParams(cfg.Scorer.Temperature, cfg.Scorer.MaxTokens)

	llmScorer, err := scorer.NewLLMScorer(pairwiseModel, &cfg.Scorer)
	if err != nil {
		return nil, err
	}

	batchName := cfg.Scorer.BatchModel
	if batchName == "" {
		batchName = cfg.GetModelForTask("batch_evaluation")
	}
	if batchName != pairwiseName {
		batchModel, err := scorer.NewAliyunQwenChatModel(cfg.Aliyun.APIKey, batchName, cfg.Aliyun.APIURL)
		if err != nil {
			return nil, err
		}
		batchModel.WithSamplingParams(cfg.Scorer.Temperature, cfg.Scorer.MaxTokens)
		llmScorer.WithBatchModel(batchModel)
	}

	return llmScorer, nil
}
