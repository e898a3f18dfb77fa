package main

import (
	"context"
	"time"

	"talent-rank-go/internal/config"
	"talent-rank-go/internal/constants"
	"talent-rank-go/internal/evaluation"
	"talent-rank-go/internal/logger"
	"talent-rank-go/internal/matcher"
	"talent-rank-go/internal/pipeline"
	"talent-rank-go/internal/scorecache"
	"talent-rank-go/internal/scorer"
	"talent-rank-go/internal/storage"
	"talent-rank-go/internal/storage/models"

	"github.com/spf13/pflag"
)

// 离线评测入口：对单个岗位跑一遍级联排名并与人工标注真值对比，
// 结果追加写入 benchmark_results 表
func main() {
	var (
		configPath       string
		jobID            string
		algorithmVersion string
		industriesPolicy string
		timeout          time.Duration
	)
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "配置文件路径")
	pflag.StringVar(&jobID, "job-id", "", "待评测的岗位ID（必填）")
	pflag.StringVar(&algorithmVersion, "version", constants.AlgorithmVersion, "算法版本标签")
	pflag.StringVar(&industriesPolicy, "industries-policy", "binary",
		"行业评分对比策略：binary 或 weighted（额外输出废弃加权公式的对比）")
	pflag.DurationVar(&timeout, "timeout", 10*time.Minute, "整体运行超时")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("加载配置失败")
	}
	logger.Init(logger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})

	if jobID == "" {
		logger.Fatal().Msg("--job-id 不能为空")
	}
	if industriesPolicy != "binary" && industriesPolicy != "weighted" {
		logger.Fatal().Str("policy", industriesPolicy).Msg("不支持的行业评分策略")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer storageManager.Close()

	if storageManager.MySQL == nil {
		logger.Fatal().Msg("评测需要MySQL，未初始化")
	}

	chatModel, err := scorer.NewAliyunQwenChatModel(cfg.Aliyun.APIKey, cfg.GetModelForTask("pairwise_scoring"), cfg.Aliyun.APIURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化LLM模型失败")
	}
	chatModel.WithSamplingParams(cfg.Scorer.Temperature, cfg.Scorer.MaxTokens)

	scoringService, err := scorer.NewLLMScorer(chatModel, &cfg.Scorer)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化打分服务失败")
	}

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
		logger.Fatal().Err(err).Msg("初始化排名流水线失败")
	}

	var publisher evaluation.EventPublisher
	if storageManager.RabbitMQ != nil {
		publisher = storageManager.RabbitMQ
	}
	harness, err := evaluation.NewHarness(storageManager.MySQL, pipe, publisher)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化评测模块失败")
	}

	result, err := harness.RunBenchmark(ctx, jobID, algorithmVersion)
	if err != nil {
		logger.Fatal().Err(err).Str("job_id", jobID).Msg("评测运行失败")
	}

	logger.Info().
		Str("run_id", result.RunID).
		Str("job_id", result.JobID).
		Str("algorithm_version", result.AlgorithmVersion).
		Float64("precision_at_5", result.PrecisionAt5).
		Float64("precision_at_10", result.PrecisionAt10).
		Float64("recall_at_5", result.RecallAt5).
		Float64("recall_at_10", result.RecallAt10).
		Float64("ndcg_at_5", result.NDCGAt5).
		Float64("ndcg_at_10", result.NDCGAt10).
		Float64("mrr", result.MRR).
		Int("pool_size", result.PoolSize).
		Int("final_size", result.FinalSize).
		Msg("评测完成")

	if industriesPolicy == "weighted" {
		compareIndustryPolicies(ctx, storageManager.MySQL, jobID)
	}
}

// compareIndustryPolicies 对比二值行业评分与废弃的加权公式
// 只输出对比日志，不影响排名与评测结果
func compareIndustryPolicies(ctx context.Context, db *storage.MySQL, jobID string) {
	job, err := db.GetJobPostingByID(ctx, jobID)
	if err != nil {
		logger.Warn().Err(err).Msg("行业评分对比：读取岗位失败")
		return
	}
	profiles, err := db.ListActiveCandidateProfiles(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("行业评分对比：读取候选人失败")
		return
	}

	jobIndustries, _ := models.JSONToStrings(job.IndustriesJSON)
	jobEmbedding, _ := models.JSONToFloats(job.IndustryEmbedding)

	for i := range profiles {
		profile := &profiles[i]
		candIndustries, _ := models.JSONToStrings(profile.IndustriesJSON)
		candRelated, _ := models.JSONToStrings(profile.RelatedIndustriesJSON)
		candIndustries = append(candIndustries, candRelated...)
		candEmbedding, _ := models.JSONToFloats(profile.IndustryEmbedding)

		binary := matcher.IndustryScore(candIndustries, jobIndustries)
		weighted, err := matcher.WeightedIndustryScore(candIndustries, jobIndustries, candEmbedding, jobEmbedding)
		if err != nil {
			logger.Warn().Err(err).Str("candidate_id", profile.CandidateID).Msg("加权行业评分计算失败")
			continue
		}

		logger.Info().
			Str("candidate_id", profile.CandidateID).
			Float64("binary_score", binary).
			Float64("weighted_score", weighted).
			Float64("delta", weighted-binary).
			Msg("行业评分策略对比")
	}
}
