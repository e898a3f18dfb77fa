package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"talent-rank-go/internal/config"
	"talent-rank-go/internal/constants"
	"talent-rank-go/internal/logger"
	"talent-rank-go/internal/scorecache"
	"talent-rank-go/internal/scorer"
	"talent-rank-go/internal/similarity"
	"talent-rank-go/internal/storage"
	"talent-rank-go/internal/storage/models"
	"talent-rank-go/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var pipelineTracer = otel.Tracer("talent-rank-go/pipeline")

// 各阶段在失败记录中的名称
const (
	stageNeuralRerank = "neural_rerank"
	stageLLMBatch     = "llm_batch"
)

// candidateStore 流水线依赖的关系库读取面
type candidateStore interface {
	GetJobPostingByID(ctx context.Context, jobID string) (*models.JobPosting, error)
	ListActiveCandidateProfiles(ctx context.Context) ([]models.CandidateProfile, error)
	GetCandidateProfilesByIDs(ctx context.Context, candidateIDs []string) ([]models.CandidateProfile, error)
}

// vectorSearcher 简历向量召回
type vectorSearcher interface {
	SearchSimilarCandidates(ctx context.Context, queryVector []float64, limit int) ([]storage.SearchResult, error)
}

// jobVectorCache 岗位文本向量的缓存读取
type jobVectorCache interface {
	GetJobVector(ctx context.Context, jobID string) ([]float64, string, error)
}

// parsedTextFetcher 从对象存储取回解析后的简历文本
type parsedTextFetcher interface {
	GetParsedText(ctx context.Context, objectName string) (string, error)
}

// scoreCache 带TTL语义的分数缓存
type scoreCache interface {
	Load(ctx context.Context, jobID string, candidateIDs []string) map[string]scorecache.Snapshot
	PutNeuralScore(ctx context.Context, jobID, candidateID string, score float64)
	PutLLMResult(ctx context.Context, jobID, candidateID string, score float64, explanation string)
	PutFinalScores(ctx context.Context, jobID, candidateID string, preScore, finalScore float64)
	LoadExplanations(ctx context.Context, jobID string, candidateIDs []string) map[string]string
}

// Dependencies 流水线的全部外部依赖
// vectors / jobVectors / texts 允许为nil，对应信号降级为缺失
type Dependencies struct {
	Store      candidateStore
	Cache      scoreCache
	Scorer     scorer.ScoringService
	Vectors    vectorSearcher
	JobVectors jobVectorCache
	Texts      parsedTextFetcher
}

// Pipeline 四阶段级联排名漏斗
// 预筛 → 神经重排 → LLM批量评估 → 分数融合，每一阶段的输出
// 候选人集合都是上一阶段的子集
type Pipeline struct {
	store          candidateStore
	cache          scoreCache
	scorer         scorer.ScoringService
	vectors        vectorSearcher
	jobVectors     jobVectorCache
	texts          parsedTextFetcher
	neuralWorkers  int
	scoringTimeout time.Duration
}

func NewPipeline(deps Dependencies, cfg *config.PipelineConfig) (*Pipeline, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("候选人存储不能为空")
	}
	if deps.Cache == nil {
		return nil, fmt.Errorf("分数缓存不能为空")
	}
	if deps.Scorer == nil {
		return nil, fmt.Errorf("评分服务不能为空")
	}

	workers := 8
	timeout := constants.DefaultScoringTimeout
	if cfg != nil {
		if cfg.NeuralWorkers > 0 {
			workers = cfg.NeuralWorkers
		}
		timeout = config.GetDuration(cfg.ScoringTimeout, constants.DefaultScoringTimeout)
	}

	return &Pipeline{
		store:          deps.Store,
		cache:          deps.Cache,
		scorer:         deps.Scorer,
		vectors:        deps.Vectors,
		jobVectors:     deps.JobVectors,
		texts:          deps.Texts,
		neuralWorkers:  workers,
		scoringTimeout: timeout,
	}, nil
}

// Rank 对指定岗位执行完整的级联排名
// 空候选池返回空结果而不是错误；只有岗位不存在或数据库查询
// 本身出错才返回error
func (p *Pipeline) Rank(ctx context.Context, jobID string) (*types.RankingOutcome, error) {
	ctx, span := pipelineTracer.Start(ctx, "pipeline.Rank", trace.WithAttributes(
		attribute.String("job.id", jobID),
	))
	defer span.End()

	job, err := p.store.GetJobPostingByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("查询岗位失败: %w", err)
	}

	outcome := &types.RankingOutcome{JobID: jobID}

	// 阶段1：结构化预筛
	pool, err := p.preScorePool(ctx, job, constants.PreScorePoolSize)
	if err != nil {
		return nil, err
	}
	outcome.PoolSize = len(pool)
	span.SetAttributes(attribute.Int("pipeline.pool_size", len(pool)))
	if len(pool) == 0 {
		outcome.Candidates = []types.RankedCandidate{}
		return outcome, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 缓存快照在阶段2之前一次性读取，后续阶段都以进入流水线时的
	// 新鲜度为准；阶段2写回神经分会刷新行的updated_at，若阶段3
	// 再读库就会把早已过期的LLM分数当成新鲜命中
	poolIDs := make([]string, len(pool))
	for i, c := range pool {
		poolIDs[i] = c.CandidateID
	}
	snapshots := p.cache.Load(ctx, job.JobID, poolIDs)

	// 阶段2：神经重排
	survivors, failures := p.neuralRerank(ctx, job, pool, snapshots)
	outcome.Failures = append(outcome.Failures, failures...)
	outcome.NeuralSize = len(survivors)
	span.SetAttributes(attribute.Int("pipeline.neural_size", len(survivors)))
	if len(survivors) == 0 {
		outcome.Candidates = []types.RankedCandidate{}
		return outcome, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 阶段3：LLM批量评估
	survivors, failures = p.llmBatchRerank(ctx, job, survivors, snapshots)
	outcome.Failures = append(outcome.Failures, failures...)
	outcome.LLMSize = len(survivors)
	span.SetAttributes(attribute.Int("pipeline.llm_size", len(survivors)))

	// 阶段4：融合与落库
	outcome.Candidates = p.fuse(ctx, jobID, survivors)
	span.SetAttributes(attribute.Int("pipeline.final_size", len(outcome.Candidates)))

	return outcome, nil
}

// neuralRerank 漏斗第二阶段：逐候选人的神经相似度重排
// 有界worker池并发外呼；缓存新鲜的候选人零外呼通过；
// 单个候选人失败只淘汰该候选人，不中断整个阶段
func (p *Pipeline) neuralRerank(ctx context.Context, job *models.JobPosting, pool []types.PreScoredCandidate, snapshots map[string]scorecache.Snapshot) ([]types.RankingCandidate, []types.StageFailure) {
	candidateIDs := make([]string, len(pool))
	for i, c := range pool {
		candidateIDs[i] = c.CandidateID
	}

	resumeTexts := p.loadResumeTexts(ctx, candidateIDs)

	type neuralResult struct {
		candidate types.RankingCandidate
		failure   *types.StageFailure
		skipped   bool
	}

	results := make([]neuralResult, len(pool))
	sem := make(chan struct{}, p.neuralWorkers)
	var wg sync.WaitGroup

	for i := range pool {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			entry := pool[idx]
			resumeText := resumeTexts[entry.CandidateID]
			if resumeText == "" {
				// 无简历文本不是失败，静默跳过
				results[idx] = neuralResult{skipped: true}
				return
			}

			candidate := types.RankingCandidate{
				CandidateID: entry.CandidateID,
				PreScore:    entry.PreScore,
			}

			if snap, ok := snapshots[entry.CandidateID]; ok && snap.NeuralScore != nil {
				candidate.NeuralRankScore = *snap.NeuralScore
				results[idx] = neuralResult{candidate: candidate}
				return
			}

			scoringCtx, cancel := context.WithTimeout(ctx, p.scoringTimeout)
			score, err := p.scorer.PairwiseSimilarity(scoringCtx, job.JobText, resumeText)
			cancel()
			if err != nil {
				results[idx] = neuralResult{failure: &types.StageFailure{
					Stage:       stageNeuralRerank,
					CandidateID: entry.CandidateID,
					Reason:      err.Error(),
				}}
				return
			}

			p.cache.PutNeuralScore(ctx, job.JobID, entry.CandidateID, score)
			candidate.NeuralRankScore = score
			results[idx] = neuralResult{candidate: candidate}
		}(i)
	}
	wg.Wait()

	var survivors []types.RankingCandidate
	var failures []types.StageFailure
	for _, r := range results {
		switch {
		case r.failure != nil:
			logger.Warn().Str("job_id", job.JobID).Str("candidate_id", r.failure.CandidateID).
				Str("reason", r.failure.Reason).Msg("神经重排：候选人打分失败，淘汰该候选人")
			failures = append(failures, *r.failure)
		case !r.skipped:
			survivors = append(survivors, r.candidate)
		}
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		if survivors[i].NeuralRankScore != survivors[j].NeuralRankScore {
			return survivors[i].NeuralRankScore > survivors[j].NeuralRankScore
		}
		return survivors[i].CandidateID < survivors[j].CandidateID
	})
	if len(survivors) > constants.NeuralRerankTopN {
		survivors = survivors[:constants.NeuralRerankTopN]
	}
	return survivors, failures
}

// llmBatchRerank 漏斗第三阶段：LLM批量评估
// 按批次切分（每批不超过LLMBatchSize），缓存里分数与解释都新鲜的
// 成员直接通过；其余成员合并为一次LLM调用。整批失败只淘汰该批
// 中未命中缓存的成员，其他批次继续
func (p *Pipeline) llmBatchRerank(ctx context.Context, job *models.JobPosting, candidates []types.RankingCandidate, snapshots map[string]scorecache.Snapshot) ([]types.RankingCandidate, []types.StageFailure) {
	candidateIDs := make([]string, len(candidates))
	for i, c := range candidates {
		candidateIDs[i] = c.CandidateID
	}
	resumeTexts := p.loadResumeTexts(ctx, candidateIDs)

	var batches [][]types.RankingCandidate
	for start := 0; start < len(candidates); start += constants.LLMBatchSize {
		end := start + constants.LLMBatchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batches = append(batches, candidates[start:end])
	}

	outcomes := make([]batchOutcome, len(batches))
	var wg sync.WaitGroup
	for i := range batches {
		wg.Add(1)
		go func(batchIdx int) {
			defer wg.Done()
			outcomes[batchIdx] = p.evaluateOneBatch(ctx, job, batchIdx, batches[batchIdx], resumeTexts, snapshots)
		}(i)
	}
	wg.Wait()

	var survivors []types.RankingCandidate
	var failures []types.StageFailure
	for _, o := range outcomes {
		survivors = append(survivors, o.survivors...)
		if o.failure != nil {
			failures = append(failures, *o.failure)
		}
	}
	return survivors, failures
}

// batchOutcome 单个批次的评估结果
type batchOutcome struct {
	survivors []types.RankingCandidate
	failure   *types.StageFailure
}

func (p *Pipeline) evaluateOneBatch(
	ctx context.Context,
	job *models.JobPosting,
	batchIdx int,
	batch []types.RankingCandidate,
	resumeTexts map[string]string,
	snapshots map[string]scorecache.Snapshot,
) (outcome batchOutcome) {
	var pending []types.RankingCandidate
	var items []types.BatchEvaluationItem

	for _, candidate := range batch {
		snap, ok := snapshots[candidate.CandidateID]
		if ok && snap.LLMScore != nil && snap.Explanation != "" {
			candidate.LLMScore = *snap.LLMScore
			candidate.Explanation = snap.Explanation
			outcome.survivors = append(outcome.survivors, candidate)
			continue
		}
		pending = append(pending, candidate)
		items = append(items, types.BatchEvaluationItem{
			CandidateID: candidate.CandidateID,
			ResumeText:  resumeTexts[candidate.CandidateID],
		})
	}

	if len(pending) == 0 {
		return outcome
	}

	scoringCtx, cancel := context.WithTimeout(ctx, p.scoringTimeout)
	results, err := p.scorer.EvaluateBatch(scoringCtx, job.JobText, items)
	cancel()
	if err != nil {
		logger.Warn().Str("job_id", job.JobID).Int("batch_index", batchIdx).
			Int("batch_size", len(pending)).Err(err).Msg("LLM批量评估失败，淘汰整批未命中缓存的候选人")
		outcome.failure = &types.StageFailure{
			Stage:      stageLLMBatch,
			BatchIndex: batchIdx,
			Reason:     err.Error(),
		}
		return outcome
	}

	byID := make(map[string]types.BatchEvaluationResult, len(results))
	for _, r := range results {
		byID[r.CandidateID] = r
	}

	for _, candidate := range pending {
		result, ok := byID[candidate.CandidateID]
		if !ok {
			continue
		}
		candidate.LLMScore = similarity.Clamp01(result.LLMScore)
		candidate.Explanation = result.Explanation
		p.cache.PutLLMResult(ctx, job.JobID, candidate.CandidateID, candidate.LLMScore, candidate.Explanation)
		outcome.survivors = append(outcome.survivors, candidate)
	}
	return outcome
}

// fuse 漏斗第四阶段：固定权重融合三路分数并按最终分降序
// 四项分数尽力写回缓存，解释文本从缓存读回后附加到结果上
func (p *Pipeline) fuse(ctx context.Context, jobID string, candidates []types.RankingCandidate) []types.RankedCandidate {
	ranked := make([]types.RankedCandidate, 0, len(candidates))
	candidateIDs := make([]string, 0, len(candidates))

	for _, c := range candidates {
		final := constants.FusionWeightPreScore*similarity.Clamp01(c.PreScore) +
			constants.FusionWeightNeuralScore*similarity.Clamp01(c.NeuralRankScore) +
			constants.FusionWeightLLMScore*similarity.Clamp01(c.LLMScore)

		p.cache.PutFinalScores(ctx, jobID, c.CandidateID, c.PreScore, final)

		ranked = append(ranked, types.RankedCandidate{
			CandidateID:     c.CandidateID,
			PreScore:        c.PreScore,
			NeuralRankScore: c.NeuralRankScore,
			LLMScore:        c.LLMScore,
			FinalScore:      final,
			Explanation:     c.Explanation,
		})
		candidateIDs = append(candidateIDs, c.CandidateID)
	}

	explanations := p.cache.LoadExplanations(ctx, jobID, candidateIDs)
	for i := range ranked {
		if text, ok := explanations[ranked[i].CandidateID]; ok {
			ranked[i].Explanation = text
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].FinalScore != ranked[j].FinalScore {
			return ranked[i].FinalScore > ranked[j].FinalScore
		}
		return ranked[i].CandidateID < ranked[j].CandidateID
	})
	return ranked
}

// loadResumeTexts 拉取候选人简历文本，空文本尝试从对象存储回源
func (p *Pipeline) loadResumeTexts(ctx context.Context, candidateIDs []string) map[string]string {
	texts := make(map[string]string, len(candidateIDs))
	profiles, err := p.store.GetCandidateProfilesByIDs(ctx, candidateIDs)
	if err != nil {
		logger.Warn().Err(err).Int("candidates", len(candidateIDs)).Msg("批量读取候选人画像失败")
		return texts
	}

	for i := range profiles {
		profile := &profiles[i]
		text := profile.ResumeText
		if text == "" && profile.ResumeTextPathOSS != "" && p.texts != nil {
			fetched, fetchErr := p.texts.GetParsedText(ctx, profile.ResumeTextPathOSS)
			if fetchErr != nil {
				logger.Warn().Err(fetchErr).Str("candidate_id", profile.CandidateID).
					Str("path", profile.ResumeTextPathOSS).Msg("从对象存储取回简历文本失败")
			} else {
				text = fetched
			}
		}
		texts[profile.CandidateID] = text
	}
	return texts
}
