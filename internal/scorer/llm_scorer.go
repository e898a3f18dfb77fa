package scorer

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"talent-rank-go/internal/config"
	"talent-rank-go/internal/logger"
	"talent-rank-go/internal/tracing"
	"talent-rank-go/internal/types"
	"talent-rank-go/pkg/ratelimit"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var scorerTracer = otel.Tracer("talent-rank-go/scorer")

// ScoringService 外部LLM打分服务的抽象
// 流水线只依赖这两个请求形态：单对相似度与批量评估
type ScoringService interface {
	// PairwiseSimilarity 计算岗位与单份简历的功能相似度，返回[0,1]
	PairwiseSimilarity(ctx context.Context, jobText string, resumeText string) (float64, error)

	// EvaluateBatch 对一批(≤20)候选人做岗位匹配评估，
	// 返回结果与输入顺序对应，每项包含[0,1]分数与正向解释
	EvaluateBatch(ctx context.Context, jobText string, items []types.BatchEvaluationItem) ([]types.BatchEvaluationResult, error)
}

// LLMScorer 基于通义千问的打分服务客户端
// 单对打分与批量评估默认共用一个模型客户端，可通过
// WithBatchModel 为批量评估指定独立的模型
type LLMScorer struct {
	pairwiseModel model.ToolCallingChatModel
	batchModel    model.ToolCallingChatModel
	limiter       *ratelimit.TokenBucket
	cfg           *config.ScorerConfig
}

// 确保LLMScorer实现了ScoringService接口
var _ ScoringService = (*LLMScorer)(nil)

// NewLLMScorer 创建打分服务客户端
// 所有LLM调用都经过令牌桶限流，瞬态失败按配置的退避策略重试
func NewLLMScorer(llmModel model.ToolCallingChatModel, cfg *config.ScorerConfig) (*LLMScorer, error) {
	if llmModel == nil {
		return nil, fmt.Errorf("llmModel不能为空")
	}
	if cfg == nil {
		return nil, fmt.Errorf("scorer配置不能为空")
	}

	qpm := cfg.QPM
	if qpm <= 0 {
		qpm = 600
	}

	limiter := ratelimit.NewTokenBucket(qpm, 0).
		WithRetryPolicy(time.Duration(cfg.RetryWaitSeconds)*time.Second, cfg.MaxRetries)

	return &LLMScorer{
		pairwiseModel: llmModel,
		batchModel:    llmModel,
		limiter:       limiter,
		cfg:           cfg,
	}, nil
}

// WithBatchModel 为批量评估指定独立的模型客户端
func (s *LLMScorer) WithBatchModel(llmModel model.ToolCallingChatModel) *LLMScorer {
	if llmModel != nil {
		s.batchModel = llmModel
	}
	return s
}

// pairwisePrompt 单对相似度评估的提示词模板
const pairwisePrompt = `你是一位资深的AI招聘专家。请评估下面的【岗位描述】和【候选人简历】在职能上的相似程度（functional similarity）。

**输出格式要求：**
- 只输出一个合法的JSON对象，形如 {"similarity": 0.87}
- "similarity" 为 0 到 1 之间的小数，1 表示职能完全吻合，0 表示完全无关
- 禁止在JSON之外输出任何额外文本、解释或Markdown标记

【岗位描述】:
"""
%s
"""

【候选人简历】:
"""
%s
"""`

// PairwiseSimilarity 计算岗位与单份简历的功能相似度
func (s *LLMScorer) PairwiseSimilarity(ctx context.Context, jobText string, resumeText string) (float64, error) {
	if jobText == "" || resumeText == "" {
		return 0, fmt.Errorf("岗位描述和简历文本都不能为空")
	}

	ctx, span := scorerTracer.Start(ctx, "scorer.PairwiseSimilarity", trace.WithAttributes(
		attribute.String("llm.job_text", tracing.SafeJobText(jobText)),
		attribute.String("llm.resume_text", tracing.SafeResumeContent(resumeText)),
	))
	defer span.End()

	userMsg := einoschema.UserMessage(fmt.Sprintf(pairwisePrompt, jobText, resumeText))
	systemMsg := einoschema.SystemMessage("你是一位专注于人岗匹配度分析的AI招聘助手，只输出JSON。")

	var content string
	err := s.limiter.RetryWithBackoff(ctx, func() error {
		response, genErr := s.pairwiseModel.Generate(ctx, []*einoschema.Message{systemMsg, userMsg})
		if genErr != nil {
			return genErr
		}
		if response == nil || response.Content == "" {
			return fmt.Errorf("LLM返回空响应")
		}
		content = response.Content
		return nil
	})
	if err != nil {
		err = fmt.Errorf("相似度打分调用失败: %w", err)
		tracing.RecordLLMError(span, err, s.cfg.PairwiseModel, "pairwise")
		return 0, err
	}

	score, err := parsePairwiseResponse(content)
	if err != nil {
		tracing.RecordLLMError(span, err, s.cfg.PairwiseModel, "pairwise")
		return 0, err
	}
	return score, nil
}

// parsePairwiseResponse 解析单对相似度响应，分数收敛到[0,1]
func parsePairwiseResponse(content string) (float64, error) {
	jsonStr := extractJSONFromScorerResponse(strings.TrimPrefix(content, "\uFEFF"))
	if jsonStr == "" {
		// 某些模型会直接输出裸数字
		if v, convErr := strconv.ParseFloat(strings.TrimSpace(content), 64); convErr == nil {
			return clampUnit(v), nil
		}
		return 0, fmt.Errorf("无法从LLM响应中提取JSON: %s", content)
	}

	var parsed struct {
		Similarity float64 `json:"similarity"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		fixed := sanitizeJSON(jsonStr)
		if err2 := json.Unmarshal([]byte(fixed), &parsed); err2 != nil {
			return 0, fmt.Errorf("解析相似度响应失败: %w。原始JSON: %s", err, jsonStr)
		}
	}

	return clampUnit(parsed.Similarity), nil
}

// batchPrompt 批量评估的提示词模板
const batchPrompt = `你是一位资深的AI招聘专家。下面提供一个【岗位描述】和若干位候选人的简历，请逐一评估每位候选人与岗位的匹配程度。

**输出格式要求（严格遵守）：**
- 只输出一个合法的JSON对象，结构为：
  {"results": [{"candidate_id": "...", "llm_score": 0.85, "explanation": "..."}]}
- "results" 数组必须为每位候选人各输出一项，顺序与输入一致
- "candidate_id" 必须原样复制输入中的候选人ID
- "llm_score" 为 0 到 1 之间的小数
- "explanation" 为不超过100字的匹配理由，**只陈述候选人的优势和契合点，绝不提及任何不足或短板**
- 字符串值内部的双引号必须用反斜杠转义
- 禁止在JSON之外输出任何额外文本或Markdown标记

【岗位描述】:
"""
%s
"""

【候选人列表】:
%s`

// EvaluateBatch 对一批候选人做岗位匹配评估
// 返回结果按输入顺序排列；响应中缺失的候选人不出现在结果里
func (s *LLMScorer) EvaluateBatch(ctx context.Context, jobText string, items []types.BatchEvaluationItem) ([]types.BatchEvaluationResult, error) {
	if jobText == "" {
		return nil, fmt.Errorf("岗位描述不能为空")
	}
	if len(items) == 0 {
		return nil, nil
	}

	ctx, span := scorerTracer.Start(ctx, "scorer.EvaluateBatch", trace.WithAttributes(
		attribute.String("llm.job_text", tracing.SafeJobText(jobText)),
		attribute.Int("llm.batch_size", len(items)),
	))
	defer span.End()

	var sb strings.Builder
	for i, item := range items {
		sb.WriteString(fmt.Sprintf("候选人 %d (candidate_id: %s):\n\"\"\"\n%s\n\"\"\"\n\n", i+1, item.CandidateID, item.ResumeText))
	}

	userMsg := einoschema.UserMessage(fmt.Sprintf(batchPrompt, jobText, sb.String()))
	systemMsg := einoschema.SystemMessage("你是一位专注于人岗匹配度分析的AI招聘助手，只输出JSON。")

	var content string
	err := s.limiter.RetryWithBackoff(ctx, func() error {
		response, genErr := s.batchModel.Generate(ctx, []*einoschema.Message{systemMsg, userMsg})
		if genErr != nil {
			return genErr
		}
		if response == nil || response.Content == "" {
			return fmt.Errorf("LLM返回空响应")
		}
		content = response.Content
		return nil
	})
	if err != nil {
		err = fmt.Errorf("批量评估调用失败: %w", err)
		tracing.RecordLLMError(span, err, s.cfg.BatchModel, "batch")
		return nil, err
	}

	results, err := parseBatchResponse(content, items)
	if err != nil {
		tracing.RecordLLMError(span, err, s.cfg.BatchModel, "batch")
		return nil, err
	}
	if len(results) > 0 {
		span.SetAttributes(attribute.String("llm.explanation_sample", tracing.SafeExplanation(results[0].Explanation)))
	}
	return results, nil
}

// parseBatchResponse 解析批量评估响应并按输入顺序对齐
func parseBatchResponse(content string, items []types.BatchEvaluationItem) ([]types.BatchEvaluationResult, error) {
	processedContent := strings.TrimPrefix(content, "\uFEFF")

	jsonStr := extractJSONFromScorerResponse(processedContent)
	if jsonStr == "" {
		return nil, fmt.Errorf("无法从批量评估响应中提取JSON: %s", processedContent)
	}

	if !utf8.ValidString(jsonStr) {
		jsonStr = strings.ToValidUTF8(jsonStr, "")
	}

	var parsed struct {
		Results []struct {
			CandidateID string  `json:"candidate_id"`
			LLMScore    float64 `json:"llm_score"`
			Explanation string  `json:"explanation"`
		} `json:"results"`
	}

	// ① 正常解析 ② 失败则修复后再试一次
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		fixedJSONStr := sanitizeJSON(jsonStr)
		if jsonErr := json.Unmarshal([]byte(fixedJSONStr), &parsed); jsonErr != nil {
			return nil, fmt.Errorf("批量评估JSON解析失败（已尝试修复）。原始错误: %w。修复后错误: %v", err, jsonErr)
		}
	}

	if len(parsed.Results) == 0 {
		return nil, fmt.Errorf("批量评估响应中results为空")
	}

	// 按candidate_id索引响应，再按输入顺序输出，
	// LLM漏掉或虚构的ID在这里被剔除
	byID := make(map[string]types.BatchEvaluationResult, len(parsed.Results))
	for _, r := range parsed.Results {
		byID[r.CandidateID] = types.BatchEvaluationResult{
			CandidateID: r.CandidateID,
			LLMScore:    clampUnit(r.LLMScore),
			Explanation: r.Explanation,
		}
	}

	results := make([]types.BatchEvaluationResult, 0, len(items))
	for _, item := range items {
		if r, ok := byID[item.CandidateID]; ok {
			results = append(results, r)
		} else {
			logger.Warn().Str("candidate_id", item.CandidateID).Msg("批量评估响应中缺失该候选人")
		}
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("批量评估响应与输入候选人无一匹配")
	}

	return results, nil
}

// clampUnit 把分数收敛到[0,1]
func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// extractJSONFromScorerResponse 从文本中提取第一个配对完整的JSON对象
func extractJSONFromScorerResponse(text string) string {
	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}
	level := 0
	for i := start; i < len(text); i++ {
		if text[i] == '{' {
			level++
		} else if text[i] == '}' {
			level--
			if level == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// sanitizeJSON 会遍历 src，将任何位于字符串字面量内部但并非"真正结束"的双引号写成 \"，
// 以保证整个 JSON 在 Go 端能够正常反序列化。
// 它通过检查下一个非空白字符是否为 :, ], }, 或 , 来判断该 " 是否为字符串的结束。
func sanitizeJSON(src string) string {
	var b strings.Builder
	inStr := false
	escaped := false

	for i := 0; i < len(src); i++ {
		c := src[i]

		if c == '"' && !escaped {
			if !inStr {
				inStr = true
				b.WriteByte(c)
			} else {
				j := i + 1
				for j < len(src) && (src[j] == ' ' || src[j] == '\t' || src[j] == '\n' || src[j] == '\r') {
					j++
				}
				if j < len(src) && (src[j] == ':' || src[j] == ',' || src[j] == ']' || src[j] == '}') {
					inStr = false
					b.WriteByte(c)
				} else {
					b.WriteString("\\\"")
				}
			}
			escaped = false

		} else if c == '\\' && !escaped {
			escaped = true
			b.WriteByte(c)

		} else {
			b.WriteByte(c)
			escaped = false
		}
	}

	return b.String()
}
