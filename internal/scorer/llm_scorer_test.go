package scorer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"talent-rank-go/internal/config"
	"talent-rank-go/internal/types"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockChatModel 是用于测试的 model.ToolCallingChatModel 模拟实现
type mockChatModel struct {
	responses []string
	err       error
	calls     int
}

func (m *mockChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	idx := m.calls - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return schema.AssistantMessage(m.responses[idx], nil), nil
}

func (m *mockChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not implemented in mock")
}

func (m *mockChatModel) BindTools(tools []*schema.ToolInfo) error { return nil }

func (m *mockChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

func newTestScorer(t *testing.T, mock *mockChatModel) *LLMScorer {
	t.Helper()
	cfg := &config.ScorerConfig{QPM: 6000, MaxRetries: 1, RetryWaitSeconds: 1}
	s, err := NewLLMScorer(mock, cfg)
	require.NoError(t, err)
	return s
}

func TestPairwiseSimilarity(t *testing.T) {
	mock := &mockChatModel{responses: []string{`{"similarity": 0.87}`}}
	s := newTestScorer(t, mock)

	score, err := s.PairwiseSimilarity(context.Background(), "岗位描述", "简历文本")
	require.NoError(t, err)
	assert.InDelta(t, 0.87, score, 1e-9)
	assert.Equal(t, 1, mock.calls)
}

func TestPairwiseSimilarityWithSurroundingText(t *testing.T) {
	// 模型偶尔会在JSON外包一层Markdown，提取逻辑应能恢复
	mock := &mockChatModel{responses: []string{"```json\n{\"similarity\": 0.42}\n```"}}
	s := newTestScorer(t, mock)

	score, err := s.PairwiseSimilarity(context.Background(), "岗位描述", "简历文本")
	require.NoError(t, err)
	assert.InDelta(t, 0.42, score, 1e-9)
}

func TestPairwiseSimilarityStripsBOM(t *testing.T) {
	// 部分模型的响应以UTF-8 BOM开头，解析前应剥离
	mock := &mockChatModel{responses: []string{"\uFEFF{\"similarity\": 0.73}"}}
	s := newTestScorer(t, mock)

	score, err := s.PairwiseSimilarity(context.Background(), "岗位描述", "简历文本")
	require.NoError(t, err)
	assert.InDelta(t, 0.73, score, 1e-9)
}

func TestPairwiseSimilarityClamped(t *testing.T) {
	mock := &mockChatModel{responses: []string{`{"similarity": 1.7}`}}
	s := newTestScorer(t, mock)

	score, err := s.PairwiseSimilarity(context.Background(), "岗位描述", "简历文本")
	require.NoError(t, err)
	assert.Equal(t, 1.0, score, "超出范围的分数应被收敛到[0,1]")
}

func TestPairwiseSimilarityEmptyInput(t *testing.T) {
	mock := &mockChatModel{responses: []string{`{"similarity": 0.5}`}}
	s := newTestScorer(t, mock)

	_, err := s.PairwiseSimilarity(context.Background(), "", "简历文本")
	assert.Error(t, err)
	assert.Equal(t, 0, mock.calls, "输入校验失败时不应调用LLM")
}

func TestEvaluateBatchAlignsByInputOrder(t *testing.T) {
	// 响应故意乱序，结果应按输入顺序对齐
	mock := &mockChatModel{responses: []string{`{
		"results": [
			{"candidate_id": "cand-b", "llm_score": 0.6, "explanation": "具备岗位要求的核心技能"},
			{"candidate_id": "cand-a", "llm_score": 0.9, "explanation": "经验与岗位高度契合"}
		]
	}`}}
	s := newTestScorer(t, mock)

	items := []types.BatchEvaluationItem{
		{CandidateID: "cand-a", ResumeText: "简历A"},
		{CandidateID: "cand-b", ResumeText: "简历B"},
	}

	results, err := s.EvaluateBatch(context.Background(), "岗位描述", items)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "cand-a", results[0].CandidateID)
	assert.InDelta(t, 0.9, results[0].LLMScore, 1e-9)
	assert.Equal(t, "cand-b", results[1].CandidateID)
}

func TestEvaluateBatchDropsUnknownAndMissing(t *testing.T) {
	// 响应漏掉cand-b并虚构了cand-x，两者都应被剔除
	mock := &mockChatModel{responses: []string{`{
		"results": [
			{"candidate_id": "cand-a", "llm_score": 0.8, "explanation": "技术栈匹配"},
			{"candidate_id": "cand-x", "llm_score": 0.7, "explanation": "虚构的候选人"}
		]
	}`}}
	s := newTestScorer(t, mock)

	items := []types.BatchEvaluationItem{
		{CandidateID: "cand-a", ResumeText: "简历A"},
		{CandidateID: "cand-b", ResumeText: "简历B"},
	}

	results, err := s.EvaluateBatch(context.Background(), "岗位描述", items)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "cand-a", results[0].CandidateID)
}

func TestEvaluateBatchRecoversFromEmbeddedJSON(t *testing.T) {
	mock := &mockChatModel{responses: []string{
		"评估结果如下：\n{\"results\": [{\"candidate_id\": \"cand-a\", \"llm_score\": 0.75, \"explanation\": \"核心技能吻合\"}]}\n以上。",
	}}
	s := newTestScorer(t, mock)

	items := []types.BatchEvaluationItem{{CandidateID: "cand-a", ResumeText: "简历A"}}
	results, err := s.EvaluateBatch(context.Background(), "岗位描述", items)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 0.75, results[0].LLMScore, 1e-9)
}

func TestEvaluateBatchUnparseable(t *testing.T) {
	mock := &mockChatModel{responses: []string{"完全不是JSON的回复"}}
	s := newTestScorer(t, mock)

	items := []types.BatchEvaluationItem{{CandidateID: "cand-a", ResumeText: "简历A"}}
	_, err := s.EvaluateBatch(context.Background(), "岗位描述", items)
	assert.Error(t, err, "提取与修复都失败时应返回错误")
}

func TestEvaluateBatchEmptyItems(t *testing.T) {
	mock := &mockChatModel{responses: []string{`{}`}}
	s := newTestScorer(t, mock)

	results, err := s.EvaluateBatch(context.Background(), "岗位描述", nil)
	require.NoError(t, err)
	assert.Nil(t, results)
	assert.Equal(t, 0, mock.calls)
}

func TestExtractJSONFromScorerResponse(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"纯JSON", `{"a": 1}`, `{"a": 1}`},
		{"前后有文本", `结果: {"a": {"b": 2}} 完`, `{"a": {"b": 2}}`},
		{"无JSON", "没有大括号", ""},
		{"未闭合", `{"a": 1`, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, extractJSONFromScorerResponse(tc.input))
		})
	}
}

func TestSanitizeJSONFixesInnerQuotes(t *testing.T) {
	broken := `{"explanation": "主导过"春季推广"项目"}`
	fixed := sanitizeJSON(broken)

	var parsed struct {
		Explanation string `json:"explanation"`
	}
	err := json.Unmarshal([]byte(fixed), &parsed)
	require.NoError(t, err, "修复后的JSON应能正常反序列化")
	assert.Contains(t, parsed.Explanation, "春季推广")
}
