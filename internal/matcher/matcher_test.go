package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndustryScoreBinaryPolicy(t *testing.T) {
	// 任意非空交集记满分
	assert.Equal(t, 100.0, IndustryScore([]string{"fintech"}, []string{"fintech", "healthcare"}))
	// 无交集记0分
	assert.Equal(t, 0.0, IndustryScore([]string{"fintech"}, []string{"healthcare"}))
	// 任一列表为空记0分
	assert.Equal(t, 0.0, IndustryScore(nil, []string{"fintech"}))
	assert.Equal(t, 0.0, IndustryScore([]string{"fintech"}, nil))
}

func TestIndustryScoreNormalization(t *testing.T) {
	// 大小写和首尾空白不影响匹配
	assert.Equal(t, 100.0, IndustryScore([]string{"  FinTech "}, []string{"fintech"}))
}

func TestWeightedIndustryScoreDeprecatedFormula(t *testing.T) {
	// 交集占比 1/2，Embedding相同即语义相似度100
	// 0.4×50 + 0.6×100 = 80
	emb := []float64{0.2, 0.8}
	score, err := WeightedIndustryScore([]string{"fintech"}, []string{"fintech", "healthcare"}, emb, emb)
	require.NoError(t, err)
	assert.InDelta(t, 80.0, score, 1e-9)

	// Embedding缺失时只剩交集占比部分
	score, err = WeightedIndustryScore([]string{"fintech"}, []string{"fintech", "healthcare"}, nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, score, 1e-9)
}

func TestSkillsCoverageScore(t *testing.T) {
	// 2/3 × 100，保留两位小数
	score := SkillsCoverageScore([]string{"sql", "python", "react"}, []string{"sql", "react"})
	assert.Equal(t, 66.67, score)

	// 岗位无技能要求或候选人无技能均记0分
	assert.Equal(t, 0.0, SkillsCoverageScore(nil, []string{"sql"}))
	assert.Equal(t, 0.0, SkillsCoverageScore([]string{"sql"}, nil))

	// 完全覆盖
	assert.Equal(t, 100.0, SkillsCoverageScore([]string{"Go", "MySQL"}, []string{"go", "mysql", "redis"}))
}

func TestSkillsCoverageScoreAsymmetry(t *testing.T) {
	// 衡量的是岗位要求的满足比例，候选人多余技能不加分也不减分
	job := []string{"go"}
	cand := []string{"go", "java", "rust", "python"}
	assert.Equal(t, 100.0, SkillsCoverageScore(job, cand))
	assert.Equal(t, 25.0, SkillsCoverageScore(cand, job))
}

func TestParseLocation(t *testing.T) {
	parsed := ParseLocation("Berlin, Germany")
	assert.Equal(t, "germany", parsed.Country)
	assert.Equal(t, "europe", parsed.Region)
	assert.False(t, parsed.IsRemote)

	parsed = ParseLocation("Remote")
	assert.True(t, parsed.IsRemote)
	assert.Empty(t, parsed.Country)

	parsed = ParseLocation("Seoul, South Korea")
	assert.Equal(t, "south korea", parsed.Country, "长别名应优先于短别名")

	parsed = ParseLocation("")
	assert.Empty(t, parsed.Country)
	assert.Empty(t, parsed.Region)
}

func TestLocationRuleScoreLadder(t *testing.T) {
	// 岗位远程，候选人位置任意
	assert.Equal(t, 1.0, LocationRuleScore("Remote", "Tokyo, Japan", false))

	// 字符串完全一致
	assert.Equal(t, 1.0, LocationRuleScore("Berlin, Germany", "Berlin, Germany", false))

	// 同国家
	assert.Equal(t, 1.0, LocationRuleScore("Munich, Germany", "Berlin, Germany", false))

	// 同大区（欧洲）
	assert.Equal(t, 0.7, LocationRuleScore("Paris, France", "Berlin, Germany", false))

	// 跨大区但愿意搬迁
	assert.Equal(t, 0.5, LocationRuleScore("Tokyo, Japan", "Berlin, Germany", true))

	// 跨大区且不愿搬迁
	assert.Equal(t, 0.0, LocationRuleScore("Tokyo, Japan", "Berlin, Germany", false))
}

func TestLocationEmbeddingScoreParallelSignal(t *testing.T) {
	emb := []float64{0.4, 0.6}
	score, err := LocationEmbeddingScore(emb, emb)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, score, 1e-9)

	score, err = LocationEmbeddingScore(nil, emb)
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
}
