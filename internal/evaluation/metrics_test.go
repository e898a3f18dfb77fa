package evaluation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func relevantSet(ids ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func TestPrecisionAtK(t *testing.T) {
	ranked := []string{"a", "x", "b", "y", "c"}
	relevant := relevantSet("a", "b", "c")

	assert.InDelta(t, 0.6, PrecisionAtK(ranked, relevant, 5), 1e-9, "前5有3个相关")
	assert.InDelta(t, 0.5, PrecisionAtK(ranked, relevant, 2), 1e-9)
	assert.Zero(t, PrecisionAtK(ranked, relevantSet(), 5), "真值为空时返回0")
	assert.Zero(t, PrecisionAtK(ranked, relevant, 0))
}

func TestPrecisionAtKShortList(t *testing.T) {
	// 结果不足K个时分母仍是K，故意惩罚召回不足
	ranked := []string{"a", "b"}
	relevant := relevantSet("a", "b")
	assert.InDelta(t, 0.4, PrecisionAtK(ranked, relevant, 5), 1e-9)
}

func TestRecallAtK(t *testing.T) {
	ranked := []string{"a", "x", "b", "y", "c"}
	relevant := relevantSet("a", "b", "c")

	assert.InDelta(t, 1.0, RecallAtK(ranked, relevant, 5), 1e-9, "前5覆盖全部3个相关项")
	assert.InDelta(t, 1.0/3.0, RecallAtK(ranked, relevant, 2), 1e-9)
	assert.Zero(t, RecallAtK(ranked, relevantSet(), 5))
}

func TestNDCGAtK(t *testing.T) {
	relevant := relevantSet("a", "b")

	// 理想排序：nDCG为1
	assert.InDelta(t, 1.0, NDCGAtK([]string{"a", "b", "x"}, relevant, 3), 1e-9)

	// 相关项在位次1和3：DCG = 1/log2(2) + 1/log2(4) = 1.5
	// IDCG = 1/log2(2) + 1/log2(3)
	expected := 1.5 / (1.0 + 1.0/math.Log2(3))
	assert.InDelta(t, expected, NDCGAtK([]string{"a", "x", "b"}, relevant, 3), 1e-9)

	assert.Zero(t, NDCGAtK([]string{"a"}, relevantSet(), 3), "IDCG为0时返回0")
}

func TestDCGHandlesShortList(t *testing.T) {
	relevant := relevantSet("a")
	assert.InDelta(t, 1.0, DCGAtK([]string{"a"}, relevant, 10), 1e-9)
}

func TestMRR(t *testing.T) {
	relevant := relevantSet("a", "b")

	assert.InDelta(t, 1.0, MRR([]string{"a", "x"}, relevant), 1e-9, "首位命中时MRR为1")
	assert.InDelta(t, 0.5, MRR([]string{"x", "b"}, relevant), 1e-9)
	assert.Zero(t, MRR([]string{"x", "y"}, relevant), "无命中时返回0")
	assert.Zero(t, MRR(nil, relevant))
}
