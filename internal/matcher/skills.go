package matcher

import "math"

// SkillsCoverageScore 技能覆盖度评分，0-100，保留两位小数
// 计算候选人满足了岗位硬性技能要求的比例：
// 100 × |岗位技能 ∩ 候选人技能| / |岗位技能|
// 该公式有意不对称——衡量的是岗位要求被满足的程度，而非反向
func SkillsCoverageScore(jobSkills, candidateSkills []string) float64 {
	jobSet := normalizeSet(jobSkills)
	candSet := normalizeSet(candidateSkills)

	if len(jobSet) == 0 || len(candSet) == 0 {
		return 0
	}

	raw := 100 * float64(intersectionCount(jobSet, candSet)) / float64(len(jobSet))
	return math.Round(raw*100) / 100
}
