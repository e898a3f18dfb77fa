package matcher

import (
	"strings"

	"talent-rank-go/internal/similarity"
	"talent-rank-go/internal/types"
)

// countryAliases 国家名称/别名字典，键为出现在位置字符串中的子串（小写）
// 值为规范化国家名
var countryAliases = map[string]string{
	"united states":        "united states",
	"usa":                  "united states",
	"u.s.":                 "united states",
	"america":              "united states",
	"canada":               "canada",
	"mexico":               "mexico",
	"brazil":               "brazil",
	"argentina":            "argentina",
	"united kingdom":       "united kingdom",
	"uk":                   "united kingdom",
	"england":              "united kingdom",
	"germany":              "germany",
	"deutschland":          "germany",
	"france":               "france",
	"spain":                "spain",
	"italy":                "italy",
	"netherlands":          "netherlands",
	"poland":               "poland",
	"sweden":               "sweden",
	"switzerland":          "switzerland",
	"ireland":              "ireland",
	"portugal":             "portugal",
	"china":                "china",
	"中国":                   "china",
	"japan":                "japan",
	"日本":                   "japan",
	"india":                "india",
	"singapore":            "singapore",
	"south korea":          "south korea",
	"korea":                "south korea",
	"vietnam":              "vietnam",
	"indonesia":            "indonesia",
	"australia":            "australia",
	"new zealand":          "new zealand",
	"israel":               "israel",
	"uae":                  "united arab emirates",
	"united arab emirates": "united arab emirates",
	"saudi arabia":         "saudi arabia",
	"south africa":         "south africa",
	"nigeria":              "nigeria",
	"egypt":                "egypt",
}

// countryRegions 国家到大区的映射表
var countryRegions = map[string]string{
	"united states":        "north america",
	"canada":               "north america",
	"mexico":               "north america",
	"brazil":               "south america",
	"argentina":            "south america",
	"united kingdom":       "europe",
	"germany":              "europe",
	"france":               "europe",
	"spain":                "europe",
	"italy":                "europe",
	"netherlands":          "europe",
	"poland":               "europe",
	"sweden":               "europe",
	"switzerland":          "europe",
	"ireland":              "europe",
	"portugal":             "europe",
	"china":                "asia",
	"japan":                "asia",
	"india":                "asia",
	"singapore":            "asia",
	"south korea":          "asia",
	"vietnam":              "asia",
	"indonesia":            "asia",
	"australia":            "oceania",
	"new zealand":          "oceania",
	"israel":               "middle east",
	"united arab emirates": "middle east",
	"saudi arabia":         "middle east",
	"south africa":         "africa",
	"nigeria":              "africa",
	"egypt":                "africa",
}

// ParseLocation 将自由文本位置字符串解析为 {国家, 大区, 是否远程}
// 通过在字符串中查找国家名/别名子串完成字典解析；大区由国家二次查表得到
func ParseLocation(location string) types.ParsedLocation {
	normalized := strings.ToLower(strings.TrimSpace(location))

	parsed := types.ParsedLocation{}
	if normalized == "" {
		return parsed
	}

	if strings.Contains(normalized, "remote") || strings.Contains(normalized, "远程") {
		parsed.IsRemote = true
	}

	// 最长别名优先，避免 "south korea" 被 "korea" 之类的短别名截胡
	bestLen := 0
	for alias, country := range countryAliases {
		if len(alias) > bestLen && strings.Contains(normalized, alias) {
			parsed.Country = country
			bestLen = len(alias)
		}
	}

	if parsed.Country != "" {
		parsed.Region = countryRegions[parsed.Country]
	}
	return parsed
}

// LocationRuleScore 规则位置兼容度评分，[0,1]
// 按优先级顺序判定，首个命中的规则生效：
// 岗位远程→1.0；字符串完全一致→1.0；同国家→1.0；同大区→0.7；
// 候选人愿意搬迁→0.5；否则→0.0
func LocationRuleScore(jobLocation, candidateLocation string, willingToRelocate bool) float64 {
	jobParsed := ParseLocation(jobLocation)
	if jobParsed.IsRemote {
		return 1.0
	}

	jobNorm := strings.ToLower(strings.TrimSpace(jobLocation))
	candNorm := strings.ToLower(strings.TrimSpace(candidateLocation))
	if jobNorm != "" && jobNorm == candNorm {
		return 1.0
	}

	candParsed := ParseLocation(candidateLocation)
	if jobParsed.Country != "" && jobParsed.Country == candParsed.Country {
		return 1.0
	}
	if jobParsed.Region != "" && jobParsed.Region == candParsed.Region {
		return 0.7
	}
	if willingToRelocate {
		return 0.5
	}
	return 0.0
}

// LocationEmbeddingScore 基于Embedding的位置相似度评分，0-100
// 与规则评分并行暴露，作为备选信号，由调用方决定排序时采用哪一个
func LocationEmbeddingScore(jobEmbedding, candidateEmbedding []float64) (float64, error) {
	return similarity.EmbeddingScore(jobEmbedding, candidateEmbedding)
}
