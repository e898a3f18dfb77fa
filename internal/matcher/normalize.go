package matcher

import "strings"

// normalizeSet 对字符串列表做去空白、转小写并去重，返回集合
// 属性匹配器统一在归一化后的集合上运算
func normalizeSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		normalized := strings.ToLower(strings.TrimSpace(item))
		if normalized == "" {
			continue
		}
		set[normalized] = struct{}{}
	}
	return set
}

// intersectionCount 统计两个归一化集合的交集大小
func intersectionCount(a, b map[string]struct{}) int {
	// 遍历较小的集合
	if len(b) < len(a) {
		a, b = b, a
	}
	count := 0
	for item := range a {
		if _, ok := b[item]; ok {
			count++
		}
	}
	return count
}
