package aggregator

import "strings"

// Tables 是查询端使用的固定词表，来自配置而不是写死在代码里
type Tables struct {
	// Universities 把简称映射为若干全称/别名
	Universities    map[string][]string
	OfficialSources []string
	VisaKeywords    []string
	GuideKeywords   []string
}

// universityKeywords 未登记的简称退化为只用简称本身匹配
func (t Tables) universityKeywords(key string) []string {
	key = strings.ToLower(strings.TrimSpace(key))
	if kws, ok := t.Universities[key]; ok && len(kws) > 0 {
		return kws
	}
	if key == "" {
		return nil
	}
	return []string{key}
}

func (t Tables) isOfficial(source string) bool {
	lower := strings.ToLower(source)
	for _, o := range t.OfficialSources {
		if o != "" && strings.Contains(lower, strings.ToLower(o)) {
			return true
		}
	}
	return false
}
