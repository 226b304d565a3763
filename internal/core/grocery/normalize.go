package grocery

import "strings"

// Normalize 以逗號切分食材文字，去除空白與空項，並依首次出現順序去除完全相同的項目。
// 比對區分大小寫，"Eggs" 與 "eggs" 視為不同項目。
func Normalize(raw string) []string {
	parts := strings.Split(raw, ",")
	terms := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		term := strings.TrimSpace(part)
		if term == "" {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}
	return terms
}
