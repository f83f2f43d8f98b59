package service

import "strings"

// NormalizeSymbol canonicalizes a user-entered ticker: trimmed, uppercased,
// and bare 6-digit A-share codes get their exchange suffix appended (Shanghai
// listings start with 6, everything else trades in Shenzhen).
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if isAShareCode(s) {
		if strings.HasPrefix(s, "6") {
			return s + ".SS"
		}
		return s + ".SZ"
	}
	return s
}

func isAShareCode(s string) bool {
	if len(s) != 6 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
