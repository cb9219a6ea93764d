package utils

// Truncate is a simple string truncate. It counts runes so multi-byte
// characters are never split.
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
