package utils

import "fmt"

// ShortenLog abbreviates a hash for log lines, keeping both ends.
func ShortenLog(hash string) string {
	cut := 8
	if len(hash) <= 8 {
		return hash
	} else if len(hash) <= 16 {
		cut = 4
	}
	return fmt.Sprintf("%s...%s", hash[:cut], hash[len(hash)-cut:])
}
