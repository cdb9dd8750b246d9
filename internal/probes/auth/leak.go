package auth

import (
	"strings"

	"github.com/xkilldash9x/uiprobe/api/schemas"
)

// Secret is a value that must never reach the browser console.
type Secret struct {
	Label string
	Value string
}

// FindLeaks returns the labels of secrets that appear, case-insensitively,
// in any console entry. Each label is reported once. Empty values are ignored.
func FindLeaks(logs []schemas.ConsoleLog, secrets []Secret) []string {
	var leaked []string
	for _, s := range secrets {
		needle := strings.ToLower(s.Value)
		if needle == "" {
			continue
		}
		for _, entry := range logs {
			if strings.Contains(strings.ToLower(entry.Text), needle) {
				leaked = append(leaked, s.Label)
				break
			}
		}
	}
	return leaked
}

// tokenPrefix returns the first n characters of token, or all of it when shorter.
func tokenPrefix(token string, n int) string {
	if len(token) <= n {
		return token
	}
	return token[:n]
}
