package engine

// demo.go - the q) toy language

import (
	"fmt"
	"strings"
)

const demoQuit = `\\`

// evalDemo answers the closed demo vocabulary.
func evalDemo(body string) (any, error) {
	switch strings.TrimSpace(body) {
	case "2+2":
		return int64(4), nil
	case "til 10":
		out := make([]int64, 10)
		for i := range out {
			out[i] = int64(i)
		}
		return out, nil
	case ".z.K":
		return 5.0, nil
	case demoQuit:
		return nil, ErrQuit
	}
	return nil, fmt.Errorf("q)%s: %w", body, ErrNotImplemented)
}
