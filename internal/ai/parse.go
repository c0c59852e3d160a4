package ai

import (
	"fmt"
	"strings"

	"github.com/v0xg/jobfill/internal/protocol"
)

// parseDocumentJSON extracts and parses a JSON object from a response that
// may contain surrounding text or markdown fences.
func parseDocumentJSON(response string) (*protocol.Document, error) {
	// First try direct parsing
	if doc, err := protocol.Parse([]byte(response)); err == nil {
		return doc, nil
	}

	body, err := extractObject(response)
	if err != nil {
		return nil, err
	}
	return protocol.Parse([]byte(body))
}

// extractObject returns the first balanced {...} in s. Braces inside JSON
// strings are ignored.
func extractObject(s string) (string, error) {
	start := strings.Index(s, "{")
	if start == -1 {
		return "", fmt.Errorf("no JSON object found in response")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("no matching closing brace found")
}
