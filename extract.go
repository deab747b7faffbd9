package dockwright

import (
	"strings"
)

const fence = "```"

// ExtractArtifact pulls the Dockerfile out of a model response. The body of
// the first fenced code block is returned with fenced=true. When the response
// has no non-empty fenced block, fence lines are stripped from a response
// that starts with a fence, and any other response is returned as is, with
// fenced=false. The result is trimmed either way.
func ExtractArtifact(response string) (artifact string, fenced bool) {
	lines := strings.Split(response, "\n")

	var body []string
	inBlock := false
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), fence) {
			if inBlock {
				break
			}
			inBlock = true
			continue
		}
		if inBlock {
			body = append(body, line)
		}
	}

	if block := strings.TrimSpace(strings.Join(body, "\n")); block != "" {
		return block, true
	}

	if strings.HasPrefix(response, fence) {
		var kept []string
		for _, line := range lines {
			if !strings.HasPrefix(line, fence) {
				kept = append(kept, line)
			}
		}
		return strings.TrimSpace(strings.Join(kept, "\n")), false
	}

	return strings.TrimSpace(response), false
}
