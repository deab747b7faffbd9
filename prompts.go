package dockwright

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/everydev1618/dockwright/source"
)

const baseInstructions = `You are an expert Dockerfile generation assistant.

CRITICAL: Your response MUST contain ONLY a Dockerfile wrapped in a code block (` + "```dockerfile ... ```" + `). No explanations, no reasoning, no other text before or after.

Generate an optimal Dockerfile that:
1. Uses the appropriate base image for the language
2. Installs all required dependencies
3. Copies the script into the container and sets the correct entry point
4. Handles command-line arguments correctly
5. Follows Docker best practices (minimal layers, efficient caching)`

const (
	searchGuidance = "You have access to " + ActionSearch + " tool to find imports, dependencies, and entry points in files. Use it to efficiently find what you need."
	testGuidance   = "You have access to " + ActionTest + " tool to validate your Dockerfile. Use it to test and iterate until the test passes."
	noTestNotice   = "Docker client is not available. Generate the best Dockerfile you can based on the script analysis. Testing will not be possible."
)

// BuildSystemPrompt returns the fixed instructions plus guidance for each
// exposed action, or a notice that validation is unavailable.
func BuildSystemPrompt(caps CapabilitySet) string {
	parts := []string{baseInstructions}
	if caps.Search() {
		parts = append(parts, searchGuidance)
	}
	if caps.Test() {
		parts = append(parts, testGuidance)
	} else {
		parts = append(parts, noTestNotice)
	}
	return strings.Join(parts, "\n\n")
}

// FileMetadata describes the script by name, size and line count.
func FileMetadata(desc *source.Descriptor) string {
	size := fmt.Sprintf("%dB", desc.Size())
	if desc.Size() >= 1024 {
		size = fmt.Sprintf("%.1fKB", float64(desc.Size())/1024)
	}
	return fmt.Sprintf("File: %s\nSize: %s\nLines: %d", filepath.Base(desc.Path()), size, desc.LineCount())
}

// contentSection embeds a small script verbatim, or points the model at the
// search action for a large one.
func contentSection(desc *source.Descriptor) (string, error) {
	if desc.IsLarge() {
		return "File path available for " + ActionSearch + " tool. File extension: " + filepath.Base(desc.Path()), nil
	}
	content, err := desc.Content()
	if err != nil {
		return "", err
	}
	return "Script content:\n```\n" + content + "\n```", nil
}

const searchPlan = `Search for:
1. All imports/dependencies (search for: ^import |^from |^require|package\.json|requirements\.txt|Gemfile|Cargo\.toml)
2. System packages needed (search for: apt-get|apk|brew|yum)
3. Entry point/main function (search for: ^if __name__|def main|function main|^func main)`

// BuildUserPrompt assembles the script representation, the example usage
// and the closing request.
func BuildUserPrompt(desc *source.Descriptor, example string, caps CapabilitySet) (string, error) {
	content, err := contentSection(desc)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(FileMetadata(desc))
	b.WriteString("\n\n")
	b.WriteString(content)
	b.WriteString("\n\n")
	if desc.IsLarge() {
		b.WriteString(searchPlan)
		b.WriteString("\n\n")
	}
	b.WriteString("Example usage:\n")
	b.WriteString(example)
	b.WriteString("\n\nGenerate a Dockerfile that allows running this script with the same command-line interface.\n")

	switch {
	case desc.IsLarge() && caps.Test():
		b.WriteString("Search for dependencies first, then generate. Test using the " + ActionTest + " tool and iterate if needed.")
	case desc.IsLarge():
		b.WriteString("Search for dependencies first, then generate.")
	case caps.Test():
		b.WriteString("Test it using the " + ActionTest + " tool and iterate if needed.")
	}

	return strings.TrimRight(b.String(), "\n"), nil
}
