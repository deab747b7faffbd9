package dockwright

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/everydev1618/dockwright/source"
)

func writeScript(t *testing.T, name, content string, opts ...source.Option) *source.Descriptor {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	desc, err := source.Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return desc
}

func TestFileMetadata(t *testing.T) {
	small := writeScript(t, "echo.py", "print('hi')\n")
	if got, want := FileMetadata(small), "File: echo.py\nSize: 12B\nLines: 1"; got != want {
		t.Errorf("FileMetadata() = %q, want %q", got, want)
	}

	big := writeScript(t, "big.py", strings.Repeat("x = 1\n", 512))
	if got := FileMetadata(big); !strings.Contains(got, "Size: 3.0KB") || !strings.Contains(got, "Lines: 512") {
		t.Errorf("FileMetadata() = %q", got)
	}
}

func TestBuildUserPromptSmall(t *testing.T) {
	desc := writeScript(t, "echo.py", "import sys\nprint(sys.argv[1].upper())\n")
	caps := ComputeCapabilities(desc.IsLarge(), true)

	p, err := BuildUserPrompt(desc, "python echo.py hi\nHI", caps)
	if err != nil {
		t.Fatalf("BuildUserPrompt() error = %v", err)
	}

	for _, want := range []string{
		"File: echo.py",
		"Script content:\n```\nimport sys\nprint(sys.argv[1].upper())\n\n```",
		"Example usage:\npython echo.py hi\nHI",
		"Generate a Dockerfile that allows running this script with the same command-line interface.",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q\n%s", want, p)
		}
	}
	if !strings.HasSuffix(p, "Test it using the "+ActionTest+" tool and iterate if needed.") {
		t.Errorf("unexpected closing line: %q", p)
	}
	if strings.Contains(p, "Search for:") {
		t.Error("small prompt should not carry the search plan")
	}
}

func TestBuildUserPromptLarge(t *testing.T) {
	desc := writeScript(t, "tool.py", strings.Repeat("import os\n", 20), source.WithThreshold(16))
	if !desc.IsLarge() {
		t.Fatal("expected a large file")
	}
	caps := ComputeCapabilities(true, false)

	p, err := BuildUserPrompt(desc, "python tool.py x", caps)
	if err != nil {
		t.Fatalf("BuildUserPrompt() error = %v", err)
	}
	if strings.Contains(p, "Script content:") {
		t.Error("large prompt must not embed content")
	}
	if !strings.Contains(p, "File path available for "+ActionSearch+" tool.") {
		t.Error("large prompt should point at the search action")
	}
	if !strings.Contains(p, searchPlan) {
		t.Error("large prompt should carry the search plan")
	}
	if !strings.HasSuffix(p, "Search for dependencies first, then generate.") {
		t.Errorf("unexpected closing line: %q", p)
	}
}

func TestBuildUserPromptNoActions(t *testing.T) {
	desc := writeScript(t, "a.sh", "echo $1\n")
	p, err := BuildUserPrompt(desc, "sh a.sh hi", ComputeCapabilities(false, false))
	if err != nil {
		t.Fatalf("BuildUserPrompt() error = %v", err)
	}
	if !strings.HasSuffix(p, "with the same command-line interface.") {
		t.Errorf("prompt should end with the request, got %q", p)
	}
}
