package dockwright

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultOutputDir is where generated Dockerfiles are saved.
const DefaultOutputDir = "generated_dockerfiles"

// SaveArtifact writes content to <dir>/<script stem>_<YYYYMMDD_HHMMSS>.Dockerfile,
// creating dir if needed, and returns the written path.
func SaveArtifact(content, scriptPath, dir string) (string, error) {
	return saveArtifactAt(content, scriptPath, dir, time.Now())
}

func saveArtifactAt(content, scriptPath, dir string, now time.Time) (string, error) {
	if dir == "" {
		dir = DefaultOutputDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	base := filepath.Base(scriptPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	path := filepath.Join(dir, stem+"_"+now.Format("20060102_150405")+".Dockerfile")

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write Dockerfile: %w", err)
	}
	return path, nil
}
