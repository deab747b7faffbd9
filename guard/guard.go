// Package guard checks user-supplied inputs before they reach the model or
// the sandbox: path validation, a size ceiling, advisory prompt-injection
// detection, and sanitization for shell embedding.
package guard

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultMaxScriptSize is the largest script accepted for generation.
const DefaultMaxScriptSize = 500 * 1024

// DefaultMaxExampleSize is the largest example usage file accepted. The
// example is embedded in the prompt verbatim.
const DefaultMaxExampleSize = 64 * 1024

// metacharThreshold is the number of shell metacharacters above which text is
// flagged.
const metacharThreshold = 5

var (
	// ErrNotFound is returned when the path does not exist.
	ErrNotFound = errors.New("file not found")

	// ErrNotAFile is returned when the path is a directory or other non-regular entry.
	ErrNotAFile = errors.New("not a file")

	// ErrOutsideBoundary is returned when the resolved path escapes the base directory.
	ErrOutsideBoundary = errors.New("path is outside allowed directory")
)

// PathError wraps a validation failure with the path that caused it.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return e.Err.Error() + ": " + e.Path
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// ValidatePath resolves path to an absolute, symlink-free form and checks that
// it names an existing regular file. When baseDir is non-empty, the resolved
// path must also lie under the resolved baseDir.
//
// Raw paths containing ".." or starting with "/" are accepted once they
// resolve, but are logged as unusual.
func ValidatePath(path, baseDir string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", &PathError{Path: path, Err: fmt.Errorf("invalid file path: %w", err)}
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &PathError{Path: path, Err: ErrNotFound}
		}
		return "", &PathError{Path: path, Err: fmt.Errorf("invalid file path: %w", err)}
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &PathError{Path: path, Err: ErrNotFound}
		}
		return "", &PathError{Path: path, Err: fmt.Errorf("invalid file path: %w", err)}
	}
	if !info.Mode().IsRegular() {
		return "", &PathError{Path: path, Err: ErrNotAFile}
	}

	if baseDir != "" {
		within, err := isWithin(resolved, baseDir)
		if err != nil {
			return "", &PathError{Path: path, Err: fmt.Errorf("invalid base directory %s: %w", baseDir, err)}
		}
		if !within {
			return "", &PathError{Path: path, Err: ErrOutsideBoundary}
		}
	}

	if strings.Contains(path, "..") || strings.HasPrefix(path, "/") {
		slog.Warn("unusual path syntax", "path", path, "resolved", resolved)
	}

	return resolved, nil
}

// isWithin compares canonical forms, so ".." segments and symlinks in either
// argument are resolved before the check.
func isWithin(resolved, baseDir string) (bool, error) {
	base, err := filepath.Abs(baseDir)
	if err != nil {
		return false, err
	}
	base, err = filepath.EvalSymlinks(base)
	if err != nil {
		return false, err
	}

	rel, err := filepath.Rel(base, resolved)
	if err != nil {
		return false, nil
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return false, nil
	}
	return true, nil
}

// CheckSize reports whether the file at path is at most maxBytes long, along
// with its measured size. The content is not read.
func CheckSize(path string, maxBytes int64) (bool, int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, 0, fmt.Errorf("cannot check file size: %w", err)
	}
	size := info.Size()
	return size <= maxBytes, size, nil
}

var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`ignore\s+(?:all\s+)?(?:previous|prior|initial).*instructions`),
	regexp.MustCompile(`forget\s+(?:all\s+)?(?:previous|prior|initial|context)`),
	regexp.MustCompile(`new\s+instructions?:`),
	regexp.MustCompile(`override\s+(?:all\s+)?previous`),
	regexp.MustCompile(`disregard\s+(?:all\s+)?previous`),
	regexp.MustCompile(`execute\s+.*code`),
	regexp.MustCompile(`run\s+.*command`),
	regexp.MustCompile(`system\s+command`),
}

// DetectInjection reports whether text looks like an attempt to override the
// model's instructions, or carries an unusual number of shell metacharacters.
// The result is advisory: callers surface it as a warning and carry on.
func DetectInjection(text string) bool {
	if text == "" {
		return false
	}

	lower := strings.ToLower(text)
	for _, re := range injectionPatterns {
		if re.MatchString(lower) {
			return true
		}
	}

	count := strings.Count(lower, ";") + strings.Count(lower, "|") + strings.Count(lower, "&&")
	return count > metacharThreshold
}

// SanitizeForSandbox drops NUL and other control characters (keeping tab,
// newline and carriage return) and escapes single quotes so the result can be
// placed inside a single-quoted shell argument.
func SanitizeForSandbox(text string) string {
	if text == "" {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r >= 32 || r == '\n' || r == '\t' || r == '\r' {
			b.WriteRune(r)
		}
	}

	return strings.ReplaceAll(b.String(), "'", `'\''`)
}
