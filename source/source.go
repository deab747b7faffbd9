// Package source classifies a script by size and gives the generator either its
// full text or a streaming, line-indexed regex search over it.
//
// Small files (at or below the threshold) are read once and retained. Large
// files are never held in memory: their lines are counted by streaming, and the
// only way to look inside them is Search.
//
//	desc, err := source.Open("scripts/analyzer.py")
//	if desc.IsLarge() {
//	    matches, err := desc.Search(`^import |^from `, 2)
//	    ...
//	}
package source

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

const (
	// DefaultThreshold is the byte size above which a file is treated as large.
	DefaultThreshold = 100 * 1024

	// MaxMatches caps the number of results returned by a single Search.
	MaxMatches = 50

	// DefaultContextLines is the context window used when callers don't pick one.
	DefaultContextLines = 2

	maxLineBytes = 16 * 1024 * 1024
)

var (
	// ErrOversizedAccess is returned by Content for large files.
	ErrOversizedAccess = errors.New("file too large for full content access")

	// ErrInvalidPattern is returned by Search when the expression does not compile.
	ErrInvalidPattern = errors.New("invalid regex pattern")
)

// Descriptor describes one input file. It is created by Open and never
// changes afterwards.
type Descriptor struct {
	path      string
	size      int64
	lineCount int
	threshold int64
	isLarge   bool
	content   string
}

// Option configures Open.
type Option func(*Descriptor)

// WithThreshold overrides DefaultThreshold.
func WithThreshold(n int64) Option {
	return func(d *Descriptor) {
		if n > 0 {
			d.threshold = n
		}
	}
}

// Open stats the file, classifies it and either loads its content (small) or
// counts its lines by streaming (large).
func Open(path string, opts ...Option) (*Descriptor, error) {
	d := &Descriptor{
		path:      path,
		threshold: DefaultThreshold,
	}
	for _, opt := range opts {
		opt(d)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	d.size = info.Size()
	d.isLarge = d.size > d.threshold

	if !d.isLarge {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		d.content = string(data)
		d.lineCount, err = countLines(strings.NewReader(d.content))
		if err != nil {
			return nil, fmt.Errorf("count lines in %s: %w", path, err)
		}
		return d, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	d.lineCount, err = countLines(f)
	if err != nil {
		return nil, fmt.Errorf("count lines in %s: %w", path, err)
	}
	return d, nil
}

// Path returns the path the descriptor was opened with.
func (d *Descriptor) Path() string { return d.path }

// Size returns the file size in bytes.
func (d *Descriptor) Size() int64 { return d.size }

// LineCount returns the number of lines in the file.
func (d *Descriptor) LineCount() int { return d.lineCount }

// IsLarge reports whether the file exceeded the threshold.
func (d *Descriptor) IsLarge() bool { return d.isLarge }

// Threshold returns the byte threshold used for classification.
func (d *Descriptor) Threshold() int64 { return d.threshold }

// Content returns the exact file text. Large files fail with ErrOversizedAccess.
func (d *Descriptor) Content() (string, error) {
	if d.isLarge {
		return "", fmt.Errorf("%w: file is %d bytes, use search instead", ErrOversizedAccess, d.size)
	}
	return d.content, nil
}

// Match is one Search hit.
type Match struct {
	LineNumber    int      `json:"line_num"`
	Text          string   `json:"content"`
	ContextBefore []string `json:"context_before"`
	ContextAfter  []string `json:"context_after"`
}

// Search scans the file line by line and returns up to MaxMatches lines that
// match pattern, in ascending line order, each with up to contextLines lines
// of surrounding context clipped at the file boundaries. Every call re-reads
// the file.
func (d *Descriptor) Search(pattern string, contextLines int) ([]Match, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	if contextLines < 0 {
		contextLines = 0
	}
	// no window can hold more lines than the file has
	if contextLines > d.lineCount {
		contextLines = d.lineCount
	}

	f, err := os.Open(d.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.path, err)
	}
	defer f.Close()

	matches := make([]Match, 0)
	var before []string
	// indexes into matches still waiting for trailing context
	var pending []int

	scanner := newLineScanner(f)
	lineNum := 0
	for scanner.Scan() {
		line := scanner.Text()
		lineNum++

		kept := pending[:0]
		for _, idx := range pending {
			matches[idx].ContextAfter = append(matches[idx].ContextAfter, line)
			if len(matches[idx].ContextAfter) < contextLines {
				kept = append(kept, idx)
			}
		}
		pending = kept

		if len(matches) < MaxMatches && re.MatchString(line) {
			m := Match{
				LineNumber:    lineNum,
				Text:          line,
				ContextBefore: append([]string(nil), before...),
				ContextAfter:  []string{},
			}
			if m.ContextBefore == nil {
				m.ContextBefore = []string{}
			}
			matches = append(matches, m)
			if contextLines > 0 {
				pending = append(pending, len(matches)-1)
			}
		}

		if len(matches) >= MaxMatches && len(pending) == 0 {
			break
		}

		if contextLines > 0 {
			if len(before) == contextLines {
				before = append(before[:0], before[1:]...)
			}
			before = append(before, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("search %s: %w", d.path, err)
	}

	return matches, nil
}

func countLines(r io.Reader) (int, error) {
	scanner := newLineScanner(r)
	n := 0
	for scanner.Scan() {
		n++
	}
	return n, scanner.Err()
}

func newLineScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	scanner.Split(scanLines)
	return scanner
}

// scanLines is bufio.ScanLines extended to treat "\r\n", "\n" and a lone "\r"
// as line terminators. A trailing terminator does not produce an empty line.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		if atEOF {
			return i + 1, data[:i], nil
		}
		// need one more byte to tell "\r" from "\r\n"
		return 0, nil, nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
