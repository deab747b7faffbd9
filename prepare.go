package dockwright

import (
	"fmt"
	"os"

	"github.com/everydev1618/dockwright/guard"
	"github.com/everydev1618/dockwright/source"
)

// PrepareOptions bounds what Prepare accepts.
type PrepareOptions struct {
	// BaseDir, when set, confines both paths to a directory tree.
	BaseDir string
	// MaxScriptSize defaults to guard.DefaultMaxScriptSize.
	MaxScriptSize int64
	// MaxExampleSize defaults to guard.DefaultMaxExampleSize.
	MaxExampleSize int64
	// Threshold defaults to source.DefaultThreshold.
	Threshold int64
}

// Prepared is a validated generation request.
type Prepared struct {
	Request     Request
	ScriptPath  string
	ExamplePath string
	// Warnings lists advisory injection findings. They never block a run.
	Warnings []string
}

// Prepare validates a script and example file pair and loads them into a
// Request. Path and size failures reject the request before any model or
// sandbox work; suspicious content only produces warnings.
func Prepare(scriptPath, examplePath string, opts PrepareOptions) (*Prepared, error) {
	if opts.MaxScriptSize <= 0 {
		opts.MaxScriptSize = guard.DefaultMaxScriptSize
	}
	if opts.MaxExampleSize <= 0 {
		opts.MaxExampleSize = guard.DefaultMaxExampleSize
	}

	script, err := guard.ValidatePath(scriptPath, opts.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("script: %w", err)
	}
	example, err := guard.ValidatePath(examplePath, opts.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("example usage file: %w", err)
	}

	ok, size, err := guard.CheckSize(script, opts.MaxScriptSize)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d bytes, maximum %d", ErrScriptTooLarge, size, opts.MaxScriptSize)
	}
	ok, size, err = guard.CheckSize(example, opts.MaxExampleSize)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d bytes, maximum %d", ErrExampleTooLarge, size, opts.MaxExampleSize)
	}

	var srcOpts []source.Option
	if opts.Threshold > 0 {
		srcOpts = append(srcOpts, source.WithThreshold(opts.Threshold))
	}
	desc, err := source.Open(script, srcOpts...)
	if err != nil {
		return nil, err
	}

	exampleText, err := os.ReadFile(example)
	if err != nil {
		return nil, fmt.Errorf("read example usage file: %w", err)
	}

	p := &Prepared{
		Request:     Request{Source: desc, Example: string(exampleText)},
		ScriptPath:  script,
		ExamplePath: example,
	}

	// large scripts are never loaded, so only small ones are scanned
	if content, err := desc.Content(); err == nil && guard.DetectInjection(content) {
		p.Warnings = append(p.Warnings, "Script contains potential prompt injection patterns")
	}
	if guard.DetectInjection(p.Request.Example) {
		p.Warnings = append(p.Warnings, "Example file contains potential prompt injection patterns")
	}

	return p, nil
}
