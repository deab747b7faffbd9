package container

import "strings"

// Stage names reported by Verdict.Stage.
const (
	StageBuild   = "build"
	StageRun     = "run"
	StageCompare = "compare"
	StagePassed  = "passed"
)

// Verdict is the result of one sandbox test. A failed verdict carries exactly
// one of BuildErrors, RuntimeErrors or OutputDiff, naming the stage that
// failed; ActualOutput accompanies OutputDiff. A passing verdict carries none.
type Verdict struct {
	Success       bool   `json:"success"`
	BuildErrors   string `json:"build_errors,omitempty"`
	RuntimeErrors string `json:"runtime_errors,omitempty"`
	ActualOutput  string `json:"actual_output,omitempty"`
	OutputDiff    string `json:"output_diff,omitempty"`
}

// Stage returns the pipeline stage the verdict ended in.
func (v *Verdict) Stage() string {
	switch {
	case v.Success:
		return StagePassed
	case v.BuildErrors != "":
		return StageBuild
	case v.RuntimeErrors != "":
		return StageRun
	default:
		return StageCompare
	}
}

// Detail returns the failure log of the stage that failed, or "" for a pass.
func (v *Verdict) Detail() string {
	switch v.Stage() {
	case StageBuild:
		return v.BuildErrors
	case StageRun:
		return v.RuntimeErrors
	case StageCompare:
		return v.OutputDiff
	}
	return ""
}

// Normalize trims surrounding whitespace and turns CRLF and lone CR into LF.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(s)
}

// Compare reports whether the normalized expected text occurs anywhere in the
// normalized actual text. An empty expectation always matches. On mismatch
// the returned diff shows both normalized strings.
func Compare(expected, actual string) (bool, string) {
	exp := Normalize(expected)
	act := Normalize(actual)
	if strings.Contains(act, exp) {
		return true, ""
	}
	return false, "Expected:\n" + exp + "\n\nActual:\n" + act
}
