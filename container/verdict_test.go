package container

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a\r\nb\rc", "a\nb\nc"},
		{"  HELLO\n", "HELLO"},
		{"\r\n\r\n", ""},
		{"", ""},
		{"x\r\r\ny", "x\n\ny"},
	}

	for _, tt := range tests {
		got := Normalize(tt.in)
		if got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if again := Normalize(got); again != got {
			t.Errorf("Normalize not idempotent on %q: %q -> %q", tt.in, got, again)
		}
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		actual   string
		want     bool
	}{
		{"contained with banner", "ok", "debug\nok\n", true},
		{"mismatch", "ok", "fail", false},
		{"exact", "HELLO", "HELLO\n", true},
		{"crlf actual", "a\nb", "a\r\nb\r\n", true},
		{"empty expected", "", "anything", true},
		{"empty actual", "x", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, diff := Compare(tt.expected, tt.actual)
			if got != tt.want {
				t.Fatalf("Compare(%q, %q) = %v, want %v", tt.expected, tt.actual, got, tt.want)
			}
			if got && diff != "" {
				t.Errorf("diff = %q on pass", diff)
			}
			if !got && diff == "" {
				t.Error("diff empty on mismatch")
			}
		})
	}
}

func TestVerdictStage(t *testing.T) {
	tests := []struct {
		v    Verdict
		want string
	}{
		{Verdict{Success: true}, StagePassed},
		{Verdict{BuildErrors: "x"}, StageBuild},
		{Verdict{RuntimeErrors: "x"}, StageRun},
		{Verdict{OutputDiff: "x", ActualOutput: "y"}, StageCompare},
	}
	for _, tt := range tests {
		if got := tt.v.Stage(); got != tt.want {
			t.Errorf("Stage(%+v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}
