package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestCodeOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("resolve owner/repo: %w", NewNoRunError("owner/repo", "abc123"))
	if got := CodeOf(err); got != ErrCodeNoRun {
		t.Errorf("CodeOf = %q, want %q", got, ErrCodeNoRun)
	}
	if !IsNoRun(err) {
		t.Error("IsNoRun = false, want true")
	}
}

func TestCodeOf_PlainError(t *testing.T) {
	if got := CodeOf(stderrors.New("boom")); got != "" {
		t.Errorf("CodeOf = %q, want empty", got)
	}
}

func TestIsArtifactFailure(t *testing.T) {
	cases := map[string]struct {
		err  error
		want bool
	}{
		"listing":  {NewArtifactListingError(stderrors.New("503")), true},
		"missing":  {NewNoArtifactError("grading-report"), true},
		"download": {NewDownloadError(stderrors.New("410")), true},
		"parse":    {NewParseError("bad zip", nil), false},
		"no run":   {NewNoRunError("a/b", "c"), false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := IsArtifactFailure(tc.err); got != tc.want {
				t.Errorf("IsArtifactFailure = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := NewTransportError("list runs", cause)
	if !stderrors.Is(err, cause) {
		t.Error("errors.Is did not find the wrapped cause")
	}
	want := "TRANSPORT_ERROR: list runs failed (connection reset)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
