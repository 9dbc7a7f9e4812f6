package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/ALT-F4-LLC/rewind/internal/db"
	"github.com/ALT-F4-LLC/rewind/internal/history"
	"github.com/ALT-F4-LLC/rewind/internal/model"
)

func structural(id int64) error {
	return &history.StructuralError{Kind: model.KindIssue, ID: id, Err: history.ErrTooManySimultaneous}
}

func decode[T any](t *testing.T, buf *bytes.Buffer) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(buf.Bytes(), &v); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	return v
}

func TestSuccessEnvelope(t *testing.T) {
	var buf bytes.Buffer
	w := &Writer{JSONMode: true, Stdout: &buf}
	w.Success(map[string]int{"entities": 3}, "Imported 3 entities")

	env := decode[successEnvelope](t, &buf)
	if !env.OK || env.Message != "Imported 3 entities" {
		t.Errorf("envelope = %+v", env)
	}
	data, ok := env.Data.(map[string]any)
	if !ok || data["entities"] != float64(3) {
		t.Errorf("data = %#v", env.Data)
	}

	buf.Reset()
	w.Result([]int{1}, "ignored")
	raw := decode[map[string]any](t, &buf)
	if _, exists := raw["message"]; exists {
		t.Error("an empty message should be omitted")
	}
}

func TestErrorEnvelopeListsFailedEntities(t *testing.T) {
	var stdout, stderr bytes.Buffer
	w := &Writer{JSONMode: true, Stdout: &stdout, Stderr: &stderr}

	err := errors.Join(structural(4), structural(2))
	if code := w.Error(err, ErrStructural); code != ExitStructural {
		t.Errorf("exit code = %d, want %d", code, ExitStructural)
	}
	if stderr.Len() != 0 {
		t.Errorf("stderr = %q, want nothing in JSON mode", stderr.String())
	}

	env := decode[errorEnvelope](t, &stdout)
	if env.OK || env.Code != ErrStructural {
		t.Errorf("envelope = %+v", env)
	}
	if want := []string{"BUG-2", "BUG-4"}; !reflect.DeepEqual(env.Failed, want) {
		t.Errorf("failed = %v, want %v", env.Failed, want)
	}
}

func TestErrorEnvelopeOmitsFailedForOtherErrors(t *testing.T) {
	var buf bytes.Buffer
	writeJSONError(&buf, errors.New("no rewind database found"), ErrNotFound)

	raw := decode[map[string]any](t, &buf)
	if _, exists := raw["failed"]; exists {
		t.Error("failed should be omitted when no entity failed")
	}
	if raw["code"] != string(ErrNotFound) {
		t.Errorf("code = %v", raw["code"])
	}
}

func TestHumanNotices(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	tests := []struct {
		name       string
		quiet      bool
		emit       func(w *Writer)
		wantStdout string
		wantStderr string
	}{
		{"error", false, func(w *Writer) { w.Error(errors.New("fail"), ErrGeneral) }, "", "Error: fail\n"},
		{"warn", false, func(w *Writer) { w.Warn("%d skipped", 2) }, "", "Warning: 2 skipped\n"},
		{"warn quiet", true, func(w *Writer) { w.Warn("kept") }, "", "Warning: kept\n"},
		{"info", false, func(w *Writer) { w.Info("hello %s", "world") }, "", "hello world\n"},
		{"info quiet", true, func(w *Writer) { w.Info("dropped") }, "", ""},
		{"success", false, func(w *Writer) { w.Success(nil, "done") }, "done\n", ""},
		{"success block", false, func(w *Writer) { w.Success(nil, "a\nb") }, "a\nb\n", ""},
		{"result", false, func(w *Writer) { w.Result(nil, "table\n\n") }, "table\n", ""},
		{"empty result", false, func(w *Writer) { w.Result(nil, "") }, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			tt.emit(&Writer{QuietMode: tt.quiet, Stdout: &stdout, Stderr: &stderr})
			if stdout.String() != tt.wantStdout {
				t.Errorf("stdout = %q, want %q", stdout.String(), tt.wantStdout)
			}
			if stderr.String() != tt.wantStderr {
				t.Errorf("stderr = %q, want %q", stderr.String(), tt.wantStderr)
			}
		})
	}
}

func TestInfoAndWarnSilentInJSONMode(t *testing.T) {
	var stdout, stderr bytes.Buffer
	w := &Writer{JSONMode: true, Stdout: &stdout, Stderr: &stderr}
	w.Info("progress")
	w.Warn("careful")
	if stdout.Len()+stderr.Len() != 0 {
		t.Errorf("got stdout %q, stderr %q", stdout.String(), stderr.String())
	}
}

func TestExitCodeForError(t *testing.T) {
	tests := map[ErrorCode]int{
		ErrGeneral:           ExitGeneral,
		ErrNotFound:          ExitNotFound,
		ErrValidation:        ExitValidation,
		ErrStructural:        ExitStructural,
		ErrBackend:           ExitBackend,
		ErrorCode("unknown"): ExitGeneral,
	}
	for code, want := range tests {
		if got := ExitCodeForError(code); got != want {
			t.Errorf("ExitCodeForError(%q) = %d, want %d", code, got, want)
		}
	}
}

func TestClassify(t *testing.T) {
	lookup := &history.LookupError{Kind: model.KindIssue, ID: 4, Err: errors.New("disk I/O error")}

	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, ""},
		{"structural", structural(3), ErrStructural},
		{"wrapped structural", fmt.Errorf("run: %w", structural(3)), ErrStructural},
		{"lookup", lookup, ErrBackend},
		{"joined", errors.Join(structural(3), lookup), ErrBackend},
		{"not found", fmt.Errorf("issue 9: %w", db.ErrNotFound), ErrNotFound},
		{"other", errors.New("boom"), ErrGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFailedEntities(t *testing.T) {
	att := &history.StructuralError{Kind: model.KindAttachment, ID: 7, Err: history.ErrMissingCreator}
	err := fmt.Errorf("rebuild: %w", errors.Join(
		structural(9),
		fmt.Errorf("again: %w", structural(9)),
		att,
		errors.New("unrelated"),
	))

	got := FailedEntities(err)
	want := []string{"ATT-7", "BUG-9"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FailedEntities = %v, want %v", got, want)
	}
	if FailedEntities(errors.New("plain")) != nil {
		t.Error("expected nil for an error without entities")
	}
}
