// Package output writes command results either as JSON envelopes or as
// human-readable text.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Writer sends results to Stdout and diagnostics to Stderr.
type Writer struct {
	JSONMode  bool
	QuietMode bool
	Stdout    io.Writer
	Stderr    io.Writer
}

// New creates a Writer on the process streams.
func New(jsonMode, quietMode bool) *Writer {
	return &Writer{
		JSONMode:  jsonMode,
		QuietMode: quietMode,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
	}
}

// Result writes data as a JSON envelope, or the pre-rendered human view.
func (w *Writer) Result(data any, human string) {
	if w.JSONMode {
		writeJSONSuccess(w.Stdout, data, "")
		return
	}
	if human = strings.TrimRight(human, "\n"); human != "" {
		fmt.Fprintln(w.Stdout, human)
	}
}

// Success writes data with a short confirmation. A multi-line message is
// printed without the success icon.
func (w *Writer) Success(data any, message string) {
	switch {
	case w.JSONMode:
		writeJSONSuccess(w.Stdout, data, message)
	case message == "":
	case strings.Contains(message, "\n"):
		fmt.Fprintln(w.Stdout, message)
	default:
		noticeSuccess.write(w.Stdout, message)
	}
}

// Error reports err and returns the process exit code for code. JSON errors
// go to Stdout so scripts read a single stream.
func (w *Writer) Error(err error, code ErrorCode) int {
	if w.JSONMode {
		writeJSONError(w.Stdout, err, code)
	} else {
		noticeError.write(w.Stderr, err.Error())
	}
	return ExitCodeForError(code)
}

// Info is progress chatter. It is dropped in quiet and JSON mode.
func (w *Writer) Info(format string, args ...any) {
	if w.QuietMode || w.JSONMode {
		return
	}
	noticeInfo.write(w.Stderr, fmt.Sprintf(format, args...))
}

// Warn is shown even in quiet mode, but never in JSON mode.
func (w *Writer) Warn(format string, args ...any) {
	if w.JSONMode {
		return
	}
	noticeWarn.write(w.Stderr, fmt.Sprintf(format, args...))
}
