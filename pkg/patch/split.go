package patch

import (
	"fmt"
	"strings"
)

// headerLines is the number of leading input lines copied into both outputs.
const headerLines = 2

// Error codes attached to *Error values.
const (
	CodeMalformedInput = "MALFORMED_INPUT"
	CodeMarkerNotFound = "MARKER_NOT_FOUND"
	CodeInvalidJob     = "INVALID_JOB"
	CodeDecode         = "DECODE_FAILED"
	CodeIO             = "IO_FAILED"
)

// Sentinels for errors.Is. Any *Error with the same Code matches.
var (
	ErrMalformedInput = &Error{Code: CodeMalformedInput, Message: "malformed input"}
	ErrMarkerNotFound = &Error{Code: CodeMarkerNotFound, Message: "marker not found"}
	ErrInvalidJob     = &Error{Code: CodeInvalidJob, Message: "invalid split job"}
	ErrDecode         = &Error{Code: CodeDecode, Message: "decode failed"}
	ErrIO             = &Error{Code: CodeIO, Message: "i/o failure"}
)

// Error represents a structured failure while splitting a patch. It satisfies
// the error interface so it can be returned directly from Split* helpers.
type Error struct {
	Message string
	Code    string
	Path    string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = "patch split error"
	}
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target is an *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// Split is the outcome of partitioning a patch document.
type Split struct {
	Marker string
	// Header holds the first two input lines verbatim.
	Header []string
	// OursLines holds the body lines before the marker line.
	OursLines []string
	// ExistingLines holds the body lines from the marker line to the end.
	ExistingLines []string
	// Index is the position of the marker line within the body.
	Index int
	// Line is the position of the marker line within the whole input.
	Line int
	// Matches counts body lines starting with Marker. Only the first one splits.
	Matches int
}

// SplitText normalizes line endings, breaks text into lines and splits it.
func SplitText(text, marker string) (*Split, error) {
	return SplitLines(splitLines(text), marker)
}

// SplitLines partitions lines at the first body line that starts with marker.
func SplitLines(lines []string, marker string) (*Split, error) {
	if marker == "" {
		return nil, &Error{Code: CodeInvalidJob, Message: "split marker must not be empty"}
	}
	if len(lines) < headerLines {
		return nil, &Error{
			Code:    CodeMalformedInput,
			Message: fmt.Sprintf("input has %d line(s), at least %d are required for the header", len(lines), headerLines),
		}
	}

	body := lines[headerLines:]
	index, matches := -1, 0
	for i, line := range body {
		if !strings.HasPrefix(line, marker) {
			continue
		}
		if index < 0 {
			index = i
		}
		matches++
	}
	if index < 0 {
		return nil, &Error{
			Code:    CodeMarkerNotFound,
			Message: fmt.Sprintf("no line starts with %q", marker),
		}
	}

	return &Split{
		Marker:        marker,
		Header:        append([]string(nil), lines[:headerLines]...),
		OursLines:     append([]string{}, body[:index]...),
		ExistingLines: append([]string{}, body[index:]...),
		Index:         index,
		Line:          index + headerLines,
		Matches:       matches,
	}, nil
}

// HeaderText returns the header lines joined with a trailing newline.
func (s *Split) HeaderText() string {
	return strings.Join(s.Header, "\n") + "\n"
}

// Ours renders the document holding the header and the lines before the marker.
func (s *Split) Ours() string {
	return s.render(s.OursLines)
}

// Existing renders the document holding the header and the lines from the marker on.
func (s *Split) Existing() string {
	return s.render(s.ExistingLines)
}

func (s *Split) render(segment []string) string {
	return s.HeaderText() + strings.Join(segment, "\n") + "\n"
}

// MarkerLine returns the body line the split happened at.
func (s *Split) MarkerLine() string {
	if len(s.ExistingLines) == 0 {
		return ""
	}
	return s.ExistingLines[0]
}

func splitLines(input string) []string {
	if input == "" {
		return nil
	}
	normalized := strings.ReplaceAll(input, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	normalized = strings.TrimSuffix(normalized, "\n")
	return strings.Split(normalized, "\n")
}
