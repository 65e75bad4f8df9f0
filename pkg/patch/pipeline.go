package patch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dsnet/compress/bzip2"
)

// bzip2Ext marks inputs that are read through a bzip2 decompressor.
const bzip2Ext = ".bz2"

// Job describes a single split: where to read, where to cut and where to write.
type Job struct {
	Input        string
	Marker       string
	Encoding     Encoding
	OursPath     string
	ExistingPath string
}

// Result describes the outcome for a single output file. Status is "A" when
// the file was created and "M" when an existing file was overwritten.
type Result struct {
	Status string
	Path   string
}

type workspace interface {
	// Resolve maps path to the key Stage and Commit use for it.
	Resolve(path string) (string, error)
	Read(path string) ([]byte, error)
	Stage(path string, content []byte) error
	Commit() ([]Result, error)
	Discard()
}

func (j Job) validate() error {
	switch {
	case strings.TrimSpace(j.Input) == "":
		return &Error{Code: CodeInvalidJob, Message: "input path is required"}
	case j.Marker == "":
		return &Error{Code: CodeInvalidJob, Message: "split marker must not be empty"}
	case strings.TrimSpace(j.OursPath) == "" || strings.TrimSpace(j.ExistingPath) == "":
		return &Error{Code: CodeInvalidJob, Message: "both output paths are required"}
	case filepath.Clean(j.OursPath) == filepath.Clean(j.ExistingPath):
		return &Error{Code: CodeInvalidJob, Message: fmt.Sprintf("output paths must differ, both are %s", j.OursPath)}
	}
	if _, err := ParseEncoding(string(j.Encoding)); err != nil {
		return err
	}
	return nil
}

// plan reads, decodes and splits the job input without staging anything.
func plan(ctx context.Context, job Job, ws workspace) (*Split, error) {
	if ws == nil {
		return nil, errors.New("nil workspace")
	}
	if err := job.validate(); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	raw, err := ws.Read(job.Input)
	if err != nil {
		return nil, withPath(err, job.Input)
	}
	raw, err = decompress(job.Input, raw)
	if err != nil {
		return nil, withPath(err, job.Input)
	}
	text, err := Decode(raw, job.Encoding)
	if err != nil {
		return nil, withPath(err, job.Input)
	}
	split, err := SplitText(text, job.Marker)
	if err != nil {
		return nil, withPath(err, job.Input)
	}
	return split, nil
}

// run splits the job input and commits both outputs, or neither of them.
func run(ctx context.Context, job Job, ws workspace) (*Split, []Result, error) {
	if err := job.validate(); err != nil {
		return nil, nil, err
	}
	if err := checkDistinctOutputs(job, ws); err != nil {
		return nil, nil, err
	}
	split, err := plan(ctx, job, ws)
	if err != nil {
		return nil, nil, err
	}
	if ctx.Err() != nil {
		return nil, nil, ctx.Err()
	}

	if err := ws.Stage(job.OursPath, []byte(split.Ours())); err != nil {
		ws.Discard()
		return nil, nil, withPath(err, job.OursPath)
	}
	if err := ws.Stage(job.ExistingPath, []byte(split.Existing())); err != nil {
		ws.Discard()
		return nil, nil, withPath(err, job.ExistingPath)
	}
	if ctx.Err() != nil {
		ws.Discard()
		return nil, nil, ctx.Err()
	}

	results, err := ws.Commit()
	if err != nil {
		return nil, nil, err
	}
	return split, results, nil
}

// checkDistinctOutputs rejects jobs whose outputs name the same file once
// resolved, e.g. a relative and an absolute spelling of one path.
func checkDistinctOutputs(job Job, ws workspace) error {
	if ws == nil {
		return nil
	}
	ours, err := ws.Resolve(job.OursPath)
	if err != nil {
		return withPath(err, job.OursPath)
	}
	existing, err := ws.Resolve(job.ExistingPath)
	if err != nil {
		return withPath(err, job.ExistingPath)
	}
	if ours == existing {
		return &Error{Code: CodeInvalidJob, Message: fmt.Sprintf("output paths must differ, %s and %s are the same file", job.OursPath, job.ExistingPath)}
	}
	return nil
}

// decompress unpacks bzip2 inputs. Only paths ending in .bz2 are treated as
// compressed; everything else is read as text.
func decompress(path string, data []byte) ([]byte, error) {
	if !strings.EqualFold(filepath.Ext(path), bzip2Ext) {
		return data, nil
	}
	zr, err := bzip2.NewReader(bytes.NewReader(data), nil)
	if err != nil {
		return nil, &Error{Code: CodeDecode, Message: "cannot open bzip2 stream", Err: err}
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, &Error{Code: CodeDecode, Message: "cannot decompress bzip2 input", Err: err}
	}
	return out, nil
}

func withPath(err error, path string) error {
	var pe *Error
	if errors.As(err, &pe) {
		if pe.Path == "" {
			pe.Path = path
		}
		return pe
	}
	return &Error{Code: CodeIO, Path: path, Message: "i/o failure", Err: err}
}
