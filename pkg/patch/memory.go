package patch

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// SplitMemory splits job.Input from an in-memory document store represented by a map.
// The provided map is copied before mutation and the updated snapshot is returned.
func SplitMemory(ctx context.Context, job Job, files map[string][]byte) (map[string][]byte, []Result, error) {
	snapshot := make(map[string][]byte, len(files))
	for k, v := range files {
		snapshot[filepath.Clean(k)] = append([]byte(nil), v...)
	}
	ws := newMemoryWorkspace(snapshot)
	_, results, err := run(ctx, job, ws)
	if err != nil {
		return nil, nil, err
	}
	return ws.files, results, nil
}

// SplitMemoryText is a convenience wrapper around SplitMemory for string documents.
func SplitMemoryText(ctx context.Context, job Job, files map[string]string) (map[string]string, []Result, error) {
	raw := make(map[string][]byte, len(files))
	for k, v := range files {
		raw[k] = []byte(v)
	}
	updated, results, err := SplitMemory(ctx, job, raw)
	if err != nil {
		return nil, nil, err
	}
	out := make(map[string]string, len(updated))
	for k, v := range updated {
		out[k] = string(v)
	}
	return out, results, nil
}

type memoryWorkspace struct {
	files  map[string][]byte
	order  []string
	staged map[string][]byte
}

func newMemoryWorkspace(files map[string][]byte) *memoryWorkspace {
	return &memoryWorkspace{
		files:  files,
		staged: make(map[string][]byte),
	}
}

func (ws *memoryWorkspace) Resolve(path string) (string, error) {
	return cleanMemoryPath(path)
}

func (ws *memoryWorkspace) Read(path string) ([]byte, error) {
	rel, err := cleanMemoryPath(path)
	if err != nil {
		return nil, err
	}
	content, ok := ws.files[rel]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", rel, fs.ErrNotExist)
	}
	return content, nil
}

func (ws *memoryWorkspace) Stage(path string, content []byte) error {
	rel, err := cleanMemoryPath(path)
	if err != nil {
		return err
	}
	if _, ok := ws.staged[rel]; !ok {
		ws.order = append(ws.order, rel)
	}
	ws.staged[rel] = append([]byte(nil), content...)
	return nil
}

func (ws *memoryWorkspace) Commit() ([]Result, error) {
	results := make([]Result, 0, len(ws.order))
	for _, rel := range ws.order {
		status := "M"
		if _, ok := ws.files[rel]; !ok {
			status = "A"
		}
		ws.files[rel] = ws.staged[rel]
		results = append(results, Result{Status: status, Path: rel})
	}
	ws.Discard()
	return results, nil
}

func (ws *memoryWorkspace) Discard() {
	ws.order = nil
	ws.staged = make(map[string][]byte)
}

func cleanMemoryPath(path string) (string, error) {
	rel := filepath.Clean(strings.TrimSpace(path))
	if rel == "" || rel == "." {
		return "", &Error{Code: CodeInvalidJob, Message: "invalid path"}
	}
	return rel, nil
}
