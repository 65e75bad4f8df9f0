package patch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemOptions configures how a split touches the local filesystem.
type FilesystemOptions struct {
	// WorkingDir resolves relative job paths. Defaults to the process working directory.
	WorkingDir string
	// FileMode is used for newly created outputs. Overwritten outputs keep their mode.
	FileMode fs.FileMode
}

// SplitFilesystem splits job.Input and writes both outputs to the OS filesystem.
// Either both outputs are replaced or neither is.
func SplitFilesystem(ctx context.Context, job Job, opts FilesystemOptions) (*Split, []Result, error) {
	ws, err := newFilesystemWorkspace(opts)
	if err != nil {
		return nil, nil, err
	}
	return run(ctx, job, ws)
}

// Plan reads and splits job.Input from the filesystem without writing anything.
func Plan(ctx context.Context, job Job, opts FilesystemOptions) (*Split, error) {
	ws, err := newFilesystemWorkspace(opts)
	if err != nil {
		return nil, err
	}
	return plan(ctx, job, ws)
}

type stagedFile struct {
	dest     string
	display  string
	tmp      string
	existed  bool
	previous []byte
	mode     fs.FileMode
}

type filesystemWorkspace struct {
	workingDir string
	fileMode   fs.FileMode
	staged     []*stagedFile
}

func newFilesystemWorkspace(opts FilesystemOptions) (*filesystemWorkspace, error) {
	workingDir := strings.TrimSpace(opts.WorkingDir)
	if workingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
		workingDir = wd
	}
	if abs, err := filepath.Abs(workingDir); err == nil {
		workingDir = abs
	}
	mode := opts.FileMode & fs.ModePerm
	if mode == 0 {
		mode = 0o644
	}
	return &filesystemWorkspace{workingDir: workingDir, fileMode: mode}, nil
}

func (ws *filesystemWorkspace) Resolve(path string) (string, error) {
	abs, _, err := ws.resolvePath(path)
	return abs, err
}

func (ws *filesystemWorkspace) Read(path string) ([]byte, error) {
	abs, _, err := ws.resolvePath(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, &Error{Code: CodeIO, Message: "input is a directory"}
	}
	return os.ReadFile(abs)
}

// Stage writes content to a temp file next to the destination. Nothing is
// visible at the destination until Commit.
func (ws *filesystemWorkspace) Stage(path string, content []byte) error {
	abs, rel, err := ws.resolvePath(path)
	if err != nil {
		return err
	}
	sf := &stagedFile{dest: abs, display: rel, mode: ws.fileMode}

	info, err := os.Stat(abs)
	switch {
	case err == nil && info.IsDir():
		return &Error{Code: CodeIO, Message: "cannot write output over a directory"}
	case err == nil:
		previous, readErr := os.ReadFile(abs)
		if readErr != nil {
			return readErr
		}
		sf.existed = true
		sf.previous = previous
		sf.mode = info.Mode() & fs.ModePerm
	case !errors.Is(err, fs.ErrNotExist):
		return err
	}

	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".patchsplit-*")
	if err != nil {
		return err
	}
	sf.tmp = tmp.Name()
	ws.staged = append(ws.staged, sf)

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Chmod(sf.tmp, sf.mode)
}

// Commit renames every staged file into place. When a rename fails, the
// destinations already replaced are restored to their previous content.
func (ws *filesystemWorkspace) Commit() ([]Result, error) {
	results := make([]Result, 0, len(ws.staged))
	for i, sf := range ws.staged {
		if err := os.Rename(sf.tmp, sf.dest); err != nil {
			restoreErr := ws.rollback(ws.staged[:i])
			ws.Discard()
			if restoreErr != nil {
				return nil, &Error{
					Code:    CodeIO,
					Path:    sf.display,
					Message: "failed to replace output and to restore earlier outputs",
					Err:     errors.Join(err, restoreErr),
				}
			}
			return nil, &Error{Code: CodeIO, Path: sf.display, Message: "failed to replace output", Err: err}
		}
		sf.tmp = ""
		status := "M"
		if !sf.existed {
			status = "A"
		}
		results = append(results, Result{Status: status, Path: sf.display})
	}
	ws.staged = nil
	return results, nil
}

// Discard removes temp files that were staged but not committed.
func (ws *filesystemWorkspace) Discard() {
	for _, sf := range ws.staged {
		if sf.tmp != "" {
			_ = os.Remove(sf.tmp)
			sf.tmp = ""
		}
	}
	ws.staged = nil
}

// rollback puts committed destinations back the way they were before Commit.
// Every destination is attempted; the failures are joined.
func (ws *filesystemWorkspace) rollback(committed []*stagedFile) error {
	var errs []error
	for _, sf := range committed {
		if sf.existed {
			if err := os.WriteFile(sf.dest, sf.previous, sf.mode); err != nil {
				errs = append(errs, fmt.Errorf("restore %s: %w", sf.display, err))
			}
			continue
		}
		if err := os.Remove(sf.dest); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", sf.display, err))
		}
	}
	return errors.Join(errs...)
}

func (ws *filesystemWorkspace) resolvePath(relative string) (string, string, error) {
	rel := strings.TrimSpace(relative)
	if rel == "" {
		return "", "", &Error{Code: CodeInvalidJob, Message: "invalid path"}
	}
	cleaned := filepath.Clean(rel)
	var abs string
	if filepath.IsAbs(cleaned) {
		abs = cleaned
	} else {
		abs = filepath.Clean(filepath.Join(ws.workingDir, cleaned))
	}
	return abs, cleaned, nil
}
