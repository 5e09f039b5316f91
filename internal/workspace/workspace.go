// Package workspace manages the directory a solver run is staged and executed in.
//
// The current working directory is process-wide state. A Workspace owns it for
// the duration of Within and always puts it back, so only one run may be
// active per process at a time.
package workspace

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

type Workspace struct {
	dir string
}

// New resolves dir to an absolute path. It does not touch the filesystem.
func New(dir string) (*Workspace, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &Workspace{dir: abs}, nil
}

func (w *Workspace) Dir() string {
	return w.dir
}

// Path returns the absolute path of name inside the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// Ensure creates the workspace directory if it is missing. Parents are not
// created; a missing parent is reported as the underlying filesystem error.
func (w *Workspace) Ensure() error {
	err := os.Mkdir(w.dir, 0755)
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrExist) {
		info, statErr := os.Stat(w.dir)
		if statErr != nil {
			return statErr
		}
		if !info.IsDir() {
			return fmt.Errorf("workspace: %s exists and is not a directory", w.dir)
		}
		return nil
	}
	return err
}

// Stage copies src into the workspace under its base name unless a file with
// that name is already there. It reports whether a copy was made.
func (w *Workspace) Stage(src string) (bool, error) {
	dst := w.Path(filepath.Base(src))
	if _, err := os.Stat(dst); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}

	in, err := os.Open(src)
	if err != nil {
		return false, fmt.Errorf("workspace: stage %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return false, fmt.Errorf("workspace: stage %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return false, err
	}
	return true, nil
}

// Enter switches the process into the workspace. The returned function
// switches back to the directory that was current before the call.
func (w *Workspace) Enter() (func() error, error) {
	prev, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	if err := os.Chdir(w.dir); err != nil {
		return nil, err
	}
	return func() error {
		return os.Chdir(prev)
	}, nil
}

// Within runs fn inside the workspace. The previous working directory is
// restored when fn returns, fails or panics.
func (w *Workspace) Within(fn func() error) (err error) {
	restore, err := w.Enter()
	if err != nil {
		return err
	}
	defer func() {
		if rerr := restore(); rerr != nil {
			err = errors.Join(err, fmt.Errorf("workspace: restore working directory: %w", rerr))
		}
	}()
	return fn()
}
