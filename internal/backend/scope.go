package backend

import (
	"errors"
	"io/fs"
	"os"
)

// Scope owns the temporary files of one invocation. Close removes them all.
type Scope struct {
	dir   string
	paths []string
}

// NewScope creates a scope whose files live in dir, or in the system
// temporary directory when dir is empty.
func NewScope(dir string) *Scope {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Scope{dir: dir}
}

// Files returns the paths created so far.
func (s *Scope) Files() []string { return append([]string(nil), s.paths...) }

// CreateFile writes content to a new uniquely named file. pattern follows
// os.CreateTemp.
func (s *Scope) CreateFile(pattern, content string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(s.dir, pattern)
	if err != nil {
		return "", err
	}
	s.paths = append(s.paths, f.Name())
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return f.Name(), nil
}

// CreateScript is CreateFile for files only the owner may execute.
func (s *Scope) CreateScript(pattern, content string) (string, error) {
	path, err := s.CreateFile(pattern, content)
	if err != nil {
		return "", err
	}
	if err := os.Chmod(path, 0o700); err != nil {
		return "", err
	}
	return path, nil
}

// Close removes every file of the scope. It is safe to call more than once.
func (s *Scope) Close() error {
	var errs []error
	for _, p := range s.paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	s.paths = nil
	return errors.Join(errs...)
}
