package core

import (
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrNotFound is the error resulting if a path search failed to find an
// executable file.
var ErrNotFound = exec.ErrNotFound

// Environ is the slice of shell context the resolver needs.
type Environ interface {
	Getenv(key string) string
	Getwd() string
}

func findExecutable(file string) error {
	d, err := os.Stat(file)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case err != nil:
		return err
	}
	if m := d.Mode(); m.IsRegular() && m&0111 != 0 {
		return nil
	}
	return fs.ErrPermission
}

// LookPath searches for an executable named file. If file contains a path
// separator it is tried literally and the search path is not consulted.
// Otherwise the working directory is tried first, then each directory of the
// PATH environment variable in listed order; the first match wins. Candidates
// must be regular files with an execute bit set.
func LookPath(env Environ, file string) (string, error) {
	if strings.Contains(file, string(os.PathSeparator)) {
		err := findExecutable(file)
		if err == nil {
			return file, nil
		}
		return "", err
	}

	cwdPath := filepath.Join(env.Getwd(), file)
	if err := findExecutable(cwdPath); err == nil {
		return cwdPath, nil
	}

	// An unreadable or unset PATH behaves as an empty directory list.
	for _, dir := range strings.Split(env.Getenv(EnvPath), ":") {
		if dir == "" {
			continue
		}
		path := filepath.Join(dir, file)
		if err := findExecutable(path); err == nil {
			return path, nil
		}
	}
	return "", ErrNotFound
}
