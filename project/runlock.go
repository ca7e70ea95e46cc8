package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RunLockName is the exclusive run-lock file created under the project
// root while a keylift command mutates sources or stores.
const RunLockName = ".keylift.run.lock"

// runLockStaleAfter is how old a lock must be before a new run assumes
// its owner crashed and takes over.
const runLockStaleAfter = 10 * time.Minute

// RunLock guards a project against concurrent keylift runs.
type RunLock struct {
	path string
}

// AcquireRunLock creates the lock file with O_EXCL. A lock older than
// ten minutes is treated as left behind by a crash and replaced; a
// fresh one aborts the run.
func AcquireRunLock(root string) (*RunLock, error) {
	path := filepath.Join(root, RunLockName)
	if err := createRunLock(path); err == nil {
		return &RunLock{path: path}, nil
	} else if !os.IsExist(err) {
		return nil, err
	}

	if info, err := os.Stat(path); err == nil && time.Since(info.ModTime()) > runLockStaleAfter {
		os.Remove(path)
		if err := createRunLock(path); err == nil {
			return &RunLock{path: path}, nil
		}
	}

	pid := "unknown"
	if data, err := os.ReadFile(path); err == nil && len(strings.TrimSpace(string(data))) > 0 {
		pid = strings.TrimSpace(string(data))
	}
	return nil, fmt.Errorf("another keylift run is active (pid %s); remove %s if it crashed", pid, path)
}

func createRunLock(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	_, werr := fmt.Fprintf(f, "%d\n", os.Getpid())
	cerr := f.Close()
	if werr != nil {
		return werr
	}
	return cerr
}

// Release removes the lock file. Safe on a nil receiver.
func (l *RunLock) Release() error {
	if l == nil {
		return nil
	}
	return os.Remove(l.path)
}
