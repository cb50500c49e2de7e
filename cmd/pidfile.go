package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

const pidFileName = "daemon.pid"

func pidFilePath(dir string) string {
	return filepath.Join(dir, pidFileName)
}

// WritePidFile records pid in dir.
func WritePidFile(fs afero.Fs, dir string, pid int) error {
	if err := fs.MkdirAll(dir, 0700); err != nil {
		return err
	}
	return afero.WriteFile(fs, pidFilePath(dir), []byte(strconv.Itoa(pid)), 0644)
}

// ReadPidFile returns the PID recorded in dir.
func ReadPidFile(fs afero.Fs, dir string) (int, error) {
	data, err := afero.ReadFile(fs, pidFilePath(dir))
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in file: %w", err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("invalid PID: %d", pid)
	}
	return pid, nil
}

// RemovePidFile removes the PID file. A missing file is not an error.
func RemovePidFile(fs afero.Fs, dir string) error {
	err := fs.Remove(pidFilePath(dir))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
