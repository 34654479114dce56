package lifecycle

import (
	"fmt"
	"os"
)

// WritePIDFile writes pid to path. Callers pass os.Getpid() directly, or
// (after Daemonize spawns a detached child) the child's PID.
func WritePIDFile(path string, pid int) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", pid)), 0644)
}

// RemovePIDFile removes the pidfile written by WritePIDFile, ignoring a
// not-exist error.
func RemovePIDFile(path string) error {
	if path == "" {
		return nil
	}
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
