package lifecycle

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"syscall"

	"golang.org/x/sys/unix"
)

// daemonEnv marks a re-exec'd child as already detached, so it doesn't
// fork again.
const daemonEnv = "VOIDWAVE_DAEMONIZED=1"

// Daemonize detaches the current process into the background; it does not
// write a pidfile (the caller does that). A real double-fork isn't safe to do in-process once
// the Go runtime has started extra OS threads (the child would inherit a
// half-initialized runtime), so this re-execs the binary with the same
// argv into a new session via os/exec + SysProcAttr.Setsid, detaching
// from the controlling terminal and reparenting off the shell's process
// group the same way fork+setsid would. If the current process is
// already the re-exec'd child (daemonEnv set), Daemonize is a no-op so
// the child doesn't recurse.
//
// Returns the child's PID and true if this call spawned it (the caller
// should write the pidfile and exit 0); returns (0, false) if this
// process IS the daemonized child (the caller should proceed to serve).
func Daemonize() (childPID int, spawned bool, err error) {
	if os.Getenv("VOIDWAVE_DAEMONIZED") == "1" {
		return 0, false, nil
	}
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		return 0, false, fmt.Errorf("lifecycle: --daemonize is not supported on %s", runtime.GOOS)
	}

	exe, err := os.Executable()
	if err != nil {
		return 0, false, err
	}
	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Env = append(os.Environ(), daemonEnv)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return 0, false, fmt.Errorf("lifecycle: daemonize: %w", err)
	}
	return cmd.Process.Pid, true, nil
}

// DropPrivileges calls setuid(uid). uid <= 0 is a no-op; a setuid
// failure is reported as a positive exit code by the caller.
func DropPrivileges(uid int) error {
	if uid <= 0 {
		return nil
	}
	if err := unix.Setuid(uid); err != nil {
		return fmt.Errorf("lifecycle: setuid(%d): %w", uid, err)
	}
	return nil
}
