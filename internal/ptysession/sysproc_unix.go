//go:build !windows

package ptysession

import "syscall"

// setsid puts the child in its own session/process group so terminate()
// can signal the whole group instead of just the immediate child.
func setsid() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
