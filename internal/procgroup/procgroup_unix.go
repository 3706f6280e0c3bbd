//go:build !windows

// Package procgroup starts helper processes outside the caller's process group.
package procgroup

import (
	"os/exec"
	"syscall"
)

// Detach makes cmd lead its own process group, so a terminal Ctrl+C aimed at
// the server does not reach a child that is still writing a clip.
func Detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}
