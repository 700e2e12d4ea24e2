//go:build !windows

package main

import (
	"os/exec"
	"syscall"
)

// configureDaemonProc starts the daemon in its own session so closing the
// terminal does not signal it.
func configureDaemonProc(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
