//go:build !linux

package handlers

import "syscall"

// commandProcAttr puts the command in its own process group. Without
// Pdeathsig a SIGKILLed worker leaves its command running.
func commandProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
