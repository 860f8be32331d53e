//go:build linux

package handlers

import "syscall"

// commandProcAttr puts the command in its own process group and kills it
// when the worker process dies, however it dies
func commandProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true, Pdeathsig: syscall.SIGKILL}
}
