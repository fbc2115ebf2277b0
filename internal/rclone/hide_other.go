//go:build !windows

package rclone

import "os/exec"

func hideWindow(*exec.Cmd) {}
