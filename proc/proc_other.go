//go:build !unix

package proc

import "os/exec"

// killGroupOnCancel leaves the default cancellation in place; WaitDelay
// still bounds the wait for leftover descendants.
func killGroupOnCancel(*exec.Cmd) {}
