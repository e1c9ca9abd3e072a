package iperf3

import (
	"bytes"
	"errors"
	"os/exec"
)

// serverHandle tracks the single background iperf3 server owned by a
// facade instance, together with its buffered stdout.
type serverHandle struct {
	cmd    *exec.Cmd
	stdout *bytes.Buffer
}

// startServerProcess spawns iperf3 in the background with stdout captured
// and stderr discarded. The caller owns the returned handle.
func startServerProcess(execPath string, args []string) (*serverHandle, error) {
	cmd := exec.Command(execPath, args...)
	out := &bytes.Buffer{}
	cmd.Stdout = out
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &serverHandle{cmd: cmd, stdout: out}, nil
}

// terminate kills the server process and waits for it to exit, flushing
// the captured stdout. Wait reports the kill signal as an ExitError; that
// is the expected exit path for a server we stopped ourselves.
func (h *serverHandle) terminate() error {
	if err := h.cmd.Process.Kill(); err != nil {
		return err
	}
	if err := h.cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil
		}
		return err
	}
	return nil
}

// runForeground runs iperf3 to completion with stdout and stderr captured.
// The returned error is whatever exec reports, including non-zero exits.
func runForeground(execPath string, args []string) (stdout, stderr []byte, err error) {
	cmd := exec.Command(execPath, args...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err = cmd.Run()
	return outBuf.Bytes(), errBuf.Bytes(), err
}
