package extractor

import (
	"bytes"
	"os/exec"
)

// CommandRunner executes a prepared engine command.
type CommandRunner interface {
	// Run starts cmd, waits for it and returns its captured stdout and
	// stderr. A non-zero exit is reported as a non-nil error alongside the
	// output.
	Run(cmd *exec.Cmd) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands as child processes. The process is killed when
// the context the command was built with is done.
type ExecRunner struct{}

// Run implements CommandRunner.
func (ExecRunner) Run(cmd *exec.Cmd) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
