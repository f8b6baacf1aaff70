package utils

import (
	"errors"
	"io"
	"os/exec"
	"syscall"

	"github.com/sirupsen/logrus"
)

type ExecItem struct {
	Pid    int
	Status int
	Args   []string
	Stdout io.ReadCloser
}

// DoExecAsync start a shell command without waiting for it, stdout and
// stderr combined on the returned pipe
func DoExecAsync(shell, dir string, env []string) (*ExecItem, error) {
	execItem := &ExecItem{
		Status: 0,
	}
	cmd := exec.Command("/bin/bash", "-c", shell)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	stdout, _ := cmd.StdoutPipe()
	cmd.Stderr = cmd.Stdout
	if env != nil {
		cmd.Env = env
	}
	if dir != "" {
		cmd.Dir = dir
	}
	if err := cmd.Start(); err != nil {
		logrus.Errorf("cmd.Start err: %s", err.Error())
		return nil, errors.New("engine start error")
	}

	execItem.Args = cmd.Args
	execItem.Pid = cmd.Process.Pid
	execItem.Stdout = stdout
	return execItem, nil
}
