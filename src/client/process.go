package client

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"time"

	"nargo-bridge/src/internal/common"
	"nargo-bridge/src/internal/sanitize"
)

const processShutdownTimeout = 5 * time.Second

// processInfo holds the running `nargo lsp` subprocess and its pipes.
type processInfo struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser
	waitCh chan error
}

// startProcess spawns `nargo lsp` with the configured extra flags.
func startProcess(bin string, extraFlags []string, workDir string) (*processInfo, error) {
	args := append([]string{"lsp"}, extraFlags...)
	cmd := exec.Command(bin, args...)
	cmd.Dir = workDir

	info := &processInfo{
		cmd:    cmd,
		waitCh: make(chan error, 1),
	}

	var err error
	info.stdin, err = cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	info.stdout, err = cmd.StdoutPipe()
	if err != nil {
		info.stdin.Close()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	info.stderr, err = cmd.StderrPipe()
	if err != nil {
		info.stdin.Close()
		info.stdout.Close()
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		info.closePipes()
		return nil, fmt.Errorf("failed to start language server: %w", err)
	}

	common.ClientLogger.Info("Started language server process: PID %d", cmd.Process.Pid)

	// Exactly one Wait call; Stop and the monitor both consume waitCh.
	go func() {
		info.waitCh <- cmd.Wait()
		close(info.waitCh)
	}()

	go info.drainStderr()

	return info, nil
}

// drainStderr relays the server's stderr to the client log.
func (p *processInfo) drainStderr() {
	scanner := bufio.NewScanner(p.stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := sanitize.Sanitize(scanner.Bytes())
		if line != "" {
			common.ClientLogger.Debug("server: %s", line)
		}
	}
}

// stop waits for a graceful exit after the shutdown sequence has been
// sent, killing the process if the deadline passes.
func (p *processInfo) stop() {
	if p.cmd == nil || p.cmd.Process == nil {
		return
	}

	select {
	case err := <-p.waitCh:
		logExit(err)
	case <-time.After(processShutdownTimeout):
		common.ClientLogger.Warn("Language server did not exit gracefully within %v, force killing", processShutdownTimeout)
		if err := p.cmd.Process.Kill(); err != nil {
			common.ClientLogger.Error("Failed to kill language server: %v", err)
		}
		logExit(<-p.waitCh)
	}

	p.closePipes()
}

func logExit(err error) {
	if err != nil {
		common.ClientLogger.Warn("Language server exited with error: %v", err)
	} else {
		common.ClientLogger.Info("Language server exited normally")
	}
}

func (p *processInfo) closePipes() {
	if p.stdin != nil {
		p.stdin.Close()
		p.stdin = nil
	}
	if p.stdout != nil {
		p.stdout.Close()
		p.stdout = nil
	}
	if p.stderr != nil {
		p.stderr.Close()
		p.stderr = nil
	}
}
