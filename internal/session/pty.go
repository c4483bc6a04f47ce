package session

import (
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
)

// ptyHandle owns one child process's PTY file descriptor. Exactly one
// goroutine (the Session's read loop) may call Read; writes are serialized
// through writeMu so concurrent auto-responses and caller-issued writes
// cannot interleave their bytes into the child's input stream (spec.md §9,
// "node-pty-style descriptor ownership"). Grounded on codex-interactive-
// driver's runner: pty.Start(cmd) plus a doneCh fed by a dedicated
// cmd.Wait() goroutine.
type ptyHandle struct {
	cmd  *exec.Cmd
	file *os.File

	writeMu sync.Mutex

	doneCh chan error
}

func startPTY(executable string, argv []string, env []string, workdir string) (*ptyHandle, error) {
	cmd := exec.Command(executable, argv...)
	cmd.Dir = workdir
	cmd.Env = env
	f, err := pty.Start(cmd)
	if err != nil {
		return nil, err
	}
	h := &ptyHandle{cmd: cmd, file: f, doneCh: make(chan error, 1)}
	go func() { h.doneCh <- cmd.Wait() }()
	return h, nil
}

func (h *ptyHandle) Read(buf []byte) (int, error) {
	return h.file.Read(buf)
}

func (h *ptyHandle) Write(data []byte) (int, error) {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	return h.file.Write(data)
}

func (h *ptyHandle) Resize(cols, rows int) error {
	return pty.Setsize(h.file, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
}

func (h *ptyHandle) Close() error {
	return h.file.Close()
}

func (h *ptyHandle) Pid() int {
	if h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}
