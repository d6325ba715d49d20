// Package ptysession owns the PTY-wrapped backend child process: spawn,
// resize, non-blocking write, the output chunk stream, and the
// stale-lease reaper that guards against zombie backends surviving a
// crashed prior launch.
package ptysession

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"

	"voiceterm/internal/diag"
)

// SpawnErrorKind classifies why a backend failed to start.
type SpawnErrorKind int

const (
	SpawnErrorExecNotFound SpawnErrorKind = iota
	SpawnErrorPTYAllocation
	SpawnErrorPermission
	SpawnErrorOther
)

// SpawnError is returned by Open; it is always fatal to startup.
type SpawnError struct {
	Kind    SpawnErrorKind
	Message string
}

func (e *SpawnError) Error() string { return e.Message }

func newSpawnError(kind SpawnErrorKind, err error) *SpawnError {
	return &SpawnError{Kind: kind, Message: err.Error()}
}

// Sentinel errors for TrySend, matching the write-error taxonomy in the
// component's public contract.
var (
	ErrWouldBlock  = errors.New("ptysession: write would block")
	ErrBrokenPipe  = errors.New("ptysession: broken pipe")
)

const (
	terminationGrace = 500 * time.Millisecond
	readChunkSize    = 4096
	outputChanDepth  = 64
)

// Session owns one backend child living inside a PTY.
type Session struct {
	cmd   *exec.Cmd
	ptm   *os.File
	guard *Guard
	log   *diag.Logger

	mu   sync.Mutex
	rows int
	cols int

	chunks    chan []byte
	closeOnce sync.Once
	readerDone chan struct{}
}

// Open fork-execs command inside a new PTY sized to (initialRows,
// initialCols) — callers must have already subtracted any HUD-reserved
// rows before calling Open — and starts the background reader worker
// that feeds OutputStream. termName sets $TERM for the child.
func Open(command string, args []string, termName string, initialRows, initialCols int, guard *Guard, log *diag.Logger) (*Session, error) {
	if log == nil {
		log = diag.New()
	}
	if guard != nil {
		guard.CleanupStaleSessions()
	}

	cmd := exec.Command(command, args...)
	cmd.Env = append(os.Environ(), "TERM="+termName)
	cmd.SysProcAttr = setsid()

	ptm, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(initialRows),
		Cols: uint16(initialCols),
	})
	if err != nil {
		kind := SpawnErrorOther
		if errors.Is(err, exec.ErrNotFound) || os.IsNotExist(err) {
			kind = SpawnErrorExecNotFound
		} else if os.IsPermission(err) {
			kind = SpawnErrorPermission
		}
		return nil, newSpawnError(kind, fmt.Errorf("start %s in pty: %w", command, err))
	}

	if err := syscall.SetNonblock(int(ptm.Fd()), true); err != nil {
		log.Debugf("PTY", "session: failed to set nonblocking mode: %v", err)
	}

	s := &Session{
		cmd:        cmd,
		ptm:        ptm,
		guard:      guard,
		log:        log,
		rows:       initialRows,
		cols:       initialCols,
		chunks:     make(chan []byte, outputChanDepth),
		readerDone: make(chan struct{}),
	}

	if guard != nil && cmd.Process != nil {
		guard.RegisterSession(cmd.Process.Pid, command)
	}

	go s.readLoop()
	return s, nil
}

func (s *Session) readLoop() {
	defer close(s.readerDone)
	defer close(s.chunks)
	buf := make([]byte, readChunkSize)
	for {
		n, err := s.ptm.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.chunks <- chunk
		}
		if err != nil {
			if err != io.EOF {
				s.log.Debugf("PTY", "session: read error: %v", err)
			}
			return
		}
	}
}

// OutputStream returns the finite channel of output chunks. It closes
// on child EOF or a read error; it is not restartable.
func (s *Session) OutputStream() <-chan []byte { return s.chunks }

// TrySend performs a non-blocking write to the child, returning the
// number of bytes actually written. Callers must re-queue any
// unwritten tail on a partial write.
func (s *Session) TrySend(data []byte) (int, error) {
	n, err := s.ptm.Write(data)
	if err == nil {
		return n, nil
	}
	if errors.Is(err, syscall.EAGAIN) {
		return n, ErrWouldBlock
	}
	if errors.Is(err, syscall.EPIPE) || errors.Is(err, io.ErrClosedPipe) {
		return n, ErrBrokenPipe
	}
	return n, fmt.Errorf("ptysession: write: %w", err)
}

// SetWinsize resizes the PTY, a no-op when unchanged, and forwards
// SIGWINCH to the child as ioctl(TIOCSWINSZ) naturally does.
func (s *Session) SetWinsize(rows, cols int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rows == s.rows && cols == s.cols {
		return nil
	}
	if err := pty.Setsize(s.ptm, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)}); err != nil {
		return fmt.Errorf("ptysession: setsize: %w", err)
	}
	s.rows, s.cols = rows, cols
	return nil
}

// CurrentWinsize reports the last size set via Open/SetWinsize.
func (s *Session) CurrentWinsize() (rows, cols int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows, s.cols
}

// Close terminates the child process group gracefully, waits up to the
// termination grace window, escalates to a forceful kill, reaps, and
// removes this session's lease file. It is safe to call more than once.
func (s *Session) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		closeErr = s.terminate()
		s.ptm.Close()
		if s.guard != nil {
			s.guard.UnregisterSession()
		}
	})
	return closeErr
}

func (s *Session) terminate() error {
	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}
	pid := s.cmd.Process.Pid

	signalProcessGroupOrPID(pid, syscall.SIGTERM)

	done := make(chan error, 1)
	go func() { done <- s.cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-time.After(terminationGrace):
	}

	signalProcessGroupOrPID(pid, syscall.SIGKILL)
	<-done
	return nil
}
