// guard.go implements the session-guard lease sweep: each VoiceTerm
// process that spawns a PTY child writes a lease file describing the
// (owner, child) pid pair, and on startup sweeps the lease directory to
// reap stale backend children left behind by a crashed prior launch.
package ptysession

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"voiceterm/internal/diag"
)

const (
	sessionGuardDirEnv        = "VOICETERM_SESSION_GUARD_DIR"
	sessionGuardEnabledEnv    = "VOICETERM_SESSION_GUARD"
	sessionGuardDirName       = "voiceterm-session-guard"
	sessionTerminationGraceMs = 500
	staleCleanupMinIntervalMs = 2000
)

var lastStaleCleanupMs atomic.Int64

// leaseEntry is the lease file's parsed content, matching the text
// format the original PTY-ownership tracker wrote (key=value lines).
type leaseEntry struct {
	ownerPID        int
	ownerExecName   string
	ownerStartTime  string
	childPID        int
	execName        string
	childStartTime  string
}

func (e leaseEntry) toText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "owner_pid=%d\n", e.ownerPID)
	fmt.Fprintf(&b, "owner_exec_name=%s\n", e.ownerExecName)
	fmt.Fprintf(&b, "child_pid=%d\n", e.childPID)
	fmt.Fprintf(&b, "exec_name=%s\n", e.execName)
	if e.ownerStartTime != "" {
		fmt.Fprintf(&b, "owner_start_time=%s\n", e.ownerStartTime)
	}
	if e.childStartTime != "" {
		fmt.Fprintf(&b, "child_start_time=%s\n", e.childStartTime)
	}
	return b.String()
}

func parseLeaseEntry(text string) (leaseEntry, bool) {
	var e leaseEntry
	haveOwnerPID, haveChildPID, haveExecName := false, false, false
	e.ownerExecName = "voiceterm"

	for _, line := range strings.Split(text, "\n") {
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch k {
		case "owner_pid":
			if n, err := strconv.Atoi(v); err == nil {
				e.ownerPID = n
				haveOwnerPID = true
			}
		case "owner_exec_name":
			e.ownerExecName = v
		case "owner_start_time":
			e.ownerStartTime = v
		case "child_pid":
			if n, err := strconv.Atoi(v); err == nil {
				e.childPID = n
				haveChildPID = true
			}
		case "exec_name":
			e.execName = v
			haveExecName = true
		case "child_start_time":
			e.childStartTime = v
		}
	}
	if !haveOwnerPID || !haveChildPID || !haveExecName {
		return leaseEntry{}, false
	}
	if strings.TrimSpace(e.ownerExecName) == "" || strings.TrimSpace(e.execName) == "" {
		return leaseEntry{}, false
	}
	return e, true
}

// Guard owns the session-guard lease file lifecycle for one PTY session.
type Guard struct {
	log      *diag.Logger
	mu       sync.Mutex
	leasePath string
}

// NewGuard builds a Guard. logger may be nil.
func NewGuard(logger *diag.Logger) *Guard {
	if logger == nil {
		logger = diag.New()
	}
	return &Guard{log: logger}
}

func sessionGuardEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(sessionGuardEnabledEnv)))
	return v != "0" && v != "false" && v != "off"
}

func sessionGuardDir() string {
	if dir := strings.TrimSpace(os.Getenv(sessionGuardDirEnv)); dir != "" {
		return dir
	}
	return filepath.Join(os.TempDir(), sessionGuardDirName)
}

func execBasename(cmd string) string {
	return filepath.Base(cmd)
}

// RegisterSession writes a lease file for childPID, the backend process
// spawned for cliCmd.
func (g *Guard) RegisterSession(childPID int, cliCmd string) {
	if !sessionGuardEnabled() || childPID <= 0 {
		return
	}
	ownerPID := os.Getpid()
	ownerExec := commandBasename(ownerPID)
	if ownerExec == "" {
		ownerExec = "voiceterm"
	}

	entry := leaseEntry{
		ownerPID:       ownerPID,
		ownerExecName:  ownerExec,
		ownerStartTime: processStartTime(ownerPID),
		childPID:       childPID,
		execName:       execBasename(cliCmd),
		childStartTime: processStartTime(childPID),
	}

	dir := sessionGuardDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		g.log.Debugf("PTY", "session guard: failed to create dir %s: %v", dir, err)
		return
	}
	path := filepath.Join(dir, fmt.Sprintf("session-%d-%d-%s.lease", ownerPID, childPID, uuid.NewString()))
	if err := os.WriteFile(path, []byte(entry.toText()), 0o644); err != nil {
		g.log.Debugf("PTY", "session guard: failed to write lease %s: %v", path, err)
		return
	}

	g.mu.Lock()
	previous := g.leasePath
	g.leasePath = path
	g.mu.Unlock()
	if previous != "" {
		os.Remove(previous)
	}
}

// UnregisterSession removes this Guard's lease file, if any.
func (g *Guard) UnregisterSession() {
	if !sessionGuardEnabled() {
		return
	}
	g.mu.Lock()
	path := g.leasePath
	g.leasePath = ""
	g.mu.Unlock()
	if path != "" {
		os.Remove(path)
	}
}

// CleanupStaleSessions sweeps the lease directory and reaps backend
// children whose owning VoiceTerm process is no longer alive. It is
// rate-limited to run at most once per staleCleanupMinIntervalMs across
// the whole process, since every new session calls it on startup.
func (g *Guard) CleanupStaleSessions() {
	if !sessionGuardEnabled() {
		return
	}
	if !shouldRunCleanup(nowMs(), staleCleanupMinIntervalMs) {
		return
	}
	dir := sessionGuardDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		g.log.Debugf("PTY", "session guard: failed to create dir %s: %v", dir, err)
		return
	}

	lock := flock.New(filepath.Join(dir, ".sweep.lock"))
	locked, err := lock.TryLock()
	if err != nil || !locked {
		return
	}
	defer lock.Unlock()

	g.cleanupStaleSessionsInDir(dir)
}

func nowMs() int64 { return time.Now().UnixMilli() }

func shouldRunCleanup(nowMsVal int64, minIntervalMs int64) bool {
	for {
		prior := lastStaleCleanupMs.Load()
		if prior != 0 && nowMsVal-prior < minIntervalMs {
			return false
		}
		if lastStaleCleanupMs.CompareAndSwap(prior, nowMsVal) {
			return true
		}
	}
}

func (g *Guard) cleanupStaleSessionsInDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".lease") {
			continue
		}
		path := filepath.Join(dir, ent.Name())
		contents, err := os.ReadFile(path)
		if err != nil {
			os.Remove(path)
			continue
		}
		lease, ok := parseLeaseEntry(string(contents))
		if !ok {
			os.Remove(path)
			continue
		}
		if ownerProcessIsLive(lease.ownerPID, lease.ownerExecName, lease.ownerStartTime) {
			continue
		}
		if processExists(lease.childPID) {
			if !childLeaseStillMatches(g.log, lease) {
				os.Remove(path)
				continue
			}
			g.log.Debugf("PTY", "session guard: reaping stale backend pid=%d exec=%s", lease.childPID, lease.execName)
			terminateStaleProcessTree(lease.childPID)
		}
		os.Remove(path)
	}
}

func childLeaseStillMatches(log *diag.Logger, lease leaseEntry) bool {
	if parentPID, ok := processParentPID(lease.childPID); ok && parentPID > 1 && parentPID != lease.ownerPID {
		log.Debugf("PTY", "session guard: stale lease parent mismatch pid=%d owner=%d parent=%d", lease.childPID, lease.ownerPID, parentPID)
		return false
	}
	cmdline := processCommandLine(lease.childPID)
	if cmdline == "" {
		return false
	}
	if !commandMatchesExecName(cmdline, lease.execName) {
		return false
	}
	if lease.childStartTime != "" {
		actual := processStartTime(lease.childPID)
		if actual == "" || actual != lease.childStartTime {
			return false
		}
	}
	return true
}

func ownerProcessIsLive(ownerPID int, expectedExecName, expectedStartTime string) bool {
	if !processExists(ownerPID) {
		return false
	}
	cmdline := processCommandLine(ownerPID)
	if cmdline == "" {
		// Can't inspect — be conservative and assume the owner is alive.
		return true
	}
	if !commandMatchesExecName(cmdline, expectedExecName) {
		return false
	}
	if expectedStartTime != "" {
		actual := processStartTime(ownerPID)
		if actual == "" {
			return true
		}
		return actual == expectedStartTime
	}
	return true
}

func terminateStaleProcessTree(childPID int) {
	if childPID <= 0 {
		return
	}
	signalProcessGroupOrPID(childPID, syscall.SIGTERM)
	deadline := time.Now().Add(sessionTerminationGraceMs * time.Millisecond)
	for processExists(childPID) && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if processExists(childPID) {
		signalProcessGroupOrPID(childPID, syscall.SIGKILL)
	}
}

func signalProcessGroupOrPID(pid int, sig syscall.Signal) {
	if err := syscall.Kill(-pid, sig); err != nil {
		syscall.Kill(pid, sig)
	}
}

func processExists(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	return err == syscall.EPERM
}

func commandMatchesExecName(cmdline, execName string) bool {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return false
	}
	return filepath.Base(fields[0]) == execName
}

// The following helpers shell out to `ps`, matching the original
// implementation's portable-but-slow process-introspection approach:
// there is no cgo-free cross-platform way to read another process's
// command line, parent pid, and start time without either `ps` or
// reading /proc directly (Linux-only). Using `ps` keeps this workable on
// both Linux and macOS dev machines.

func processCommandLine(pid int) string {
	if pid <= 0 {
		return ""
	}
	out, err := exec.Command("ps", "-p", strconv.Itoa(pid), "-o", "command=").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func commandBasename(pid int) string {
	cmdline := processCommandLine(pid)
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return ""
	}
	return filepath.Base(fields[0])
}

func processParentPID(pid int) (int, bool) {
	if pid <= 0 {
		return 0, false
	}
	out, err := exec.Command("ps", "-p", strconv.Itoa(pid), "-o", "ppid=").Output()
	if err != nil {
		return 0, false
	}
	v := strings.TrimSpace(string(out))
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func processStartTime(pid int) string {
	if pid <= 0 {
		return ""
	}
	out, err := exec.Command("ps", "-p", strconv.Itoa(pid), "-o", "lstart=").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
