package promptdetect

import (
	"strings"
	"sync"
	"time"
)

// PromptType names the kind of Claude interactive prompt detected.
// detectPromptType checks WorktreePermission, then MultiToolBatch, then
// SingleCommandApproval, then GenericInteractive.
type PromptType int

const (
	PromptUnknown PromptType = iota
	PromptSingleCommandApproval
	PromptWorktreePermission
	PromptMultiToolBatch
	PromptGenericInteractive
)

var singleCommandPatterns = []string{
	"do you want to proceed",
	"do you want to run",
	"allow this command",
	"approve this action",
	"run this command?",
	"execute this?",
	"press enter to continue",
	"press y to confirm",
	"(y/n)",
	"[y/n]",
	"(yes/no)",
	"[yes/no]",
}

var worktreePermissionPatterns = []string{
	"do you want to allow",
	"permission to read",
	"permission to write",
	"permission to access",
	"access files outside",
	"outside the project",
	"worktree access",
	"cross-worktree",
	"outside the current directory",
}

var multiToolBatchPatterns = []string{
	"more tool use",
	"more tool calls",
	"additional tool",
	"+1 more tool",
	"+2 more tool",
	"+3 more tool",
	"+4 more tool",
	"+5 more tool",
}

var genericInteractivePatterns = []string{
	"do you want to",
	"would you like to",
	"shall i proceed",
	"continue?",
	"proceed?",
}

// suppressionTimeout bounds how long a detected prompt keeps the HUD
// suppressed if the user never resolves it; prevents a stuck backend
// from permanently hiding the HUD.
const suppressionTimeout = 30 * time.Second

const maxContextLines = 8

// Claude detects Claude CLI approval/permission/tool-batch prompts in PTY
// output so the event loop can suppress HUD rows that would otherwise
// occlude them.
type Claude struct {
	mu sync.Mutex

	suppressed       bool
	suppressedAt     time.Time
	lastPromptType   PromptType
	lineBuffer       []byte
	recentLines      []string
	lastUserInputAt  time.Time
}

// NewClaude returns a Claude prompt tracker, idle from now.
func NewClaude() *Claude {
	return &Claude{lastUserInputAt: time.Now()}
}

// FeedOutput scans PTY output for prompt patterns, accumulating a rolling
// line buffer for multi-line prompt context. Returns true exactly on the
// transition into a newly-detected, not-already-suppressed prompt.
func (c *Claude) FeedOutput(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, b := range data {
		switch {
		case b == '\n':
			c.flushLine()
		case b == '\r':
			c.flushLine()
		case b >= 0x20 && b < 0x7f:
			c.lineBuffer = append(c.lineBuffer, b)
		default:
			// skip ANSI/control bytes
		}
	}

	currentLine := strings.ToLower(string(c.lineBuffer))
	context := strings.ToLower(c.combinedContext())

	promptType := detectPromptType(currentLine, context)
	if promptType == PromptUnknown {
		return false
	}
	if c.suppressed {
		return false
	}
	c.suppressed = true
	c.suppressedAt = time.Now()
	c.lastPromptType = promptType
	return true
}

func (c *Claude) flushLine() {
	line := string(c.lineBuffer)
	if strings.TrimSpace(line) != "" {
		if len(c.recentLines) >= maxContextLines {
			c.recentLines = c.recentLines[1:]
		}
		c.recentLines = append(c.recentLines, line)
	}
	c.lineBuffer = c.lineBuffer[:0]
}

func (c *Claude) combinedContext() string {
	parts := append([]string{}, c.recentLines...)
	current := string(c.lineBuffer)
	if strings.TrimSpace(current) != "" {
		parts = append(parts, current)
	}
	return strings.Join(parts, "\n")
}

// Suppressed reports whether the HUD should currently stay collapsed.
// A suppression auto-expires after suppressionTimeout so a backend that
// never clears its own prompt text doesn't permanently hide the HUD.
func (c *Claude) Suppressed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.suppressed {
		return false
	}
	if time.Since(c.suppressedAt) >= suppressionTimeout {
		return false
	}
	return true
}

// OnUserInput resolves any suppressed prompt and resets idle tracking.
func (c *Claude) OnUserInput() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.suppressed {
		c.suppressed = false
		c.recentLines = nil
	}
	c.lastUserInputAt = time.Now()
}

// IdleFor is time since the last user input.
func (c *Claude) IdleFor() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.lastUserInputAt)
}

// LastPromptType returns the most recently detected prompt type, for
// diagnostics. Returns PromptUnknown if nothing has ever been detected.
func (c *Claude) LastPromptType() PromptType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPromptType
}

func detectPromptType(currentLine, context string) PromptType {
	if containsAny(context, worktreePermissionPatterns) || containsAny(currentLine, worktreePermissionPatterns) {
		return PromptWorktreePermission
	}
	if containsAny(context, multiToolBatchPatterns) || containsAny(currentLine, multiToolBatchPatterns) {
		return PromptMultiToolBatch
	}
	if containsAny(context, singleCommandPatterns) || containsAny(currentLine, singleCommandPatterns) {
		return PromptSingleCommandApproval
	}
	if containsAny(context, genericInteractivePatterns) || containsAny(currentLine, genericInteractivePatterns) {
		return PromptGenericInteractive
	}
	return PromptUnknown
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
