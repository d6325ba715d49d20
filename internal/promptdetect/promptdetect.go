// Package promptdetect tracks whether the backend running inside the PTY
// currently has an interactive prompt on screen (an approval/permission
// question) that the HUD or overlay chrome could occlude. Per-backend
// quirk detection is named an external collaborator in the core spec, so
// this package is the boundary: the event loop calls FeedOutput/OnUserInput
// and consults Suppressed/IdleFor to compute geometry.Frame.PromptSuppressed
// and the auto-voice re-arm idle gate.
package promptdetect

import "time"

// Tracker is the boundary interface the event loop consumes. Two concrete
// implementations exist: Generic (Enter-key timestamp only) and Claude
// (byte-pattern sniffing for approval/permission prompts).
type Tracker interface {
	// FeedOutput lets the tracker inspect PTY output bytes for prompt
	// patterns. Returns true the moment a new prompt is detected (a
	// transition into suppression), false otherwise.
	FeedOutput(data []byte) bool
	// OnUserInput notifies the tracker that the user just sent input
	// (Enter, a key press), which resolves any suppressed prompt.
	OnUserInput()
	// Suppressed reports whether the HUD should currently stay collapsed
	// because an interactive prompt is on screen.
	Suppressed() bool
	// IdleFor is how long since the tracker last saw user input (or since
	// it was created). The auto-voice re-arm gate requires this
	// to exceed a configured idle threshold before starting a new capture.
	IdleFor() time.Duration
}
