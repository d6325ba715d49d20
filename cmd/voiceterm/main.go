// Command voiceterm wraps a backend CLI in a PTY and overlays a
// voice-capture HUD. See internal/cmd for the flag surface.
package main

import (
	"context"
	"fmt"
	"os"

	"voiceterm/internal/cmd"
)

func main() {
	root := cmd.NewRootCmd()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "voiceterm:", err)
		os.Exit(1)
	}
}
