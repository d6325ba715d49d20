// Package cmd is the CLI surface: a single cobra root command that
// parses the flag groups spec §6 names (Backend / Voice / Wake word /
// STT-VAD / Pipeline / Appearance / Diagnostics), layers them over a
// config profile and the package defaults, and hands the resolved
// config to Run.
//
// VoiceTerm has no daemon, attach, bridge, or sandbox subsystem — unlike
// the teacher, which forks a detached agent process a separate `attach`
// command reconnects to, VoiceTerm always wraps its backend in the
// foreground of the invoking process and exits when that backend exits.
// So where the teacher's root command fans out into a dozen
// subcommands, this one has exactly one job and takes its arguments
// directly.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"voiceterm/internal/config"
)

// flagConfig mirrors config.AppConfig one field per flag, bound
// directly by cobra so NewRootCmd's RunE only has to copy matched
// fields into an override set (unmatched flags stay zero and Merge
// leaves the layer beneath them untouched).
type flagConfig struct {
	backend       string
	autoVoice     bool
	voiceSendMode string

	wakeWord            bool
	wakeWordSensitivity float64
	wakeWordCooldownMs  int

	vadThresholdDB   float64
	vadFrameMs       int
	silenceTailMs    int
	minSpeechMsBeforeSTT int
	lookbackMs       int
	bufferMs         int
	maxCaptureMs     int

	transcriptIdleMs int

	hudStyle string
	noColor  bool
	theme    string

	debugKeys   bool
	debugScroll bool

	profile string
}

// NewRootCmd builds the voiceterm root command.
func NewRootCmd() *cobra.Command {
	var f flagConfig

	rootCmd := &cobra.Command{
		Use:   "voiceterm [flags] -- <backend-command> [args...]",
		Short: "Voice-driven terminal wrapper",
		Long: `voiceterm wraps a backend CLI (Claude Code, a shell, any interactive
program) inside a PTY and overlays a voice-capture HUD: trigger a
capture, speak, and the transcript is typed into the backend as if you
had typed it yourself.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			override := flagsToOverride(f, cmd.Flags())
			cfg, err := resolveConfig(f.profile, override)
			if err != nil {
				return err
			}

			command, cmdArgs, err := resolveBackendCommand(cfg.Backend, args)
			if err != nil {
				return err
			}

			return Run(cmd.Context(), *cfg, command, cmdArgs)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVar(&f.backend, "backend", "", "Backend command to wrap (default: claude)")
	flags.StringVar(&f.profile, "profile", "", "Named config profile to load from ~/.voiceterm/profiles/")

	flags.BoolVar(&f.autoVoice, "auto-voice", false, "Re-arm a voice capture automatically after each turn")
	flags.StringVar(&f.voiceSendMode, "voice-send-mode", "", "auto|insert: how a finished transcript reaches the backend")

	flags.BoolVar(&f.wakeWord, "wake-word", false, "Enable the always-on wake-word listener")
	flags.Float64Var(&f.wakeWordSensitivity, "wake-word-sensitivity", 0, "Wake-word sensitivity in [0,1]")
	flags.IntVar(&f.wakeWordCooldownMs, "wake-word-cooldown-ms", 0, "Minimum gap between wake-word firings")

	flags.Float64Var(&f.vadThresholdDB, "voice-vad-threshold-db", 0, "Energy gate for the main capture VAD")
	flags.IntVar(&f.vadFrameMs, "voice-vad-frame-ms", 0, "Capture frame duration in milliseconds")
	flags.IntVar(&f.silenceTailMs, "voice-silence-tail-ms", 0, "Trailing silence required to stop a capture")
	flags.IntVar(&f.minSpeechMsBeforeSTT, "voice-min-speech-ms-before-stt", 0, "Minimum accumulated speech before a capture may stop on silence")
	flags.IntVar(&f.lookbackMs, "voice-lookback-ms", 0, "Silence-trim lookback retained after a VadSilence stop")
	flags.IntVar(&f.bufferMs, "voice-buffer-ms", 0, "Rolling capture buffer capacity")
	flags.IntVar(&f.maxCaptureMs, "voice-max-capture-ms", 0, "Hard cap on one capture's duration")

	flags.IntVar(&f.transcriptIdleMs, "transcript-idle-ms", 0, "Idle time required before auto-voice re-arms")

	flags.StringVar(&f.hudStyle, "hud-style", "", "full|minimal|hidden")
	flags.BoolVar(&f.noColor, "no-color", false, "Disable themed HUD colors")
	flags.StringVar(&f.theme, "theme", "", "Named color theme")

	flags.BoolVar(&f.debugKeys, "debug-keys", false, "Log raw stdin bytes and parsed intents")
	flags.BoolVar(&f.debugScroll, "debug-scroll", false, "Log mouse-scroll/SGR parsing")

	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// flagsToOverride copies only explicitly-set flags into an AppConfig
// override, so an unset flag never clobbers a profile or default value
// with cobra's own zero value.
func flagsToOverride(f flagConfig, flags *pflag.FlagSet) config.AppConfig {
	var o config.AppConfig
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}

	set("backend", func() { o.Backend = f.backend })
	set("auto-voice", func() { o.AutoVoice = f.autoVoice })
	set("voice-send-mode", func() { o.VoiceSendMode = f.voiceSendMode })
	set("wake-word", func() { o.WakeWord = f.wakeWord })
	set("wake-word-sensitivity", func() { o.WakeWordSensitivity = f.wakeWordSensitivity })
	set("wake-word-cooldown-ms", func() { o.WakeWordCooldownMS = f.wakeWordCooldownMs })
	set("voice-vad-threshold-db", func() { o.VADThresholdDB = f.vadThresholdDB })
	set("voice-vad-frame-ms", func() { o.VADFrameMS = f.vadFrameMs })
	set("voice-silence-tail-ms", func() { o.SilenceTailMS = f.silenceTailMs })
	set("voice-min-speech-ms-before-stt", func() { o.MinSpeechMSBeforeSTT = f.minSpeechMsBeforeSTT })
	set("voice-lookback-ms", func() { o.LookbackMS = f.lookbackMs })
	set("voice-buffer-ms", func() { o.BufferMS = f.bufferMs })
	set("voice-max-capture-ms", func() { o.MaxCaptureMS = f.maxCaptureMs })
	set("transcript-idle-ms", func() { o.TranscriptIdleMS = f.transcriptIdleMs })
	set("hud-style", func() { o.HUDStyle = f.hudStyle })
	set("no-color", func() { o.NoColor = f.noColor })
	set("theme", func() { o.Theme = f.theme })
	set("debug-keys", func() { o.DebugKeys = f.debugKeys })
	set("debug-scroll", func() { o.DebugScroll = f.debugScroll })

	return o
}

// resolveConfig layers config.Defaults() < the named profile (if any) <
// the flag override set, matching the teacher's role-then-flags
// layering in cmd/run.go, minus the role's process-launch fields.
func resolveConfig(profile string, override config.AppConfig) (*config.AppConfig, error) {
	cfg := config.Defaults()

	if profile != "" {
		p, err := config.LoadProfile(profile)
		if err != nil {
			return nil, fmt.Errorf("load profile %q: %w", profile, err)
		}
		cfg = cfg.Merge(*p)
	}

	cfg = cfg.Merge(override)
	return &cfg, nil
}

// resolveBackendCommand splits positional args into a command and its
// arguments, defaulting to the configured backend (itself defaulting to
// "claude") when none are given — the foreground analogue of the
// teacher's run.go defaulting to the `claude` binary when a role is
// used without an explicit command.
func resolveBackendCommand(backend string, args []string) (string, []string, error) {
	if len(args) > 0 {
		return args[0], args[1:], nil
	}
	if backend == "" {
		return "", nil, fmt.Errorf("no backend command given (pass one after --, or set --backend)")
	}
	return backend, nil, nil
}
