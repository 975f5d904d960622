// Package config holds the plain option struct shared by the CLI and
// server entrypoints. It never reads or parses a config file itself;
// internal/cli flag-binds an Options value with cobra/pflag.
package config

// Options holds the knobs a ghrun invocation needs, mirroring the
// shape of the teacher's ServerConfig but for a one-shot workflow run
// instead of a long-lived server.
type Options struct {
	Addr      string // SSE event-stream listen address (default ":8080")
	LogLevel  string // debug, info, warn, error
	LogFormat string // text, json

	Workspace      string // step working tree, default the current directory
	ActionCacheDir string // resolved remote-action cache, default ~/.cache/ghrun/actions
	BuiltinDir     string // directory the native checkout/builtin actions read from

	Mode string // "container" or "emulation"

	MaxConcurrentJobs int // global cap on jobs running at once, 0 = unlimited
	MatrixMaxParallel int // overrides a job's own strategy.max-parallel when > 0, 0 = use the job's own value
}

// Default returns sensible defaults for running against the current
// directory with the Emulation Runtime.
func Default() Options {
	return Options{
		Addr:      ":8080",
		LogLevel:  "info",
		LogFormat: "text",
		Workspace: ".",
		Mode:      "emulation",
	}
}
