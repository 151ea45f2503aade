package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables read once per invocation by ReadEnv.
const (
	EnvDisabled      = "RALPH_DISABLED"
	EnvLoopActive    = "RALPH_LOOP_ACTIVE"
	EnvLoopIteration = "RALPH_LOOP_ITERATION"
	EnvMaxIterations = "RALPH_MAX_ITERATIONS"
	EnvConfigPath    = "RALPH_CONFIG"
	EnvLogLevel      = "RALPH_LOG_LEVEL"
	EnvProjectDir    = "CLAUDE_PROJECT_DIR"
)

// Env holds the environment-sourced overrides. Zero values mean "not set".
type Env struct {
	Disabled      bool
	Activation    *Activation
	MaxIterations int
	ConfigPath    string
	LogLevel      string
	ProjectDir    string
}

// Activation is the external "loop active, at iteration N" signal. When
// present it takes precedence over the persisted loop state.
type Activation struct {
	Active    bool
	Iteration int
}

// ReadEnv collects the overrides through getenv. Pass os.Getenv in
// production; tests pass a map lookup.
func ReadEnv(getenv func(string) string) Env {
	if getenv == nil {
		getenv = os.Getenv
	}

	env := Env{
		Disabled:   truthy(getenv(EnvDisabled)),
		ConfigPath: strings.TrimSpace(getenv(EnvConfigPath)),
		LogLevel:   strings.ToLower(strings.TrimSpace(getenv(EnvLogLevel))),
		ProjectDir: strings.TrimSpace(getenv(EnvProjectDir)),
	}

	if raw := strings.TrimSpace(getenv(EnvLoopActive)); raw != "" {
		act := &Activation{Active: truthy(raw)}
		if n, err := strconv.Atoi(strings.TrimSpace(getenv(EnvLoopIteration))); err == nil && n >= 0 {
			act.Iteration = n
		}
		env.Activation = act
	}

	if n, err := strconv.Atoi(strings.TrimSpace(getenv(EnvMaxIterations))); err == nil && n > 0 {
		env.MaxIterations = n
	}
	return env
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "y", "yes", "on":
		return true
	}
	return false
}

// Effective is the single configuration value threaded through one
// controller invocation: the file configuration with every environment
// override already applied.
type Effective struct {
	Config     Config
	ConfigPath string
	ProjectDir string
	Hook       string

	// Disabled makes the invocation a pure no-op. DisabledReason says why.
	Disabled       bool
	DisabledReason string

	// CheckCompletion is false when hooks.<name>.check_completion is off;
	// the loop then only ends at the iteration cap.
	CheckCompletion bool

	MaxIterations int
	Activation    *Activation
	LogLevel      string
}

// Resolve folds env into the loaded configuration for the named hook.
func Resolve(loaded Loaded, env Env, projectDir, hook string) Effective {
	cfg := loaded.Config
	if hook == "" {
		hook = DefaultHook
	}
	hc := cfg.Hook(hook)

	eff := Effective{
		Config:          cfg,
		ConfigPath:      loaded.Path,
		ProjectDir:      projectDir,
		Hook:            hook,
		CheckCompletion: hc.ChecksCompletion(),
		MaxIterations:   cfg.Loop.MaxIterations,
		Activation:      env.Activation,
		LogLevel:        cfg.Logging.Level,
	}

	switch {
	case env.Disabled:
		eff.Disabled, eff.DisabledReason = true, EnvDisabled+" is set"
	case !cfg.Enabled:
		eff.Disabled, eff.DisabledReason = true, "enabled = false"
	case !hc.IsEnabled():
		eff.Disabled, eff.DisabledReason = true, "hooks."+hook+".enabled = false"
	}

	if env.MaxIterations > 0 {
		eff.MaxIterations = env.MaxIterations
	}
	if eff.MaxIterations <= 0 {
		eff.MaxIterations = Defaults().Loop.MaxIterations
	}
	if env.LogLevel != "" {
		eff.LogLevel = env.LogLevel
	}
	return eff
}

// Timeout converts a seconds setting into a duration, falling back to def
// when the setting is zero or negative.
func Timeout(seconds int, def time.Duration) time.Duration {
	if seconds <= 0 {
		return def
	}
	return time.Duration(seconds) * time.Second
}
