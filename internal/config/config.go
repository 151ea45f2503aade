// Package config parses the ralph.toml (or ralph.yaml) controller configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ConfigFileNames are the file names searched for, in order, in each
// directory while walking up from the project directory.
var ConfigFileNames = []string{"ralph.toml", "ralph.yaml", "ralph.yml"}

// DefaultHook is the hook name the completion controller runs as.
const DefaultHook = "stop"

// Config is the top-level controller configuration.
type Config struct {
	Enabled       bool                  `toml:"enabled" yaml:"enabled"`
	Loop          LoopConfig            `toml:"loop" yaml:"loop"`
	Hooks         map[string]HookConfig `toml:"hooks" yaml:"hooks"`
	Probes        ProbesConfig          `toml:"probes" yaml:"probes"`
	Notifications NotificationsConfig   `toml:"notifications" yaml:"notifications"`
	Logging       LoggingConfig         `toml:"logging" yaml:"logging"`
}

// LoopConfig bounds the retry loop and names its completion conditions.
type LoopConfig struct {
	MaxIterations int              `toml:"max_iterations" yaml:"max_iterations" validate:"gt=0"`
	Completion    CompletionConfig `toml:"completion" yaml:"completion"`
}

// CompletionConfig selects which conditions gate loop completion.
// A CoverageThreshold of 0 disables the coverage condition.
type CompletionConfig struct {
	ZeroErrors        bool `toml:"zero_errors" yaml:"zero_errors"`
	ZeroWarnings      bool `toml:"zero_warnings" yaml:"zero_warnings"`
	TestsPass         bool `toml:"tests_pass" yaml:"tests_pass"`
	CoverageThreshold int  `toml:"coverage_threshold" yaml:"coverage_threshold" validate:"gte=0,lte=100"`
}

// HookConfig toggles a single hook. Unset fields default to true.
type HookConfig struct {
	Enabled         *bool `toml:"enabled" yaml:"enabled"`
	CheckCompletion *bool `toml:"check_completion" yaml:"check_completion"`
}

// IsEnabled reports whether the hook runs at all.
func (h HookConfig) IsEnabled() bool {
	return h.Enabled == nil || *h.Enabled
}

// ChecksCompletion reports whether the hook runs the completion probes.
func (h HookConfig) ChecksCompletion() bool {
	return h.CheckCompletion == nil || *h.CheckCompletion
}

// ProbesConfig overrides the auto-detected probe commands and their timeouts.
// Empty commands fall back to the project toolchain defaults; zero timeouts
// fall back to the built-in limits.
type ProbesConfig struct {
	LintCommand            string `toml:"lint_command" yaml:"lint_command"`
	TestCommand            string `toml:"test_command" yaml:"test_command"`
	CoverageCommand        string `toml:"coverage_command" yaml:"coverage_command"`
	LintTimeoutSeconds     int    `toml:"lint_timeout_seconds" yaml:"lint_timeout_seconds" validate:"gte=0"`
	TestTimeoutSeconds     int    `toml:"test_timeout_seconds" yaml:"test_timeout_seconds" validate:"gte=0"`
	CoverageTimeoutSeconds int    `toml:"coverage_timeout_seconds" yaml:"coverage_timeout_seconds" validate:"gte=0"`
}

// NotificationsConfig controls webhook/ntfy.sh notifications on loop end.
type NotificationsConfig struct {
	URL        string `toml:"url" yaml:"url" validate:"omitempty,http_url"`
	OnComplete bool   `toml:"on_complete" yaml:"on_complete"`
	OnStop     bool   `toml:"on_stop" yaml:"on_stop"`
}

// LoggingConfig controls the controller's log file.
type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error disabled"`
	Format string `toml:"format" yaml:"format" validate:"omitempty,oneof=json console"`
	File   string `toml:"file" yaml:"file"`
}

// Hook returns the configuration for the named hook, defaulting every
// toggle to true when the hook is not mentioned.
func (c *Config) Hook(name string) HookConfig {
	if h, ok := c.Hooks[name]; ok {
		return h
	}
	return HookConfig{}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks the configuration for values that would make the
// controller misbehave. It returns all found issues joined together.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config: validate: %w", err)
	}

	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, fmt.Errorf("%s %s", fieldKey(fe), ruleText(fe)))
	}
	return errors.Join(errs...)
}

// fieldKey converts a validator namespace ("Config.loop.max_iterations")
// into the document key ("loop.max_iterations").
func fieldKey(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func ruleText(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gt":
		return "must be > " + fe.Param()
	case "gte":
		return "must be >= " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "http_url":
		return "must be a valid http or https URL"
	default:
		return "failed " + fe.Tag() + " check"
	}
}

// Defaults returns a Config with the built-in defaults.
func Defaults() Config {
	return Config{
		Enabled: true,
		Loop: LoopConfig{
			MaxIterations: 10,
			Completion: CompletionConfig{
				ZeroErrors:        true,
				ZeroWarnings:      false,
				TestsPass:         true,
				CoverageThreshold: 85,
			},
		},
		Probes: ProbesConfig{
			LintTimeoutSeconds:     30,
			TestTimeoutSeconds:     120,
			CoverageTimeoutSeconds: 180,
		},
		Notifications: NotificationsConfig{
			OnComplete: true,
			OnStop:     true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			File:   filepath.Join(".ralph", "ralphgate.log"),
		},
	}
}

// Load reads the configuration file at path. If path is empty, it walks up
// from the current working directory looking for a config file. Returns an
// error if the file is malformed, contains unknown keys (likely typos), or
// fails validation.
func Load(path string) (*Config, error) {
	if path == "" {
		dir, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("config: get working directory: %w", err)
		}
		found, err := FindConfig(dir)
		if err != nil {
			return nil, err
		}
		path = found
	}

	cfg, unknown, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("config: unknown keys in %s: %s (possible typos?)", path, joinKeys(unknown))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid %s: %w", path, err)
	}
	return &cfg, nil
}

// Loaded is the result of LoadLenient.
type Loaded struct {
	Config   Config
	Path     string   // file the config came from; empty when defaults were used
	Warnings []string // problems that were recovered from
}

// LoadLenient resolves the configuration for projectDir and never fails:
// a missing file yields the defaults, and a malformed or invalid file
// yields the defaults plus a warning. Unknown keys are reported but do not
// discard the rest of the file. An explicit path takes precedence over
// discovery.
func LoadLenient(projectDir, explicitPath string) Loaded {
	path := explicitPath
	if path == "" {
		found, err := FindConfig(projectDir)
		if err != nil {
			return Loaded{Config: Defaults()}
		}
		path = found
	}

	cfg, unknown, err := decodeFile(path)
	if err != nil {
		return Loaded{
			Config:   Defaults(),
			Warnings: []string{fmt.Sprintf("%v; using defaults", err)},
		}
	}

	var warnings []string
	if len(unknown) > 0 {
		warnings = append(warnings, fmt.Sprintf("config: unknown keys in %s: %s (ignored)", path, joinKeys(unknown)))
	}
	if verr := cfg.Validate(); verr != nil {
		warnings = append(warnings, fmt.Sprintf("config: invalid %s: %s; using defaults", path, strings.ReplaceAll(verr.Error(), "\n", "; ")))
		return Loaded{Config: Defaults(), Warnings: warnings}
	}
	return Loaded{Config: cfg, Path: path, Warnings: warnings}
}

// decodeFile decodes path over Defaults() and returns the keys the decoder
// did not recognise.
func decodeFile(path string) (Config, []string, error) {
	cfg := Defaults()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Defaults(), nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		return cfg, yamlUnknownKeys(data), nil

	default:
		meta, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Defaults(), nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		undecoded := meta.Undecoded()
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return cfg, keys, nil
	}
}

// yamlUnknownKeys re-decodes data with KnownFields enabled and extracts the
// offending field names from the decoder's type error.
func yamlUnknownKeys(data []byte) []string {
	scratch := Defaults()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	err := dec.Decode(&scratch)

	var typeErr *yaml.TypeError
	if !errors.As(err, &typeErr) {
		return nil
	}
	var keys []string
	for _, msg := range typeErr.Errors {
		// "line 3: field foo not found in type config.LoopConfig"
		_, rest, ok := strings.Cut(msg, "field ")
		if !ok {
			continue
		}
		name, _, _ := strings.Cut(rest, " ")
		keys = append(keys, name)
	}
	return keys
}

// joinKeys formats a slice of key names for display.
func joinKeys(keys []string) string {
	return strings.Join(keys, ", ")
}

// FindConfig walks up from dir looking for one of ConfigFileNames.
func FindConfig(dir string) (string, error) {
	start := dir
	for {
		for _, name := range ConfigFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("config: ralph.toml not found (searched up from %s)", start)
		}
		dir = parent
	}
}

// InitFile writes a default ralph.toml template to the given directory.
func InitFile(dir string) (string, error) {
	path := filepath.Join(dir, "ralph.toml")
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("config: ralph.toml already exists at %s", path)
	}

	content := `# ralph.toml: completion gate for the Ralph loop
# Place this file in the root of your project.

enabled = true

[loop]
max_iterations = 10

[loop.completion]
zero_errors = true
zero_warnings = false
tests_pass = true
coverage_threshold = 85  # percent; 0 disables the coverage check

[hooks.stop]
enabled = true
check_completion = true  # false keeps counting iterations without probing

[probes]
lint_command = ""      # empty = detect from go.mod / pyproject.toml / package.json / Cargo.toml
test_command = ""
coverage_command = ""
lint_timeout_seconds = 30
test_timeout_seconds = 120
coverage_timeout_seconds = 180

[notifications]
url = ""           # ntfy.sh topic URL or any HTTP webhook (empty = disabled)
on_complete = true # notify when all conditions are met
on_stop = true     # notify when the iteration cap ends the loop

[logging]
level = "info"
format = "json"
file = ".ralph/ralphgate.log"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("config: write %s: %w", path, err)
	}
	return path, nil
}
