// Package config loads the tool's settings and the component catalog.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"astra-setup/internal/prompt"
)

const (
	// EnvPrefix prefixes every environment override, e.g. ASTRA_SETUP_DRY_RUN.
	EnvPrefix = "ASTRA_SETUP"
	appDir    = "astra-setup"
)

// Setting keys.
const (
	KeyDryRun         = "dry_run"
	KeyLineTimeout    = "line_timeout"
	KeyMaxBuffer      = "max_buffer"
	KeyWinePrefix     = "wine_prefix"
	KeyIDEDir         = "ide_dir"
	KeyIDEArchive     = "ide_archive"
	KeyIDEExecutable  = "ide_executable"
	KeyCacheDir       = "cache_dir"
	KeyStateFile      = "state_file"
	KeyComponentsFile = "components_file"
	KeyPrompts        = "prompts"
)

// PromptRule is an extra prompt rule from the settings file. Exactly one of
// Pattern (regular expression) and Literal must be set.
type PromptRule struct {
	Kind     string `mapstructure:"kind"`
	Pattern  string `mapstructure:"pattern"`
	Literal  string `mapstructure:"literal"`
	Response string `mapstructure:"response"`
}

// Settings is the resolved configuration of one invocation.
// LineTimeout kills a child silent for that long; zero waits forever.
// IDEArchive is a local path or an http(s) URL of the IDE distribution.
type Settings struct {
	DryRun         bool          `mapstructure:"dry_run"`
	LineTimeout    time.Duration `mapstructure:"line_timeout"`
	MaxBuffer      int           `mapstructure:"max_buffer"`
	WinePrefix     string        `mapstructure:"wine_prefix"`
	IDEDir         string        `mapstructure:"ide_dir"`
	IDEArchive     string        `mapstructure:"ide_archive"`
	IDEExecutable  string        `mapstructure:"ide_executable"`
	CacheDir       string        `mapstructure:"cache_dir"`
	StateFile      string        `mapstructure:"state_file"`
	ComponentsFile string        `mapstructure:"components_file"`
	Prompts        []PromptRule  `mapstructure:"prompts"`
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// NewViper returns a viper instance with defaults and environment binding.
// Flags are bound by the caller.
func NewViper() *viper.Viper {
	home := homeDir()
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyDryRun, false)
	v.SetDefault(KeyLineTimeout, time.Duration(0))
	v.SetDefault(KeyMaxBuffer, 64*1024)
	v.SetDefault(KeyWinePrefix, filepath.Join(home, ".wine-ide"))
	v.SetDefault(KeyIDEDir, "")
	v.SetDefault(KeyIDEArchive, "")
	v.SetDefault(KeyIDEExecutable, filepath.Join("bin", "ide.exe"))
	v.SetDefault(KeyCacheDir, filepath.Join(home, ".cache", appDir))
	v.SetDefault(KeyStateFile, filepath.Join(home, ".local", "state", appDir, "last-run.json"))
	v.SetDefault(KeyComponentsFile, "")
	return v
}

// Load reads configFile (optional) into v and decodes the settings.
// A missing default file is not an error; a missing explicit file is.
func Load(v *viper.Viper, configFile string) (*Settings, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(filepath.Join(homeDir(), ".config", appDir))
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if s.IDEDir == "" {
		s.IDEDir = filepath.Join(s.WinePrefix, "drive_c", "Program Files", "IDE")
	}
	if s.IDEArchive == "" {
		s.IDEArchive = filepath.Join(s.CacheDir, "ide.7z")
	}
	if s.LineTimeout < 0 {
		return nil, fmt.Errorf("%s must not be negative", KeyLineTimeout)
	}
	return &s, nil
}

// Registry returns the default prompt registry extended with the rules from
// the settings file. They are consulted after the built-in package-manager
// rules but before the generic yes/no question.
func (s *Settings) Registry() (*prompt.Registry, error) {
	if len(s.Prompts) == 0 {
		return prompt.Default(), nil
	}
	rules := make([]prompt.Rule, 0, len(s.Prompts))
	for i, p := range s.Prompts {
		if p.Kind == "" {
			return nil, fmt.Errorf("prompts[%d]: kind is required", i)
		}
		var m prompt.Matcher
		switch {
		case p.Pattern != "" && p.Literal != "":
			return nil, fmt.Errorf("prompts[%d]: set either pattern or literal, not both", i)
		case p.Pattern != "":
			re, err := prompt.Regex(p.Pattern)
			if err != nil {
				return nil, fmt.Errorf("prompts[%d]: %w", i, err)
			}
			m = re
		case p.Literal != "":
			m = prompt.Literal(p.Literal)
		default:
			return nil, fmt.Errorf("prompts[%d]: pattern or literal is required", i)
		}
		rules = append(rules, prompt.Rule{Kind: prompt.Kind(p.Kind), Matcher: m, Response: p.Response})
	}
	return prompt.Default().Before(prompt.KindYesNo, rules...), nil
}

// Vars are the placeholders available in the component catalog.
func (s *Settings) Vars() Vars {
	return Vars{
		"HOME":           homeDir(),
		"WINEPREFIX":     s.WinePrefix,
		"IDE_DIR":        s.IDEDir,
		"IDE_ARCHIVE":    s.IDEArchive,
		"IDE_EXECUTABLE": s.IDEExecutable,
		"CACHE_DIR":      s.CacheDir,
	}
}
