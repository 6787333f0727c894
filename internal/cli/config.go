package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
	"go.uber.org/zap"

	"github.com/wxtools/gribarc/pkg/gribfile"
)

// ConfigFileName is the default project config file name.
const ConfigFileName = ".gribarc.json"

var (
	errConfigInvalid      = errors.New("invalid config")
	errConfigFileNotFound = errors.New("config file not found")
)

// Config holds all CLI configuration. Policy fields carry their string
// spellings; they are mapped onto gribfile types once, after merging.
type Config struct {
	// From config files (serialized)
	IndexDir        string `json:"index_dir,omitempty"`
	HandlePolicy    string `json:"handle_policy,omitempty"`
	HandleCacheSize int    `json:"handle_cache_size,omitempty"`
	FieldRetention  string `json:"field_retention,omitempty"`

	// Resolved paths (computed, not serialized)
	EffectiveCwd string `json:"-"` // Absolute working directory (from -C flag or os.Getwd)
	IndexDirAbs  string `json:"-"` // Absolute sidecar directory; empty keeps sidecars next to archives

	// Sources tracks which config files were loaded (for diagnostics)
	Sources ConfigSources `json:"-"`
}

// ConfigSources tracks which config files were loaded.
type ConfigSources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project config if loaded, empty otherwise
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		HandlePolicy:    gribfile.HandleCache.String(),
		HandleCacheSize: gribfile.DefaultHandleCacheSize,
		FieldRetention:  gribfile.RetainPersistent.String(),
	}
}

// getGlobalConfigPath returns the path to the global config file.
// Uses $XDG_CONFIG_HOME/gribarc/config.json if set, otherwise
// ~/.config/gribarc/config.json. Returns empty string if the home
// directory cannot be determined.
func getGlobalConfigPath(env map[string]string) string {
	if xdgConfig := env["XDG_CONFIG_HOME"]; xdgConfig != "" {
		return filepath.Join(xdgConfig, "gribarc", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "gribarc", "config.json")
	}

	return ""
}

// LoadConfigInput holds the inputs for LoadConfig.
type LoadConfigInput struct {
	WorkDirOverride  string            // -C/--cwd flag value; if empty, os.Getwd() is used
	ConfigPath       string            // -c/--config flag value
	IndexDirOverride string            // --index-dir flag value; empty means no override
	Env              map[string]string // environment variables
}

// LoadConfig loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config ($XDG_CONFIG_HOME/gribarc/config.json or ~/.config/gribarc/config.json)
// 3. Project config file at default location (.gribarc.json, if exists)
// 4. Explicit config file via ConfigPath (if non-empty)
// 5. CLI overrides.
//
// All paths in the returned Config are resolved to absolute paths.
func LoadConfig(input LoadConfigInput) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	cfg := DefaultConfig()

	globalCfg, globalPath, err := loadGlobalConfig(input.Env)
	if err != nil {
		return Config{}, err
	}

	cfg.Sources.Global = globalPath
	cfg = mergeConfig(cfg, globalCfg)

	projectCfg, projectPath, err := loadProjectConfig(workDir, input.ConfigPath)
	if err != nil {
		return Config{}, err
	}

	cfg.Sources.Project = projectPath
	cfg = mergeConfig(cfg, projectCfg)

	if input.IndexDirOverride != "" {
		cfg.IndexDir = input.IndexDirOverride
	}

	validateErr := validateConfig(cfg)
	if validateErr != nil {
		return Config{}, validateErr
	}

	cfg.EffectiveCwd = workDir

	if cfg.IndexDir != "" {
		cfg.IndexDirAbs = absFrom(workDir, cfg.IndexDir)
	}

	return cfg, nil
}

// ReaderOptions maps the merged config onto library options. The
// returned Options carry the given logger.
func (c Config) ReaderOptions(log *zap.Logger) (gribfile.Options, error) {
	policy, err := gribfile.ParseHandlePolicy(c.HandlePolicy)
	if err != nil {
		return gribfile.Options{}, fmt.Errorf("%w: %w", errConfigInvalid, err)
	}

	retention, err := gribfile.ParseFieldRetention(c.FieldRetention)
	if err != nil {
		return gribfile.Options{}, fmt.Errorf("%w: %w", errConfigInvalid, err)
	}

	return gribfile.Options{
		HandlePolicy:    policy,
		HandleCacheSize: c.HandleCacheSize,
		FieldRetention:  retention,
		IndexDir:        c.IndexDirAbs,
		Logger:          log,
	}, nil
}

// loadGlobalConfig loads the global user config file if it exists.
// Returns the config, the path if loaded, and any error.
func loadGlobalConfig(env map[string]string) (Config, string, error) {
	globalCfgPath := getGlobalConfigPath(env)
	if globalCfgPath == "" {
		return Config{}, "", nil
	}

	globalCfg, loaded, err := loadConfigFile(globalCfgPath, false)
	if err != nil {
		return Config{}, "", err
	}

	if !loaded {
		return Config{}, "", nil
	}

	return globalCfg, globalCfgPath, nil
}

// loadProjectConfig loads the project config file (.gribarc.json) or an
// explicit config file. Returns the config, the path if loaded, and any
// error.
func loadProjectConfig(workDir, configPath string) (Config, string, error) {
	var cfgFile string

	var mustExist bool

	if configPath != "" {
		// Explicit config file - must exist
		cfgFile = configPath
		if !filepath.IsAbs(cfgFile) {
			cfgFile = filepath.Join(workDir, cfgFile)
		}

		mustExist = true

		// Check existence first to provide a clear "not found" error
		_, statErr := os.Stat(cfgFile)
		if statErr != nil {
			return Config{}, "", fmt.Errorf("%w: %s", errConfigFileNotFound, configPath)
		}
	} else {
		// Default project config file - optional
		cfgFile = filepath.Join(workDir, ConfigFileName)
		mustExist = false
	}

	fileCfg, loaded, err := loadConfigFile(cfgFile, mustExist)
	if err != nil {
		return Config{}, "", err
	}

	if !loaded {
		return Config{}, "", nil
	}

	return fileCfg, cfgFile, nil
}

// loadConfigFile loads a config file. If mustExist is false, missing
// files return zero config. Returns the config, whether the file was
// loaded, and any error.
func loadConfigFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if mustExist {
			return Config{}, false, fmt.Errorf("%w: %s", errConfigFileNotFound, path)
		}

		return Config{}, false, nil
	}

	cfg, parseErr := parseConfig(data)
	if parseErr != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", errConfigInvalid, path, parseErr)
	}

	return cfg, true, nil
}

func parseConfig(data []byte) (Config, error) {
	// Standardize JSONC to JSON
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	unmarshalErr := json.Unmarshal(standardized, &cfg)
	if unmarshalErr != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", unmarshalErr)
	}

	return cfg, nil
}

func mergeConfig(base, overlay Config) Config {
	if overlay.IndexDir != "" {
		base.IndexDir = overlay.IndexDir
	}

	if overlay.HandlePolicy != "" {
		base.HandlePolicy = overlay.HandlePolicy
	}

	if overlay.HandleCacheSize != 0 {
		base.HandleCacheSize = overlay.HandleCacheSize
	}

	if overlay.FieldRetention != "" {
		base.FieldRetention = overlay.FieldRetention
	}

	return base
}

func validateConfig(cfg Config) error {
	if _, err := gribfile.ParseHandlePolicy(cfg.HandlePolicy); err != nil {
		return fmt.Errorf("%w: %w", errConfigInvalid, err)
	}

	if _, err := gribfile.ParseFieldRetention(cfg.FieldRetention); err != nil {
		return fmt.Errorf("%w: %w", errConfigInvalid, err)
	}

	if cfg.HandleCacheSize < 0 {
		return fmt.Errorf("%w: handle_cache_size must not be negative", errConfigInvalid)
	}

	return nil
}
