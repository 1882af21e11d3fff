package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/symbols/internal/paths"
	"github.com/mesh-intelligence/symbols/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	// Environment overrides use this prefix, e.g. SYMBOLS_LOG_LEVEL.
	envPrefix = "SYMBOLS"

	cfgKeyBackend     = "backend"
	cfgKeyDataDir     = "data_dir"
	cfgKeyCacheSize   = "cache_size"
	cfgKeyAuditAccess = "audit_access"
	cfgKeyLogLevel    = "log_level"
	cfgKeyLogFormat   = "log_format"

	defaultLogLevel  = "warn"
	defaultLogFormat = "text"
)

// defaultConfigYAML is the content written to config.yaml on first run.
const defaultConfigYAML = `# symstore configuration

# Backend selection
backend: sqlite

# Data directory (optional; overridable by --data-dir)
# data_dir:

# Symbol cache capacity; 0 selects the default
cache_size: 0

# Record a SYMBOL_ACCESS audit entry on every get
audit_access: false

# Logging: debug, info, warn or error; text or json
log_level: warn
log_format: text
`

// loadConfig reads config.yaml from configDir using Viper, creating the
// directory and a default file on first run. SYMBOLS_* environment
// variables override file values.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeyDataDir, "")
	v.SetDefault(cfgKeyCacheSize, 0)
	v.SetDefault(cfgKeyAuditAccess, false)
	v.SetDefault(cfgKeyLogLevel, defaultLogLevel)
	v.SetDefault(cfgKeyLogFormat, defaultLogFormat)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, usageErrorf("read config %s: %v", paths.ConfigFile(configDir), err)
	}
	return v, nil
}

// ensureDefaultConfigFile writes defaultConfigYAML unless config.yaml exists.
func ensureDefaultConfigFile(configDir string) error {
	path := paths.ConfigFile(configDir)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
