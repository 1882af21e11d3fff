// Package cli implements the symstore command-line interface.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/symbols/internal/paths"
	"github.com/mesh-intelligence/symbols/pkg/sqlite"
	"github.com/mesh-intelligence/symbols/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// Output formats accepted by --output.
const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

// app holds the state shared by one command tree: global flag values and
// what PersistentPreRunE derived from them.
type app struct {
	configDir string
	dataDir   string
	output    string

	settings *viper.Viper
	logger   *slog.Logger
}

// NewRootCmd creates the top-level "symstore" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	root := &cobra.Command{
		Use:   "symstore",
		Short: "A versioned symbol store with a typed relationship graph",
		Long: "symstore persists directive symbols (versioned, content-hashed knowledge units)\n" +
			"and the typed, weighted relationships between them.",
		Version:           Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageErrorf("%v", err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.configDir, "config-dir", "", "configuration directory (default: platform config dir, or $"+paths.EnvConfigDir+")")
	pf.StringVar(&a.dataDir, "data-dir", "", "data directory (default: data_dir from config, $"+paths.EnvDataDir+", or $(CWD)/"+paths.DefaultDataDirName+")")
	pf.StringVarP(&a.output, "output", "o", outputText, "output format: text, json or yaml")

	root.AddCommand(
		newVersionCmd(),
		a.newInitCmd(),
		a.newCreateCmd(),
		a.newGetCmd(),
		a.newUpdateCmd(),
		a.newDeleteCmd(),
		a.newListCmd(),
		a.newSearchCmd(),
		a.newExistsCmd(),
		a.newLinkCmd(),
		a.newNeighborhoodCmd(),
		a.newPathsCmd(),
		a.newShortestCmd(),
		a.newCentralityCmd(),
		a.newStatsCmd(),
		a.newAuditCmd(),
		a.newCheckCmd(),
		a.newOptimizeCmd(),
		a.newExportCmd(),
		a.newImportCmd(),
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "symstore:", err)
		return exitCode(err)
	}
	return exitSuccess
}

// setup validates global flags, loads config.yaml and builds the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	switch a.output {
	case outputText, outputJSON, outputYAML:
	default:
		return usageErrorf("unknown output format %q (valid: text, json, yaml)", a.output)
	}
	if cmd.Name() == "version" {
		return nil
	}

	configDir, err := paths.ResolveConfigDir(a.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	a.configDir = configDir

	if a.settings, err = loadConfig(configDir); err != nil {
		return err
	}
	a.logger, err = newLogger(cmd.ErrOrStderr(), a.settings.GetString(cfgKeyLogLevel), a.settings.GetString(cfgKeyLogFormat))
	if err != nil {
		return err
	}
	return nil
}

// storeConfig builds the backend config from flags and config.yaml.
func (a *app) storeConfig() (types.Config, error) {
	dataDir, err := paths.ResolveDataDir(a.dataDir, a.settings.GetString(cfgKeyDataDir))
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	cfg := types.Config{
		Backend:     a.settings.GetString(cfgKeyBackend),
		DataDir:     dataDir,
		CacheSize:   a.settings.GetInt(cfgKeyCacheSize),
		AuditAccess: a.settings.GetBool(cfgKeyAuditAccess),
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, usageErrorf("config %s: %v", paths.ConfigFile(a.configDir), err)
	}
	return cfg, nil
}

// withStore attaches a store for the duration of fn.
func (a *app) withStore(fn func(types.Store) error) error {
	cfg, err := a.storeConfig()
	if err != nil {
		return err
	}
	store := sqlite.NewBackend(sqlite.WithLogger(a.logger))
	if err := store.Attach(cfg); err != nil {
		return fmt.Errorf("attach store: %w", err)
	}
	defer func() {
		if err := store.Detach(); err != nil {
			a.logger.Warn("detach failed", "error", err)
		}
	}()
	return fn(store)
}
