package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"astra-setup/internal/config"
	"astra-setup/internal/logger"
)

// debug flag indicates whether debug logging should be enabled.
var debug bool

// configPath is the optional settings file given with --config.
var configPath string

// v holds defaults, environment and bound flags; settings is decoded from
// it before any subcommand runs.
var (
	v        = config.NewViper()
	settings *config.Settings
)

// rootCmd is the base command for the CLI tool `astra-setup`.
var rootCmd = &cobra.Command{
	Use:   "astra-setup",
	Short: "Workstation provisioning: system repair and upgrade, Wine and the IDE",
	Long: `astra-setup brings a workstation to a known state: it repairs the package
repository, upgrades the system, prepares a Wine prefix and installs the IDE
into it. Questions asked by apt, dpkg and debconf are answered automatically.`,
	SilenceUsage: true,

	// PersistentPreRunE runs before any subcommand: set up logging, then
	// resolve settings from file, environment and flags.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.Init(debug)
		s, err := config.Load(v, configPath)
		if err != nil {
			return err
		}
		settings = s
		logger.Debug("[DEBUG] Settings: %+v\n", *settings)
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&debug, "debug", false, "Enable debug logging")
	flags.StringVarP(&configPath, "config", "c", "", "Path to settings file (default ~/.config/astra-setup/config.yaml)")
	flags.Bool("dry-run", false, "Log every step without executing anything")
	flags.Duration("line-timeout", 0, "Kill a command that prints nothing for this long (0 waits forever)")
	flags.String("components", "", "Component catalog to use instead of the built-in one")

	bindFlag(v, config.KeyDryRun, rootCmd, "dry-run")
	bindFlag(v, config.KeyLineTimeout, rootCmd, "line-timeout")
	bindFlag(v, config.KeyComponentsFile, rootCmd, "components")

	rootCmd.AddCommand(statusCmd, listCmd, validateCmd, installCmd, reportCmd)
}

func bindFlag(v *viper.Viper, key string, cmd *cobra.Command, name string) {
	if err := v.BindPFlag(key, cmd.PersistentFlags().Lookup(name)); err != nil {
		panic(err)
	}
}

// ExecuteContext runs the CLI; ctx is cancelled on interrupt.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
