package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/lmstudio-pkgbuild/internal/config"
	"github.com/oshokin/lmstudio-pkgbuild/internal/logger"
	"github.com/oshokin/lmstudio-pkgbuild/internal/service/packager"
	"github.com/oshokin/lmstudio-pkgbuild/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel is the minimum level of printed log messages.
	logLevel string
	// flagValues receives the command-line overrides of the settings file.
	flagValues config.Config

	errUnknownLogLevel = errors.New("unknown log level")
	errConfigExists    = errors.New("settings file already exists, use --force to overwrite")

	// rootCmd refreshes PKGBUILD and .SRCINFO from the newest upstream release.
	rootCmd = &cobra.Command{
		Use:           version.Name,
		Short:         "Refresh the lmstudio-bin PKGBUILD from the latest LM Studio release",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("%w: %s", errUnknownLogLevel, logLevel)
			}

			logger.SetLevel(level)

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			cfg, err := loadConfig(cmd, cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}

			_, err = packager.Run(ctx, &packager.Options{Config: cfg})

			return err
		},
	}

	// initCmd writes the effective settings so later runs need no flags.
	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Write the effective settings to the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}

			if _, statErr := os.Stat(configPath); statErr == nil && !force {
				return fmt.Errorf("%s: %w", configPath, errConfigExists)
			}

			// The file init is asked to create may not exist yet.
			cfg, err := loadConfig(cmd, false)
			if err != nil {
				return err
			}

			if err = config.Save(configPath, cfg); err != nil {
				return err
			}

			logger.InfoKV(cmd.Context(), "Settings saved", "path", configPath)

			return nil
		},
	}
)

// Execute runs the CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	ctx := logger.WithName(context.Background(), version.Name)

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Run failed", "error", err)
	}

	logger.Sync()

	if err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the settings file and applies flags set on the command line.
// A missing file yields the defaults unless mustExist is set.
func loadConfig(cmd *cobra.Command, mustExist bool) (*config.Config, error) {
	load := config.LoadOrDefault
	if mustExist {
		load = config.Load
	}

	cfg, err := load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()

	for name, target := range map[string]struct {
		dst *string
		src string
	}{
		"workspace": {&cfg.WorkspaceDir, flagValues.WorkspaceDir},
		"entry-url": {&cfg.EntryURL, flagValues.EntryURL},
		"makepkg":   {&cfg.MakepkgCommand, flagValues.MakepkgCommand},
	} {
		if flags.Changed(name) {
			*target.dst = target.src
		}
	}

	if err = config.Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.PersistentFlags()

	flags.StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVarP(&flagValues.WorkspaceDir, "workspace", "w", config.DefaultWorkspaceDir, "recipe directory")
	flags.StringVar(&flagValues.EntryURL, "entry-url", config.DefaultEntryURL, "URL redirecting to the latest download")
	flags.StringVar(&flagValues.MakepkgCommand, "makepkg", config.DefaultMakepkgCommand, "makepkg command")
	flags.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	initCmd.Flags().BoolP("force", "f", false, "overwrite an existing configuration file")

	rootCmd.AddCommand(initCmd)
}
