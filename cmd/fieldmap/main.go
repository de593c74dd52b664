package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"github.com/coolbeans/fieldmap/pkg/cache"
	"github.com/coolbeans/fieldmap/pkg/config"
	"github.com/coolbeans/fieldmap/pkg/logging"
	"github.com/coolbeans/fieldmap/pkg/pipeline"
	"github.com/coolbeans/fieldmap/pkg/profile"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fieldmap",
		Short: "Data guide field extractor",
		Long: `Fieldmap reads the field tables of PDF data guides and emits one
(section, field name, field description) record per documented field.

It handles:
  - Figure captions that name each table section
  - Header rows, wrapped descriptions and two-column layouts
  - Vocabulary profiles for different families of guides
  - CSV, JSON, SQLite and PDF report output`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config", "", "Config file (default: ./fieldmap.toml when present)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn, error")

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(textCmd())
	rootCmd.AddCommand(trimCmd())
	rootCmd.AddCommand(profilesCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(cacheCmd())

	return rootCmd
}

// env is the configuration and logger shared by every command.
type env struct {
	cfg    *config.Config
	logger *log.Logger
}

func setup(cmd *cobra.Command) (*env, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	return &env{cfg: cfg, logger: logger}, nil
}

// registry returns the built-in profiles plus those in the configured
// profile directory.
func (e *env) registry() (*profile.Registry, error) {
	reg := profile.NewRegistry(e.logger)
	if e.cfg.Profiles.Dir != "" {
		if err := reg.LoadDirectory(e.cfg.Profiles.Dir); err != nil {
			return nil, fmt.Errorf("failed to load profiles: %w", err)
		}
	}
	return reg, nil
}

// pipeline builds a pipeline; the returned func releases the text cache.
func (e *env) pipeline(noCache bool) (*pipeline.Pipeline, func(), error) {
	reg, err := e.registry()
	if err != nil {
		return nil, nil, err
	}

	var textCache *cache.TextCache
	if e.cfg.Cache.Enabled && !noCache {
		textCache, err = cache.Open(e.cfg.Cache.Dir, e.logger)
		if err != nil {
			// The cache is an optimization; run without it
			e.logger.Warn().Err(err).Str("dir", e.cfg.Cache.Dir).Msg("text cache unavailable")
			textCache = nil
		}
	}

	release := func() {
		if textCache != nil {
			if err := textCache.Close(); err != nil {
				e.logger.Warn().Err(err).Msg("closing text cache")
			}
		}
	}
	return pipeline.New(reg, textCache, e.logger), release, nil
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [dir]",
		Short: "Initialize a fieldmap workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) > 0 {
				root = args[0]
			}

			dirs := []string{
				filepath.Join(root, "input"),
				filepath.Join(root, "output"),
				filepath.Join(root, "profiles"),
			}
			for _, dir := range dirs {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return fmt.Errorf("failed to create directory %s: %w", dir, err)
				}
			}

			configPath := filepath.Join(root, config.DefaultFile)
			if _, err := os.Stat(configPath); os.IsNotExist(err) {
				if err := config.NewDefaultConfig().Write(configPath); err != nil {
					return err
				}
			} else {
				fmt.Printf("Keeping existing %s\n", configPath)
			}

			example := filepath.Join(root, "profiles", profile.DefaultID+".yaml")
			if _, err := os.Stat(example); os.IsNotExist(err) {
				data, err := profile.BuiltinYAML(profile.DefaultID)
				if err != nil {
					return err
				}
				if err := os.WriteFile(example, data, 0644); err != nil {
					return fmt.Errorf("failed to write %s: %w", example, err)
				}
			}

			fmt.Printf("Initialized fieldmap workspace: %s\n", root)
			fmt.Println("Created:")
			for _, dir := range dirs {
				fmt.Printf("  - %s/\n", dir)
			}
			fmt.Printf("  - %s\n", configPath)
			fmt.Printf("  - %s\n", example)
			fmt.Printf("\nNext steps:\n")
			fmt.Printf("  1. Add data guides to %s\n", dirs[0])
			fmt.Printf("  2. Run: fieldmap extract --source %s/guide.pdf\n", dirs[0])
			fmt.Printf("  3. Or keep extracting as files arrive: fieldmap watch\n")
			return nil
		},
	}
}
