package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"dubflow/internal/config"
)

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	configCmd.AddCommand(newConfigShowCommand())
	configCmd.AddCommand(newConfigValidateCommand())
	configCmd.AddCommand(newConfigInitCommand())
	return configCmd
}

func newConfigShowCommand() *cobra.Command {
	var pathFlag string

	cmd := &cobra.Command{
		Use:         "show",
		Short:       "Print the effective configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, usedDefault, err := config.Load(strings.TrimSpace(pathFlag))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if usedDefault {
				fmt.Fprintln(out, "# built-in defaults (no config file found)")
			} else {
				fmt.Fprintf(out, "# %s\n", path)
			}
			rendered, err := toml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("render configuration: %w", err)
			}
			_, err = out.Write(rendered)
			return err
		},
	}
	cmd.Flags().StringVarP(&pathFlag, "config", "c", "", "Configuration file path")
	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	var pathFlag string

	cmd := &cobra.Command{
		Use:         "validate",
		Short:       "Validate a configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, usedDefault, err := config.Load(strings.TrimSpace(pathFlag))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if usedDefault {
				fmt.Fprintln(out, "no config file found; built-in defaults are valid")
			} else {
				fmt.Fprintf(out, "%s is valid\n", path)
			}
			fmt.Fprintf(out, "workspace: %s\n", cfg.Paths.WorkspaceDir)
			fmt.Fprintf(out, "translation order: %s\n", strings.Join(cfg.Translation.Order, ", "))
			fmt.Fprintf(out, "validation weights (%s):\n", cfg.Validation.WeightsVersion)
			for name, weight := range cfg.Validation.Weights {
				fmt.Fprintf(out, "  %s = %.2f\n", name, weight)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&pathFlag, "config", "c", "", "Configuration file path")
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := os.WriteFile(target, []byte(config.SampleConfig()), 0o644); err != nil {
				return fmt.Errorf("write config file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote sample configuration to %s\n", target)
			return nil
		},
	}
	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the sample config")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}
