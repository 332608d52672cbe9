package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/resumatch/configs"
	"github.com/Aman-CERP/resumatch/internal/config"
	"github.com/Aman-CERP/resumatch/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage the user and project configuration files.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/resumatch/config.yaml)
  3. Project config (.resumatch.yaml)
  4. .env in the working directory
  5. Environment variables (RESUMATCH_*)`,
		Example: `  # Create user config from template
  resumatch config init

  # Show effective configuration (merged from all sources)
  resumatch config show

  # Print user config file path
  resumatch config path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force, project bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file from the template",
		Long: `Create the user configuration file at ~/.config/resumatch/config.yaml
(or $XDG_CONFIG_HOME/resumatch/config.yaml), or with --project a
.resumatch.yaml in the working directory.

--force overwrites an existing user config after saving a backup.`,
		Example: `  resumatch config init
  resumatch config init --force
  resumatch config init --project`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if project {
				return runConfigInitProject(cmd, force)
			}
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	cmd.Flags().BoolVar(&project, "project", false, "Create .resumatch.yaml in the working directory")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var (
		jsonOutput bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Example: `  resumatch config show
  resumatch config show --json
  resumatch config show --source user`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, jsonOutput, source)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged, user, project, defaults")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print user config file path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}

// writeTemplate writes tmpl to path unless a file is already there and
// force is off. It reports whether it wrote.
func writeTemplate(path, tmpl string, force bool) (bool, error) {
	if fileExists(path) && !force {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(tmpl), 0o644); err != nil {
		return false, fmt.Errorf("failed to write config file: %w", err)
	}
	return true, nil
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())
	path := config.GetUserConfigPath()

	var backup string
	if force && config.UserConfigExists() {
		var err error
		if backup, err = config.BackupUserConfig(); err != nil {
			return fmt.Errorf("failed to backup config: %w", err)
		}
	}

	wrote, err := writeTemplate(path, configs.UserConfigTemplate, force)
	if err != nil {
		return err
	}
	if !wrote {
		out.Warning("User configuration already exists")
		out.Statusf("📁", "Location: %s", path)
		out.Status("💡", "Use --force to replace it with the template (a backup is kept)")
		return nil
	}

	out.Success("Created user configuration")
	out.Fields(3,
		output.KV{Key: "Location", Value: path},
		output.KV{Key: "Backup", Value: backup},
	)
	out.Newline()
	out.Status("📋", "Next: pick an embeddings provider and model, then run 'resumatch config show'")
	return nil
}

func runConfigInitProject(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	path := filepath.Join(cwd, config.ProjectConfigName)

	wrote, err := writeTemplate(path, configs.ProjectConfigTemplate, force)
	if err != nil {
		return err
	}
	if !wrote {
		out.Warning("Project configuration already exists")
	} else {
		out.Success("Created project configuration")
	}
	out.Statusf("📁", "Location: %s", path)
	return nil
}

// configSource loads one layer of configuration for 'config show'. A nil
// config with a nil error means the layer's file (path) does not exist;
// hint names the command that creates it.
type configSource struct {
	label string
	path  string
	load  func() (*config.Config, error)
	hint  string
}

func (s configSource) String() string {
	if s.path == "" {
		return s.label
	}
	return s.label + " (" + s.path + ")"
}

func configSources() (map[string]configSource, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	return map[string]configSource{
		"merged": {label: "merged (defaults + user + project + env)", load: loadConfig},
		"user": {
			label: "user",
			path:  config.GetUserConfigPath(),
			load:  config.LoadUserConfig,
			hint:  "resumatch config init",
		},
		"project": {
			label: "project",
			path:  filepath.Join(cwd, config.ProjectConfigName),
			load:  func() (*config.Config, error) { return config.LoadProjectConfig(cwd) },
			hint:  "resumatch config init --project",
		},
		"defaults": {
			label: "defaults (hardcoded)",
			load:  func() (*config.Config, error) { return config.NewConfig(), nil },
		},
	}, nil
}

func runConfigShow(cmd *cobra.Command, jsonOutput bool, source string) error {
	out := output.New(cmd.OutOrStdout())

	sources, err := configSources()
	if err != nil {
		return err
	}
	src, ok := sources[source]
	if !ok {
		return fmt.Errorf("invalid source: %s (use: merged, user, project, defaults)", source)
	}

	cfg, err := src.load()
	if err != nil {
		return fmt.Errorf("failed to load %s config: %w", source, err)
	}
	if cfg == nil {
		out.Warningf("No %s configuration file found", source)
		out.Statusf("📁", "Expected at: %s", src.path)
		out.Statusf("💡", "Run '%s' to create one", src.hint)
		return nil
	}

	if jsonOutput {
		return out.JSON(cfg)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	out.Statusf("📋", "Configuration source: %s", src)
	out.Newline()
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
