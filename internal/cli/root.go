// Package cli provides the command-line interface for QuantDB.
package cli

import (
	"fmt"
	"os"

	"github.com/leapstack-labs/quantdb/internal/cli/commands"
	"github.com/leapstack-labs/quantdb/internal/cli/config"
	"github.com/leapstack-labs/quantdb/internal/render"
	"github.com/spf13/cobra"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "quantdb [files...]",
		Short: "QuantDB - polyglot query console",
		Long: `QuantDB runs Starlark scripts, DuckDB SQL and SQL over script frames
in one session, and serves that session over the MySQL protocol and HTTP.

Positional arguments are files to run at startup. A .duckdb or .db file
opens that database instead.`,
		Version: Version,
		Args:    cobra.ArbitraryArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			logger := config.NewLogger(cmd.ErrOrStderr(), cfg.Verbose, cfg.Quiet)
			cmd.SetContext(config.WithContext(config.WithLogger(cmd.Context(), logger), cfg))

			if configFile := config.GetConfigFileUsed(); configFile != "" {
				logger.Debug("using config file", "path", configFile)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())
			cfg.ApplyArgs(args)
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.ValidateFiles(); err != nil {
				return err
			}
			return commands.Start(cmd.Context(), Version, cfg, commands.Streams{
				In:  os.Stdin,
				Out: cmd.OutOrStdout(),
				Err: cmd.ErrOrStderr(),
			})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set version template
	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Built with Go, Starlark and DuckDB
`)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./quantdb.yaml)")
	flags.StringP("language", "l", "", "Language to interpret input as (py|dk|pl|q)")
	flags.StringP("command", "c", "", "Run COMMAND at startup")
	flags.IntP("port", "P", config.DefaultPort, "Port for the MySQL compatible server (0 disables it)")
	flags.IntP("web-port", "w", config.DefaultWebPort, "Port for the web server (0 disables it)")
	flags.BoolP("quiet", "q", false, "Don't show the banner")
	flags.BoolP("verbose", "v", false, "Display debugging information")
	flags.String("database", "", "Path to DuckDB database (empty for in-memory)")
	flags.String("html-dir", config.DefaultHTMLDir, "Directory of static files for the web server")
	flags.Bool("watch", false, "Re-run startup files when they change")
	flags.StringP("output", "o", config.DefaultOutput, "Console output format")
	flags.String("history-file", "", "Console history file")
	flags.String("mysql-user", config.DefaultUser, "MySQL server user")
	flags.String("mysql-password", "", "MySQL server password")

	_ = rootCmd.RegisterFlagCompletionFunc("language", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"py", "dk", "pl", "q"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		names := make([]string, len(render.Formats))
		for i, f := range render.Formats {
			names[i] = string(f)
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for QuantDB.

To load completions:

Bash:
  $ source <(quantdb completion bash)

Zsh:
  $ quantdb completion zsh > "${fpath[1]}/_quantdb"

Fish:
  $ quantdb completion fish | source

PowerShell:
  PS> quantdb completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
