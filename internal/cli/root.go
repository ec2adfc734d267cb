// Package cli implements klokctl, the operator command line for klok.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"klok/internal/platform/config"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

type rootOptions struct {
	v       *viper.Viper
	cfgFile string
}

// NewRootCommand builds klokctl. Flags, KLOK_* environment variables and an
// optional config file all feed one viper instance, in that precedence.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{v: config.NewViper()}

	root := &cobra.Command{
		Use:   "klokctl",
		Short: "Operate a klok compliance deployment",
		Long: `klokctl runs operator tasks against the same stores and rule sets as
the klok server: reconciliation passes, schema migrations, admin token
hashing and test token minting.

Configuration (highest to lowest priority):
  1. CLI flags
  2. Environment variables (KLOK_*)
  3. Config file (--config)
  4. Defaults`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.readConfig()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.cfgFile, "config", "", "config file (yaml, json or toml)")
	flags.String("database-url", "", "Postgres URL; empty uses in-memory stores")
	flags.String("redis-url", "", "Redis URL for the reconciliation lock")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("jurisdiction-dir", "", "directory of jurisdiction YAML overrides")
	_ = opts.v.BindPFlag("database.url", flags.Lookup("database-url"))
	_ = opts.v.BindPFlag("redis.url", flags.Lookup("redis-url"))
	_ = opts.v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = opts.v.BindPFlag("compliance.jurisdiction_dir", flags.Lookup("jurisdiction-dir"))

	root.AddCommand(
		newVersionCommand(),
		newReconcileCommand(opts),
		newMigrateCommand(opts),
		newProvidersCommand(opts),
		newHashAdminTokenCommand(),
		newTokenCommand(opts),
	)
	return root
}

func (o *rootOptions) readConfig() error {
	if o.cfgFile == "" {
		return nil
	}
	o.v.SetConfigFile(o.cfgFile)
	if err := o.v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", o.cfgFile, err)
	}
	return nil
}

func (o *rootOptions) config() config.Server {
	return config.Load(o.v)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "klokctl %s\n", Version)
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
