package main

import (
	"context"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hrygo/synapse/internal/profile"
)

// rootOptions are the global flags.
type rootOptions struct {
	configFile string
	tier       string
	offline    bool
	verbose    bool
	jsonOutput bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "synapse",
		Short: "Semantic search over short notes",
		Long: `synapse embeds short notes and searches them by meaning.

Searches run on-device against the local vector index. Depending on the
subscription tier, connectivity and remaining credits, they are also sent to
the remote pgvector index and the results are merged.

Configuration is read from SYNAPSE_* environment variables, a .env file in
the working directory, and an optional config file.`,
		Version:       version + " (" + commit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Load .env for API keys
			_ = godotenv.Load()

			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "Path to a config file (yaml, json or toml)")
	flags.StringVar(&opts.tier, "tier", "", "Override the subscription tier (free, plus, pro, team)")
	flags.BoolVar(&opts.offline, "offline", false, "Treat the network as offline")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	flags.BoolVar(&opts.jsonOutput, "json", false, "Print results as JSON")

	cmd.AddCommand(
		newAddCmd(opts),
		newIndexCmd(opts),
		newSearchCmd(opts),
		newSimilarCmd(opts),
		newClusterCmd(opts),
		newCreditsCmd(opts),
	)
	return cmd
}

// loadProfile reads and validates the profile, applying flag overrides.
func (o *rootOptions) loadProfile() (*profile.Profile, error) {
	p, err := profile.Load(o.configFile)
	if err != nil {
		return nil, err
	}
	if o.tier != "" {
		p.Tier = o.tier
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// withApp builds the app for one command and closes it afterwards.
func (o *rootOptions) withApp(ctx context.Context, resultLimit int, fn func(*app) error) error {
	p, err := o.loadProfile()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, p, appOptions{offline: o.offline, resultLimit: resultLimit})
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}
