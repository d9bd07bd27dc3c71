package main

import (
	"context"
	"fmt"
	"os"

	"match-snapshots/internal/config"
	"match-snapshots/internal/logging"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var cfgFile string

// Resolved in PersistentPreRunE before any subcommand runs.
var (
	cfg *config.Config
	log *logrus.Logger
)

// flagKeys maps command line flags onto config keys. Flags not listed here
// are command-local and never reach viper.
var flagKeys = map[string]string{
	"api-key":            config.KeyAPIKey,
	"loglevel":           config.KeyLogLevel,
	"webhook-url":        config.KeyWebhookURL,
	"platform-url":       config.KeyPlatformURL,
	"regional-url":       config.KeyRegionalURL,
	"tier":               config.KeyTier,
	"target":             config.KeyTarget,
	"players-file":       config.KeyPlayersFile,
	"matches-per-player": config.KeyMatchesPerPlayer,
	"flush-every":        config.KeyFlushEvery,
	"max-idle-passes":    config.KeyMaxIdlePasses,
	"queue":              config.KeyQueue,
	"minutes":            config.KeyMinutes,
	"backend":            config.KeyBackend,
	"dsn":                config.KeyDSN,
	"progress":           config.KeyProgressFile,
	"snapshots":          config.KeySnapshotsFile,
	"metadata":           config.KeyMetadataFile,
	"archive":            config.KeyArchiveDir,
}

var rootCmd = &cobra.Command{
	Use:   "collector",
	Short: "Collects ranked match snapshots from the Riot API.",
	Long: `collector samples apex-tier ranked players, downloads their recent matches
and writes per-minute team differentials plus one metadata row per match.

Runs checkpoint every few matches and resume from the progress record, so
an interrupted run can simply be started again.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.match-snapshots.yaml)")
	pf.StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	pf.String("api-key", "", "Riot API key (default $RIOT_API_KEY)")
	pf.String("platform-url", "", "platform API host for league-v4")
	pf.String("regional-url", "", "regional API host for match-v5")

	rootCmd.AddCommand(collectCmd, ladderCmd, validateKeyCmd, extractCmd)
}

// initConfig reads .env, the config file and the environment, layers the
// flags that were set on top and builds the logger.
func initConfig(cmd *cobra.Command, _ []string) error {
	envPath := config.LoadDotEnv()

	v, err := config.NewViper(cfgFile)
	if err != nil {
		return err
	}
	if err := bindFlags(cmd.Flags(), v); err != nil {
		return err
	}

	cfg, err = config.Load(v)
	if err != nil {
		return err
	}
	log, err = logging.New(cfg.LogLevel, os.Stderr)
	if err != nil {
		return err
	}

	if envPath != "" {
		log.Debugf("Loaded .env from: %s", envPath)
	}
	if used := v.ConfigFileUsed(); used != "" {
		log.Debugf("Using config file: %s", used)
	}
	return nil
}

func bindFlags(fs *pflag.FlagSet, v *viper.Viper) error {
	var bindErr error
	fs.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || bindErr != nil {
			return
		}
		// Unset flags must not shadow the file or environment with their
		// zero defaults, so only changed flags are bound.
		if f.Changed {
			bindErr = v.BindPFlag(key, f)
		}
	})
	return bindErr
}
