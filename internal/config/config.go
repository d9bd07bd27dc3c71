// Package config resolves the collector's settings from flags, the
// environment, an optional YAML file and built-in defaults, in that order.
// The result is a plain value passed into constructors.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"match-snapshots/internal/extract"
	"match-snapshots/internal/progress"
	"match-snapshots/internal/riot"
	"match-snapshots/internal/storage"

	"github.com/joho/godotenv"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment override, e.g. MATCHSNAP_TARGET.
	EnvPrefix = "MATCHSNAP"
	// APIKeyEnv is also accepted for the key, unprefixed.
	APIKeyEnv = "RIOT_API_KEY"

	configName = ".match-snapshots"
)

// Keys understood in the config file. Environment variables use the same
// names upper-cased with dots replaced by underscores.
const (
	KeyAPIKey      = "api_key"
	KeyPlatformURL = "platform_url"
	KeyRegionalURL = "regional_url"
	KeyLogLevel    = "loglevel"
	KeyWebhookURL  = "webhook_url"

	KeyTier             = "tier"
	KeyQueueType        = "queue_type"
	KeyQueue            = "queue"
	KeyTarget           = "target"
	KeyPlayersFile      = "players_file"
	KeyMatchesPerPlayer = "matches_per_player"
	KeyFlushEvery       = "flush_every"
	KeyMaxIdlePasses    = "max_idle_passes"
	KeyMinutes          = "minutes"
	KeyFilterMetadata   = "filter_metadata_by_queue"

	KeyShortLimit     = "rate.short_limit"
	KeyShortPeriod    = "rate.short_period"
	KeyLongLimit      = "rate.long_limit"
	KeyLongPeriod     = "rate.long_period"
	KeyMaxRetries     = "retry.max"
	KeyRequestTimeout = "retry.request_timeout"
	KeyFetchDeadline  = "retry.fetch_deadline"

	KeyBackend       = "store.backend"
	KeyProgressFile  = "store.progress_file"
	KeySnapshotsFile = "store.snapshots_file"
	KeyMetadataFile  = "store.metadata_file"
	KeyDSN           = "store.dsn"
	KeyAuthToken     = "store.auth_token"

	KeyArchiveDir      = "archive.dir"
	KeyArchiveMaxCount = "archive.max_matches_per_file"
	KeyArchiveMaxAge   = "archive.max_file_age"
	KeyArchiveCompress = "archive.compress"
)

// DotEnvPaths are tried in order; the first file that loads wins.
var DotEnvPaths = []string{".env", "../.env", "../../.env"}

// Config is the resolved configuration of one run.
type Config struct {
	APIKey      string
	PlatformURL string
	RegionalURL string
	LogLevel    string
	WebhookURL  string

	Tier             string
	QueueType        string
	Queue            int
	Target           int
	PlayersFile      string
	MatchesPerPlayer int
	FlushEvery       int
	MaxIdlePasses    int
	Minutes          []int
	FilterMetadata   bool

	Windows        []riot.Window
	MaxRetries     int
	RequestTimeout time.Duration
	FetchDeadline  time.Duration

	Store progress.Options

	ArchiveDir      string
	ArchiveMaxCount int
	ArchiveMaxAge   time.Duration
	ArchiveCompress bool
}

// SetDefaults registers the built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyPlatformURL, riot.DefaultPlatformBaseURL)
	v.SetDefault(KeyRegionalURL, riot.DefaultRegionalBaseURL)
	v.SetDefault(KeyLogLevel, "info")

	v.SetDefault(KeyTier, string(riot.TierChallenger))
	v.SetDefault(KeyQueueType, riot.QueueTypeRankedSolo)
	v.SetDefault(KeyQueue, extract.DefaultQueue)
	v.SetDefault(KeyTarget, 10000)
	v.SetDefault(KeyMatchesPerPlayer, 20)
	v.SetDefault(KeyFlushEvery, 5)
	v.SetDefault(KeyMaxIdlePasses, 0)
	v.SetDefault(KeyMinutes, extract.DefaultMinutes)
	v.SetDefault(KeyFilterMetadata, true)

	v.SetDefault(KeyShortLimit, riot.DefaultWindows[0].Limit)
	v.SetDefault(KeyShortPeriod, riot.DefaultWindows[0].Period)
	v.SetDefault(KeyLongLimit, riot.DefaultWindows[1].Limit)
	v.SetDefault(KeyLongPeriod, riot.DefaultWindows[1].Period)
	v.SetDefault(KeyMaxRetries, 0)
	v.SetDefault(KeyRequestTimeout, 30*time.Second)
	v.SetDefault(KeyFetchDeadline, time.Duration(0))

	v.SetDefault(KeyBackend, progress.BackendFile)
	v.SetDefault(KeyProgressFile, progress.DefaultProgressFile)
	v.SetDefault(KeySnapshotsFile, progress.DefaultSnapshotsFile)
	v.SetDefault(KeyMetadataFile, progress.DefaultMetadataFile)

	v.SetDefault(KeyArchiveMaxCount, storage.DefaultMaxMatchesPerFile)
	v.SetDefault(KeyArchiveMaxAge, storage.DefaultMaxFileAge)
	v.SetDefault(KeyArchiveCompress, true)
}

// NewViper returns a viper instance with defaults, environment bindings
// and, if one exists, the config file loaded. An empty cfgFile looks for
// $HOME/.match-snapshots.yaml; a missing default file is not an error.
func NewViper(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv(KeyAPIKey, EnvPrefix+"_API_KEY", APIKeyEnv); err != nil {
		return nil, err
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return nil, fmt.Errorf("locating home directory: %w", err)
		}
		v.AddConfigPath(home)
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	return v, nil
}

// LoadDotEnv loads the first .env file found in paths into the process
// environment, without overriding variables that are already set. It
// returns the path it loaded, or "" when none was found.
func LoadDotEnv(paths ...string) string {
	if len(paths) == 0 {
		paths = DotEnvPaths
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err == nil {
			return path
		}
	}
	return ""
}

// Load reads a Config out of v.
func Load(v *viper.Viper) (*Config, error) {
	minutes, err := intList(v.Get(KeyMinutes))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", KeyMinutes, err)
	}
	minutes = append([]int(nil), minutes...)

	cfg := &Config{
		APIKey:      strings.Trim(strings.TrimSpace(v.GetString(KeyAPIKey)), `"`),
		PlatformURL: v.GetString(KeyPlatformURL),
		RegionalURL: v.GetString(KeyRegionalURL),
		LogLevel:    v.GetString(KeyLogLevel),
		WebhookURL:  v.GetString(KeyWebhookURL),

		Tier:             v.GetString(KeyTier),
		QueueType:        v.GetString(KeyQueueType),
		Queue:            v.GetInt(KeyQueue),
		Target:           v.GetInt(KeyTarget),
		PlayersFile:      v.GetString(KeyPlayersFile),
		MatchesPerPlayer: v.GetInt(KeyMatchesPerPlayer),
		FlushEvery:       v.GetInt(KeyFlushEvery),
		MaxIdlePasses:    v.GetInt(KeyMaxIdlePasses),
		Minutes:          minutes,
		FilterMetadata:   v.GetBool(KeyFilterMetadata),

		Windows: []riot.Window{
			{Limit: v.GetInt(KeyShortLimit), Period: v.GetDuration(KeyShortPeriod)},
			{Limit: v.GetInt(KeyLongLimit), Period: v.GetDuration(KeyLongPeriod)},
		},
		MaxRetries:     v.GetInt(KeyMaxRetries),
		RequestTimeout: v.GetDuration(KeyRequestTimeout),
		FetchDeadline:  v.GetDuration(KeyFetchDeadline),

		Store: progress.Options{
			Backend:       v.GetString(KeyBackend),
			ProgressFile:  v.GetString(KeyProgressFile),
			SnapshotsFile: v.GetString(KeySnapshotsFile),
			MetadataFile:  v.GetString(KeyMetadataFile),
			DSN:           v.GetString(KeyDSN),
			AuthToken:     v.GetString(KeyAuthToken),
		},

		ArchiveDir:      v.GetString(KeyArchiveDir),
		ArchiveMaxCount: v.GetInt(KeyArchiveMaxCount),
		ArchiveMaxAge:   v.GetDuration(KeyArchiveMaxAge),
		ArchiveCompress: v.GetBool(KeyArchiveCompress),
	}
	if cfg.ArchiveDir != "" {
		if expanded, err := homedir.Expand(cfg.ArchiveDir); err == nil {
			cfg.ArchiveDir = filepath.Clean(expanded)
		}
	}
	return cfg, nil
}

// Validate checks the settings a collection run depends on.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("API key not set (use --api-key, %s or %s_API_KEY)", APIKeyEnv, EnvPrefix)
	}
	if c.Target <= 0 {
		return fmt.Errorf("target must be positive, got %d", c.Target)
	}
	if _, err := riot.ParseTier(c.Tier); err != nil {
		return err
	}
	if c.MatchesPerPlayer <= 0 || c.MatchesPerPlayer > 100 {
		return fmt.Errorf("matches per player must be in 1..100, got %d", c.MatchesPerPlayer)
	}
	if c.FlushEvery <= 0 {
		return fmt.Errorf("flush interval must be positive, got %d", c.FlushEvery)
	}
	if len(c.Minutes) == 0 {
		return errors.New("at least one snapshot minute is required")
	}
	for _, m := range c.Minutes {
		if m <= 0 {
			return fmt.Errorf("snapshot minute must be positive, got %d", m)
		}
	}
	for _, w := range c.Windows {
		if w.Limit <= 0 || w.Period <= 0 {
			return fmt.Errorf("invalid rate window %d/%s", w.Limit, w.Period)
		}
	}
	switch strings.ToLower(c.Store.Backend) {
	case progress.BackendLibSQL, progress.BackendPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store backend %s needs a DSN", c.Store.Backend)
		}
	}
	return nil
}

// ClientConfig returns the Riot client settings.
func (c *Config) ClientConfig() riot.ClientConfig {
	retry := riot.DefaultRetryPolicy()
	retry.MaxRetries = c.MaxRetries
	return riot.ClientConfig{
		APIKey:          c.APIKey,
		PlatformBaseURL: c.PlatformURL,
		RegionalBaseURL: c.RegionalURL,
		Windows:         c.Windows,
		Retry:           retry,
		RequestTimeout:  c.RequestTimeout,
		FetchDeadline:   c.FetchDeadline,
	}
}

// ExtractOptions returns the row derivation settings.
func (c *Config) ExtractOptions() extract.Options {
	return extract.Options{
		Minutes:               c.Minutes,
		Queue:                 c.Queue,
		FilterMetadataByQueue: c.FilterMetadata,
	}
}

// RotatorConfig returns the raw archive settings.
func (c *Config) RotatorConfig() storage.RotatorConfig {
	return storage.RotatorConfig{
		MaxMatchesPerFile: c.ArchiveMaxCount,
		MaxFileAge:        c.ArchiveMaxAge,
		CompressOnRotate:  c.ArchiveCompress,
	}
}

// intList accepts a YAML list or a comma separated string ("10,15,20").
func intList(raw interface{}) ([]int, error) {
	if s, ok := raw.(string); ok {
		var out []int
		for _, part := range strings.Split(s, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			n, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("bad value %q", part)
			}
			out = append(out, n)
		}
		return out, nil
	}
	return cast.ToIntSliceE(raw)
}
