package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/hrygo/synapse/plugin/ai/timeout"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "SYNAPSE"

// Profile is the configuration of the retrieval engine and its CLI.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Data is the data directory
	Data string
	// DSN points to the sqlite node store. Defaults to <Data>/synapse_<mode>.db
	DSN string
	// RemoteDSN points to the PostgreSQL/pgvector remote index. Empty disables remote search.
	RemoteDSN string

	// Embedding model (any OpenAI-compatible endpoint, e.g. a local Ollama).
	EmbeddingBaseURL    string // SYNAPSE_EMBEDDING_BASE_URL (default: http://localhost:11434/v1)
	EmbeddingAPIKey     string // SYNAPSE_EMBEDDING_API_KEY
	EmbeddingModel      string // SYNAPSE_EMBEDDING_MODEL (default: nomic-embed-text)
	EmbeddingDimensions int    // SYNAPSE_EMBEDDING_DIMENSIONS (default: 768)
	EmbedConcurrency    int    // SYNAPSE_EMBED_CONCURRENCY (default: 10)

	// Embedding cache.
	CacheCapacity      int    // SYNAPSE_CACHE_CAPACITY (default: 1000)
	CacheRedisAddr     string // SYNAPSE_CACHE_REDIS_ADDR; empty disables the L2 tier
	CacheRedisPassword string // SYNAPSE_CACHE_REDIS_PASSWORD

	// Subscription and routing.
	Tier       string // SYNAPSE_TIER (free, plus, pro, team)
	UserAPIKey string // SYNAPSE_USER_API_KEY, user supplied remote credential (BYOK)
	Flags      Flags

	// Remote search.
	RemoteTopK    int           // SYNAPSE_REMOTE_TOP_K (default: 50)
	RemoteTimeout time.Duration // SYNAPSE_REMOTE_TIMEOUT (default: 5s)
	RemoteRPS     float64       // SYNAPSE_REMOTE_RPS (default: 5)

	// Index maintenance.
	IndexBatchSize int           // SYNAPSE_INDEX_BATCH_SIZE (default: 10)
	IndexInterval  time.Duration // SYNAPSE_INDEX_INTERVAL (default: 2m)
}

// Flags is a static feature flag set keyed by flag name.
type Flags map[string]bool

// IsEnabled reports whether the named flag is on.
func (f Flags) IsEnabled(name string) bool {
	return f[name]
}

// flagNames lists the flags read from configuration.
var flagNames = []string{"byok", "multimodal_search", "proxy_disabled"}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "dev")
	v.SetDefault("data", ".")
	v.SetDefault("embedding_base_url", "http://localhost:11434/v1")
	v.SetDefault("embedding_model", "nomic-embed-text")
	v.SetDefault("embedding_dimensions", 768)
	v.SetDefault("embed_concurrency", 10)
	v.SetDefault("cache_capacity", 1000)
	v.SetDefault("tier", "free")
	v.SetDefault("remote_top_k", 50)
	v.SetDefault("remote_timeout", timeout.RemoteQueryTimeout)
	v.SetDefault("remote_rps", 5.0)
	v.SetDefault("index_batch_size", 10)
	v.SetDefault("index_interval", 2*time.Minute)
	v.SetDefault("flag_byok", false)
	v.SetDefault("flag_multimodal_search", true)
	v.SetDefault("flag_proxy_disabled", false)
}

// Load builds a Profile from an optional config file and SYNAPSE_* environment variables.
// Environment variables override values from the file.
func Load(configFile string) (*Profile, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", configFile)
		}
	}

	p := &Profile{
		Mode:                v.GetString("mode"),
		Data:                v.GetString("data"),
		DSN:                 v.GetString("dsn"),
		RemoteDSN:           v.GetString("remote_dsn"),
		EmbeddingBaseURL:    v.GetString("embedding_base_url"),
		EmbeddingAPIKey:     v.GetString("embedding_api_key"),
		EmbeddingModel:      v.GetString("embedding_model"),
		EmbeddingDimensions: v.GetInt("embedding_dimensions"),
		EmbedConcurrency:    v.GetInt("embed_concurrency"),
		CacheCapacity:       v.GetInt("cache_capacity"),
		CacheRedisAddr:      v.GetString("cache_redis_addr"),
		CacheRedisPassword:  v.GetString("cache_redis_password"),
		Tier:                strings.ToLower(v.GetString("tier")),
		UserAPIKey:          v.GetString("user_api_key"),
		RemoteTopK:          v.GetInt("remote_top_k"),
		RemoteTimeout:       v.GetDuration("remote_timeout"),
		RemoteRPS:           v.GetFloat64("remote_rps"),
		IndexBatchSize:      v.GetInt("index_batch_size"),
		IndexInterval:       v.GetDuration("index_interval"),
		Flags:               make(Flags, len(flagNames)),
	}
	for _, name := range flagNames {
		p.Flags[name] = v.GetBool("flag_" + name)
	}

	return p, nil
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsRemoteEnabled returns true if a remote vector index is configured.
func (p *Profile) IsRemoteEnabled() bool {
	return p.RemoteDSN != ""
}

// HasUserCredential returns true if the user supplied their own remote credential.
func (p *Profile) HasUserCredential() bool {
	return strings.TrimSpace(p.UserAPIKey) != ""
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		absDir, err := filepath.Abs(dataDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	switch p.Tier {
	case "free", "plus", "pro", "team":
	default:
		return errors.Errorf("unknown subscription tier %q", p.Tier)
	}

	if p.EmbeddingModel == "" {
		return errors.New("embedding model is required")
	}
	if p.CacheCapacity <= 0 {
		p.CacheCapacity = 1000
	}
	if p.RemoteTopK <= 0 || p.RemoteTopK > 50 {
		p.RemoteTopK = 50
	}
	if p.IndexBatchSize <= 0 {
		p.IndexBatchSize = 10
	}
	if p.EmbedConcurrency <= 0 || p.EmbedConcurrency > 10 {
		p.EmbedConcurrency = 10
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.DSN == "" {
		dbFile := fmt.Sprintf("synapse_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	return nil
}
