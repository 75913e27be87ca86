package config

import (
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github/chapool/cross-dapp/internal/util"
)

const ModuleName = "cross-dapp"

type LoggerServer struct {
	Level              zerolog.Level `mapstructure:"level"`
	RequestLevel       zerolog.Level `mapstructure:"request_level"`
	PrettyPrintConsole bool          `mapstructure:"pretty_print_console"`
}

// Project is the metadata the wallet shows when asked to approve a session.
type Project struct {
	ID             string   `mapstructure:"id"`
	Name           string   `mapstructure:"name"`
	Description    string   `mapstructure:"description"`
	URL            string   `mapstructure:"url"`
	Icons          []string `mapstructure:"icons"`
	RedirectNative string   `mapstructure:"redirect_native"`
}

type WalletConnect struct {
	BridgeURL        string        `mapstructure:"bridge_url"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	AvailabilityPoll time.Duration `mapstructure:"availability_poll"`
}

type Chains struct {
	// CatalogFile points to a TOML chain catalog. The built-in catalog is used when empty.
	CatalogFile string `mapstructure:"catalog_file"`
	Default     string `mapstructure:"default"`
}

type RPC struct {
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	CallTimeout       time.Duration `mapstructure:"call_timeout"`
}

type Poll struct {
	Interval        time.Duration `mapstructure:"interval"`
	MaxWait         time.Duration `mapstructure:"max_wait"`
	MaxQueryRetries uint64        `mapstructure:"max_query_retries"`
	BackoffInitial  time.Duration `mapstructure:"backoff_initial"`
	BackoffMax      time.Duration `mapstructure:"backoff_max"`
}

type Redis struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type DevSigner struct {
	Enabled  bool   `mapstructure:"enabled"`
	Mnemonic string `mapstructure:"mnemonic"`
	// KeystoreFile holds the mnemonic encrypted as keystore v3; it wins over Mnemonic.
	KeystoreFile     string `mapstructure:"keystore_file"`
	KeystorePassword string `mapstructure:"keystore_password"`
	Passphrase       string `mapstructure:"passphrase"`
	DerivationPath   string `mapstructure:"derivation_path"`
}

type Management struct {
	ListenAddress string `mapstructure:"listen_address"`
	MetricsPath   string `mapstructure:"metrics_path"`
}

// Dapp holds the complete configuration of the sample dapp.
type Dapp struct {
	Logger        LoggerServer  `mapstructure:"logger"`
	Project       Project       `mapstructure:"project"`
	WalletConnect WalletConnect `mapstructure:"walletconnect"`
	Chains        Chains        `mapstructure:"chains"`
	RPC           RPC           `mapstructure:"rpc"`
	Poll          Poll          `mapstructure:"poll"`
	Redis         Redis         `mapstructure:"redis"`
	DevSigner     DevSigner     `mapstructure:"dev_signer"`
	Management    Management    `mapstructure:"management"`
}

const (
	defaultPollInterval   = 2 * time.Second
	defaultPollMaxWait    = 30 * time.Second
	defaultQueryRetries   = 3
	defaultBackoffInitial = 250 * time.Millisecond
	defaultBackoffMax     = 2 * time.Second
)

// DefaultServiceConfigFromEnv returns the dapp config with values taken from
// the environment or their defaults.
func DefaultServiceConfigFromEnv() Dapp {
	return Dapp{
		Logger: LoggerServer{
			Level:              util.LogLevelFromString(util.GetEnv("DAPP_LOGGER_LEVEL", zerolog.InfoLevel.String())),
			RequestLevel:       util.LogLevelFromString(util.GetEnv("DAPP_LOGGER_REQUEST_LEVEL", zerolog.DebugLevel.String())),
			PrettyPrintConsole: util.GetEnvAsBool("DAPP_LOGGER_PRETTY_PRINT_CONSOLE", false),
		},
		Project: Project{
			ID:             util.GetEnv("DAPP_PROJECT_ID", "ef21cf313a63dbf63f2e9e04f3614029"),
			Name:           util.GetEnv("DAPP_PROJECT_NAME", "CrossSdk Go"),
			Description:    util.GetEnv("DAPP_PROJECT_DESCRIPTION", "CrossSdk Go Sample"),
			URL:            util.GetEnv("DAPP_PROJECT_URL", "https://to.nexus"),
			Icons:          util.GetEnvAsStringArr("DAPP_PROJECT_ICONS", []string{"https://contents.crosstoken.io/wallet/token/images/CROSSx.svg"}),
			RedirectNative: util.GetEnv("DAPP_PROJECT_REDIRECT_NATIVE", "cross-sdk-go-sample://wc"),
		},
		WalletConnect: WalletConnect{
			BridgeURL:        util.GetEnv("DAPP_WALLETCONNECT_BRIDGE_URL", ""),
			ReadTimeout:      util.GetEnvAsDuration("DAPP_WALLETCONNECT_READ_TIMEOUT", 5*time.Minute),
			RequestTimeout:   util.GetEnvAsDuration("DAPP_WALLETCONNECT_REQUEST_TIMEOUT", 2*time.Minute),
			AvailabilityPoll: util.GetEnvAsDuration("DAPP_WALLETCONNECT_AVAILABILITY_POLL", 200*time.Millisecond),
		},
		Chains: Chains{
			CatalogFile: util.GetEnv("DAPP_CHAINS_CATALOG_FILE", ""),
			Default:     util.GetEnv("DAPP_CHAINS_DEFAULT", "eip155:612044"),
		},
		RPC: RPC{
			RequestsPerSecond: util.GetEnvAsFloat("DAPP_RPC_REQUESTS_PER_SECOND", 10),
			Burst:             util.GetEnvAsInt("DAPP_RPC_BURST", 5),
			CallTimeout:       util.GetEnvAsDuration("DAPP_RPC_CALL_TIMEOUT", 10*time.Second),
		},
		Poll: Poll{
			Interval:        util.GetEnvAsDuration("DAPP_POLL_INTERVAL", defaultPollInterval),
			MaxWait:         util.GetEnvAsDuration("DAPP_POLL_MAX_WAIT", defaultPollMaxWait),
			MaxQueryRetries: uint64(util.GetEnvAsInt("DAPP_POLL_MAX_QUERY_RETRIES", defaultQueryRetries)), //nolint:gosec
			BackoffInitial:  util.GetEnvAsDuration("DAPP_POLL_BACKOFF_INITIAL", defaultBackoffInitial),
			BackoffMax:      util.GetEnvAsDuration("DAPP_POLL_BACKOFF_MAX", defaultBackoffMax),
		},
		Redis: Redis{
			Enabled:  util.GetEnvAsBool("DAPP_REDIS_ENABLED", false),
			Addr:     util.GetEnv("DAPP_REDIS_ADDR", "localhost:6379"),
			Password: util.GetEnv("DAPP_REDIS_PASSWORD", ""),
			DB:       util.GetEnvAsInt("DAPP_REDIS_DB", 0),
			Prefix:   util.GetEnv("DAPP_REDIS_PREFIX", "cross-dapp:tx:"),
			TTL:      util.GetEnvAsDuration("DAPP_REDIS_TTL", 24*time.Hour),
		},
		DevSigner: DevSigner{
			Enabled:          util.GetEnvAsBool("DAPP_DEV_SIGNER_ENABLED", false),
			Mnemonic:         util.GetEnv("DAPP_DEV_SIGNER_MNEMONIC", ""),
			KeystoreFile:     util.GetEnv("DAPP_DEV_SIGNER_KEYSTORE_FILE", ""),
			KeystorePassword: util.GetEnv("DAPP_DEV_SIGNER_KEYSTORE_PASSWORD", ""),
			Passphrase:       util.GetEnv("DAPP_DEV_SIGNER_PASSPHRASE", ""),
			DerivationPath:   util.GetEnv("DAPP_DEV_SIGNER_DERIVATION_PATH", "m/44'/60'/0'/0/0"),
		},
		Management: Management{
			ListenAddress: util.GetEnv("DAPP_MANAGEMENT_LISTEN_ADDRESS", ":8080"),
			MetricsPath:   util.GetEnv("DAPP_MANAGEMENT_METRICS_PATH", "/metrics"),
		},
	}
}

// Load reads path (yaml, toml or json, chosen by extension) on top of the
// environment defaults. An empty path returns the defaults unchanged.
func Load(path string) (Dapp, error) {
	cfg := DefaultServiceConfigFromEnv()
	if path == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("DAPP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return cfg, errors.Wrapf(err, "failed to read config file %s", path)
	}

	hooks := mapstructure.ComposeDecodeHookFunc(
		util.ZerologLevelHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hooks)); err != nil {
		return cfg, errors.Wrap(err, "failed to decode config")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks the settings that would otherwise fail deep inside a poll or a session.
func (c Dapp) Validate() error {
	if c.Poll.Interval <= 0 {
		return errors.New("poll.interval must be positive")
	}
	if c.Poll.MaxWait < c.Poll.Interval {
		return errors.New("poll.max_wait must not be shorter than poll.interval")
	}
	if c.Project.ID == "" {
		return errors.New("project.id is required")
	}
	if c.DevSigner.Enabled && c.DevSigner.Mnemonic == "" && c.DevSigner.KeystoreFile == "" {
		return errors.New("dev_signer.mnemonic or dev_signer.keystore_file is required when the dev signer is enabled")
	}

	return nil
}
