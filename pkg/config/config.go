package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/left-curve/dango-sdk-go/pkg/broadcaster"
	redisStore "github.com/left-curve/dango-sdk-go/pkg/persistence/redis"
	"github.com/left-curve/dango-sdk-go/pkg/pipeline"
	"github.com/left-curve/dango-sdk-go/pkg/transport"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for SDK configuration
const (
	EnvDangoTransport       = "DANGO_TRANSPORT"
	EnvDangoRPCURL          = "DANGO_RPC_URL"
	EnvDangoIndexerURL      = "DANGO_INDEXER_URL"
	EnvDangoChainID         = "DANGO_CHAIN_ID"
	EnvDangoRequestTimeout  = "DANGO_REQUEST_TIMEOUT"
	EnvDangoBatchWindow     = "DANGO_BATCH_WINDOW"
	EnvDangoBatchMaxSize    = "DANGO_BATCH_MAX_SIZE"
	EnvDangoRateLimit       = "DANGO_RATE_LIMIT"
	EnvDangoGasScale        = "DANGO_GAS_SCALE"
	EnvDangoGasFlatIncrease = "DANGO_GAS_FLAT_INCREASE"
	EnvDangoConfirmAttempts = "DANGO_CONFIRM_ATTEMPTS"
	EnvDangoConfirmInterval = "DANGO_CONFIRM_INTERVAL"
	EnvDangoPersistence     = "DANGO_PERSISTENCE"
	EnvDangoDataPath        = "DANGO_DATA_PATH"
	EnvDangoRedisAddress    = "DANGO_REDIS_ADDRESS"
	EnvDangoRedisPassword   = "DANGO_REDIS_PASSWORD"
	EnvDangoRedisDB         = "DANGO_REDIS_DB"
	EnvDangoKeyringDir      = "DANGO_KEYRING_DIR"
	EnvDangoDebug           = "DANGO_DEBUG"
)

type PersistenceType string

func (p PersistenceType) String() string {
	return string(p)
}

const (
	PersistenceTypeMemory PersistenceType = "memory"
	PersistenceTypeBadger PersistenceType = "badger"
	PersistenceTypeRedis  PersistenceType = "redis"
)

const (
	DefaultRPCURL         = "http://localhost:26657"
	DefaultIndexerURL     = "http://localhost:8080/graphql"
	DefaultRequestTimeout = 30 * time.Second
	DefaultBatchWindow    = 20 * time.Millisecond
	DefaultKeyringDir     = ".dango/keys"
)

type PersistenceConfig struct {
	Type PersistenceType `json:"type" yaml:"type"`
	// DataPath is the badger directory.
	DataPath string                  `json:"dataPath" yaml:"dataPath"`
	Redis    *redisStore.RedisConfig `json:"redis,omitempty" yaml:"redis,omitempty"`
}

// SDKConfig is everything needed to wire a transport, pipeline and
// broadcaster.
type SDKConfig struct {
	TransportKind transport.Kind `json:"transport" yaml:"transport"`
	RpcUrl        string         `json:"rpcUrl" yaml:"rpcUrl"`
	IndexerUrl    string         `json:"indexerUrl" yaml:"indexerUrl"`
	// ChainID skips the status query when set.
	ChainID string `json:"chainId" yaml:"chainId"`

	RequestTimeout time.Duration `json:"requestTimeout" yaml:"requestTimeout"`
	BatchWindow    time.Duration `json:"batchWindow" yaml:"batchWindow"`
	// BatchMaxSize of 0 disables batching on the node transport.
	BatchMaxSize int     `json:"batchMaxSize" yaml:"batchMaxSize"`
	RateLimit    float64 `json:"rateLimit" yaml:"rateLimit"`

	GasScale        float64 `json:"gasScale" yaml:"gasScale"`
	GasFlatIncrease uint64  `json:"gasFlatIncrease" yaml:"gasFlatIncrease"`

	ConfirmAttempts int           `json:"confirmAttempts" yaml:"confirmAttempts"`
	ConfirmInterval time.Duration `json:"confirmInterval" yaml:"confirmInterval"`

	Persistence PersistenceConfig `json:"persistence" yaml:"persistence"`
	KeyringDir  string            `json:"keyringDir" yaml:"keyringDir"`

	Debug bool `json:"debug" yaml:"debug"`
}

func DefaultSDKConfig() *SDKConfig {
	return &SDKConfig{
		TransportKind:   transport.KindNode,
		RpcUrl:          DefaultRPCURL,
		IndexerUrl:      DefaultIndexerURL,
		RequestTimeout:  DefaultRequestTimeout,
		BatchWindow:     DefaultBatchWindow,
		GasScale:        pipeline.DefaultGasScale,
		GasFlatIncrease: pipeline.DefaultGasFlatIncrease,
		ConfirmAttempts: broadcaster.DefaultConfirmAttempts,
		ConfirmInterval: broadcaster.DefaultConfirmInterval,
		Persistence: PersistenceConfig{
			Type: PersistenceTypeMemory,
		},
		KeyringDir: DefaultKeyringDir,
	}
}

// LoadSDKConfigFile reads a YAML (or JSON) file over the defaults.
func LoadSDKConfigFile(path string) (*SDKConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg := DefaultSDKConfig()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// NewSDKConfigFromEnv overlays DANGO_* environment variables on the
// defaults. Unset variables keep their default.
func NewSDKConfigFromEnv() (*SDKConfig, error) {
	return ApplyEnv(DefaultSDKConfig(), os.LookupEnv)
}

// ApplyEnv overlays variables returned by lookup onto cfg.
func ApplyEnv(cfg *SDKConfig, lookup func(string) (string, bool)) (*SDKConfig, error) {
	var allErrors field.ErrorList

	str := func(env string, dst *string) {
		if v, ok := lookup(env); ok {
			*dst = v
		}
	}
	dur := func(env string, dst *time.Duration) {
		if v, ok := lookup(env); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				allErrors = append(allErrors, field.Invalid(field.NewPath(env), v, "must be a duration"))
				return
			}
			*dst = d
		}
	}
	integer := func(env string, dst *int) {
		if v, ok := lookup(env); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				allErrors = append(allErrors, field.Invalid(field.NewPath(env), v, "must be an integer"))
				return
			}
			*dst = n
		}
	}
	float := func(env string, dst *float64) {
		if v, ok := lookup(env); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				allErrors = append(allErrors, field.Invalid(field.NewPath(env), v, "must be a number"))
				return
			}
			*dst = f
		}
	}

	if v, ok := lookup(EnvDangoTransport); ok {
		cfg.TransportKind = transport.Kind(v)
	}
	str(EnvDangoRPCURL, &cfg.RpcUrl)
	str(EnvDangoIndexerURL, &cfg.IndexerUrl)
	str(EnvDangoChainID, &cfg.ChainID)
	dur(EnvDangoRequestTimeout, &cfg.RequestTimeout)
	dur(EnvDangoBatchWindow, &cfg.BatchWindow)
	integer(EnvDangoBatchMaxSize, &cfg.BatchMaxSize)
	float(EnvDangoRateLimit, &cfg.RateLimit)
	float(EnvDangoGasScale, &cfg.GasScale)
	if v, ok := lookup(EnvDangoGasFlatIncrease); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			allErrors = append(allErrors, field.Invalid(field.NewPath(EnvDangoGasFlatIncrease), v, "must be an unsigned integer"))
		} else {
			cfg.GasFlatIncrease = n
		}
	}
	integer(EnvDangoConfirmAttempts, &cfg.ConfirmAttempts)
	dur(EnvDangoConfirmInterval, &cfg.ConfirmInterval)

	if v, ok := lookup(EnvDangoPersistence); ok {
		cfg.Persistence.Type = PersistenceType(v)
	}
	str(EnvDangoDataPath, &cfg.Persistence.DataPath)
	if v, ok := lookup(EnvDangoRedisAddress); ok {
		if cfg.Persistence.Redis == nil {
			cfg.Persistence.Redis = &redisStore.RedisConfig{}
		}
		cfg.Persistence.Redis.Address = v
		str(EnvDangoRedisPassword, &cfg.Persistence.Redis.Password)
		integer(EnvDangoRedisDB, &cfg.Persistence.Redis.DB)
	}
	str(EnvDangoKeyringDir, &cfg.KeyringDir)
	if v, ok := lookup(EnvDangoDebug); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			allErrors = append(allErrors, field.Invalid(field.NewPath(EnvDangoDebug), v, "must be a boolean"))
		} else {
			cfg.Debug = b
		}
	}

	if len(allErrors) > 0 {
		return nil, allErrors.ToAggregate()
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c *SDKConfig) Validate() error {
	var allErrors field.ErrorList

	switch c.TransportKind {
	case transport.KindNode:
		if c.RpcUrl == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("rpcUrl"), "rpcUrl is required for the node transport"))
		}
	case transport.KindIndexer:
		if c.IndexerUrl == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("indexerUrl"), "indexerUrl is required for the indexer transport"))
		}
		if c.BatchMaxSize > 0 {
			allErrors = append(allErrors, field.Forbidden(field.NewPath("batchMaxSize"), "batching is only offered on the node transport"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("transport"), c.TransportKind, []string{string(transport.KindNode), string(transport.KindIndexer)}))
	}

	if c.RequestTimeout < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("requestTimeout"), c.RequestTimeout.String(), "must not be negative"))
	}
	if c.BatchMaxSize < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("batchMaxSize"), c.BatchMaxSize, "must not be negative"))
	}
	if c.BatchMaxSize > 0 && c.BatchWindow <= 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("batchWindow"), c.BatchWindow.String(), "must be positive when batching"))
	}
	if c.RateLimit < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("rateLimit"), c.RateLimit, "must not be negative"))
	}
	if c.GasScale <= 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("gasScale"), c.GasScale, "must be positive"))
	}
	if c.ConfirmAttempts < 1 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("confirmAttempts"), c.ConfirmAttempts, "must be at least 1"))
	}
	if c.ConfirmInterval < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("confirmInterval"), c.ConfirmInterval.String(), "must not be negative"))
	}

	persistencePath := field.NewPath("persistence")
	switch c.Persistence.Type {
	case PersistenceTypeMemory:
	case PersistenceTypeBadger:
		if c.Persistence.DataPath == "" {
			allErrors = append(allErrors, field.Required(persistencePath.Child("dataPath"), "dataPath is required for badger"))
		}
	case PersistenceTypeRedis:
		if c.Persistence.Redis == nil || c.Persistence.Redis.Address == "" {
			allErrors = append(allErrors, field.Required(persistencePath.Child("redis", "address"), "redis address is required"))
		} else if c.Persistence.Redis.DB < 0 || c.Persistence.Redis.DB > 15 {
			allErrors = append(allErrors, field.Invalid(persistencePath.Child("redis", "db"), c.Persistence.Redis.DB, "must be between 0 and 15"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(persistencePath.Child("type"), c.Persistence.Type,
			[]string{PersistenceTypeMemory.String(), PersistenceTypeBadger.String(), PersistenceTypeRedis.String()}))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

func (c *SDKConfig) PipelineConfig() *pipeline.Config {
	return &pipeline.Config{
		ChainID:         c.ChainID,
		GasScale:        c.GasScale,
		GasFlatIncrease: c.GasFlatIncrease,
	}
}

func (c *SDKConfig) BroadcasterConfig() *broadcaster.Config {
	return &broadcaster.Config{
		ConfirmAttempts: c.ConfirmAttempts,
		ConfirmInterval: c.ConfirmInterval,
	}
}
