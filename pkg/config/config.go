package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "LOGISTAR"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "LOGISTAR_DB_DSN"
	EnvDBHost = "LOGISTAR_DB_HOST"
	EnvDBUser = "LOGISTAR_DB_USER"
	EnvDBName = "LOGISTAR_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	WMS          WMSConfig
	Sync         SyncConfig
	Cache        CacheConfig
	Warehouses   WarehousesConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, err := cfg.Warehouses.Map(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LOGISTAR_APP_ENV" required:"true"`
	Port         string `envconfig:"LOGISTAR_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LOGISTAR_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LOGISTAR_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"LOGISTAR_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"LOGISTAR_DB_DSN"`
	Driver string `envconfig:"LOGISTAR_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LOGISTAR_DB_HOST"`
	LegacyPort     int    `envconfig:"LOGISTAR_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LOGISTAR_DB_USER"`
	LegacyPassword string `envconfig:"LOGISTAR_DB_PASSWORD"`
	LegacyName     string `envconfig:"LOGISTAR_DB_NAME"`
	LegacySSLMode  string `envconfig:"LOGISTAR_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LOGISTAR_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LOGISTAR_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LOGISTAR_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LOGISTAR_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LOGISTAR_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LOGISTAR_REDIS_ADDR"`
	Password     string        `envconfig:"LOGISTAR_REDIS_PASSWORD"`
	DB           int           `envconfig:"LOGISTAR_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LOGISTAR_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LOGISTAR_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LOGISTAR_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LOGISTAR_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LOGISTAR_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// WMSConfig points the fetcher at the upstream warehouse management API.
type WMSConfig struct {
	BaseURL        string        `envconfig:"LOGISTAR_WMS_BASE_URL" default:"http://hx.wms.yunwms.com/default/svc-for-api/web-service"`
	UserToken      string        `envconfig:"LOGISTAR_WMS_USER_TOKEN" required:"true"`
	PageSize       int           `envconfig:"LOGISTAR_WMS_PAGE_SIZE" default:"100"`
	Timezone       string        `envconfig:"LOGISTAR_WMS_TIMEZONE" default:"Asia/Shanghai"`
	MaxChunkMonths int           `envconfig:"LOGISTAR_WMS_MAX_CHUNK_MONTHS" default:"6"`
	HTTPTimeout    time.Duration `envconfig:"LOGISTAR_WMS_HTTP_TIMEOUT" default:"60s"`
}

type SyncConfig struct {
	BatchSize       int           `envconfig:"LOGISTAR_SYNC_BATCH_SIZE" default:"500"`
	DailyWindowDays int           `envconfig:"LOGISTAR_SYNC_DAILY_WINDOW_DAYS" default:"7"`
	Interval        time.Duration `envconfig:"LOGISTAR_SYNC_INTERVAL" default:"24h"`
}

type CacheConfig struct {
	TTL time.Duration `envconfig:"LOGISTAR_CACHE_TTL" default:"5m"`
}

// WarehousesConfig carries the static warehouse directory as a JSON map
// keyed by warehouse id: {"9":{"name":"LA-01","timezone":"America/Los_Angeles"}}.
type WarehousesConfig struct {
	MapJSON string `envconfig:"LOGISTAR_WAREHOUSE_MAP" default:"{}"`
}

// WarehouseInfo describes one configured warehouse.
type WarehouseInfo struct {
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

// Map parses the configured warehouse directory.
func (w WarehousesConfig) Map() (map[string]WarehouseInfo, error) {
	raw := strings.TrimSpace(w.MapJSON)
	if raw == "" {
		return map[string]WarehouseInfo{}, nil
	}
	out := map[string]WarehouseInfo{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("parsing warehouse map: %w", err)
	}
	return out, nil
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"LOGISTAR_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
