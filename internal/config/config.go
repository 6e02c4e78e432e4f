package config

import (
	"errors"
	"strings"
	"time"

	"github.com/khanghh/blogapi/params"
	"github.com/spf13/viper"
)

const (
	DefaultListenAddr   = ":3000"
	DefaultCacheBackend = "redis"
)

var (
	ErrMissingSigningKey    = errors.New("jwt.signingKey or jwt.privateKeyFile is required")
	ErrMissingEncryptionKey = errors.New("jwt.encryptionKey is required")
	ErrUnknownCacheBackend  = errors.New("cache.backend must be redis or memory")
)

type MySQLConfig struct {
	Dsn             string        `mapstructure:"dsn"`
	TablePrefix     string        `mapstructure:"tablePrefix"`
	Replicas        []string      `mapstructure:"replicas"`
	MaxIdleConns    int           `mapstructure:"maxIdleConns"`
	MaxOpenConns    int           `mapstructure:"maxOpenConns"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"`
}

type RedisConfig struct {
	URL         string `mapstructure:"url"`
	PoolSize    int    `mapstructure:"poolSize"`
	ClusterMode bool   `mapstructure:"clusterMode"`
}

type CacheConfig struct {
	Backend string `mapstructure:"backend"`
}

type JWTConfig struct {
	SigningKey     string `mapstructure:"signingKey"`     // HS256 secret
	PrivateKeyFile string `mapstructure:"privateKeyFile"` // RS256 PEM key, takes precedence over signingKey
	EncryptionKey  string `mapstructure:"encryptionKey"`
	Issuer         string `mapstructure:"issuer"` // overrides the request origin when set
}

type TokenConfig struct {
	AccessTokenTTL time.Duration `mapstructure:"accessTokenTTL"`
	PurgeInterval  time.Duration `mapstructure:"purgeInterval"`
	BindClientIP   bool          `mapstructure:"bindClientIP"`
}

type ScopeConfig struct {
	Catalog    []string `mapstructure:"catalog"`
	Restricted []string `mapstructure:"restricted"`
}

type OAuthConfig struct {
	ClientID     string   `mapstructure:"clientID"`
	ClientSecret string   `mapstructure:"clientSecret"`
	RedirectURL  string   `mapstructure:"redirectURL"`
	AuthURL      string   `mapstructure:"authURL"`
	TokenURL     string   `mapstructure:"tokenURL"`
	UserInfoURL  string   `mapstructure:"userInfoURL"`
	Scopes       []string `mapstructure:"scopes"`
}

func (c OAuthConfig) Enabled() bool {
	return c.ClientID != "" && c.TokenURL != "" && c.UserInfoURL != ""
}

type Config struct {
	Debug           bool        `mapstructure:"debug"`
	ListenAddr      string      `mapstructure:"listenAddr"`
	HealthCheckAddr string      `mapstructure:"healthCheckAddr"`
	AllowOrigins    []string    `mapstructure:"allowOrigins"`
	MySQL           MySQLConfig `mapstructure:"mysql"`
	Redis           RedisConfig `mapstructure:"redis"`
	Cache           CacheConfig `mapstructure:"cache"`
	JWT             JWTConfig   `mapstructure:"jwt"`
	Token           TokenConfig `mapstructure:"token"`
	Scopes          ScopeConfig `mapstructure:"scopes"`
	OAuth           OAuthConfig `mapstructure:"oauth"`
}

func (c *Config) Sanitize() error {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.HealthCheckAddr == "" {
		c.HealthCheckAddr = params.HealthCheckServerAddr
	}
	if len(c.AllowOrigins) == 0 {
		c.AllowOrigins = []string{"*"}
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = DefaultCacheBackend
	}
	if c.Cache.Backend != "redis" && c.Cache.Backend != "memory" {
		return ErrUnknownCacheBackend
	}
	if c.Token.AccessTokenTTL <= 0 {
		c.Token.AccessTokenTTL = params.AccessTokenExpiration
	}
	if c.Token.PurgeInterval <= 0 {
		c.Token.PurgeInterval = params.TokenPurgeInterval
	}
	if c.JWT.SigningKey == "" && c.JWT.PrivateKeyFile == "" {
		return ErrMissingSigningKey
	}
	if c.JWT.EncryptionKey == "" {
		return ErrMissingEncryptionKey
	}
	return nil
}

func LoadConfig(filename string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(filename)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("token.bindClientIP", true)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Sanitize(); err != nil {
		return nil, err
	}
	return &config, nil
}
