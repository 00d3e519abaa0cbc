package config

import (
	"os"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ConfigFileEnv は任意のYAML設定ファイルのパスを指定する環境変数名。
const ConfigFileEnv = "CONFIG_FILE"

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして扱う。
// キーは環境変数名を小文字にしたもので、YAMLファイルでも同じキーを使う。
type Config struct {
	// Database
	DatabaseURL    string        `koanf:"database_url" validate:"required"`
	DBMaxOpenConns int           `koanf:"db_max_open_conns" validate:"min=1"`
	DBMaxIdleConns int           `koanf:"db_max_idle_conns" validate:"min=0"`
	StoreTimeout   time.Duration `koanf:"store_timeout" validate:"gt=0"`

	// OIDC
	OIDCDomain       string        `koanf:"oidc_domain" validate:"required,hostname_rfc1123"`
	OIDCClientID     string        `koanf:"oidc_client_id" validate:"required"`
	OIDCClientSecret string        `koanf:"oidc_client_secret" validate:"required"`
	OIDCRedirectURI  string        `koanf:"oidc_redirect_uri" validate:"required,url"`
	OIDCAudience     string        `koanf:"oidc_audience"`
	OIDCScopes       string        `koanf:"oidc_scopes"`
	OIDCAuthURL      string        `koanf:"oidc_auth_url" validate:"omitempty,url"`
	OIDCTokenURL     string        `koanf:"oidc_token_url" validate:"omitempty,url"`
	OIDCJWKSURL      string        `koanf:"oidc_jwks_url" validate:"omitempty,url"`
	OIDCLogoutURL    string        `koanf:"oidc_logout_url" validate:"omitempty,url"`
	IDPTimeout       time.Duration `koanf:"idp_timeout" validate:"gt=0"`

	// Session
	SessionSecret          string `koanf:"session_secret" validate:"required,min=32"`
	SessionMaxAge          int    `koanf:"session_max_age" validate:"min=60"`
	SessionCleanupSchedule string `koanf:"session_cleanup_schedule" validate:"required"`
	AdminSubjectsRaw       string `koanf:"admin_subjects"`

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral int `koanf:"rate_limit_general" validate:"min=1"`
	RateLimitBasket  int `koanf:"rate_limit_basket" validate:"min=1"`

	// Import
	ImportTimeout time.Duration `koanf:"import_timeout" validate:"gt=0"`
	ImportMaxSize int64         `koanf:"import_max_size" validate:"min=1"`

	// Server
	ServerPort string `koanf:"server_port" validate:"required,numeric"`
	AppBaseURL string `koanf:"app_base_url" validate:"required,url"`
	LogLevel   string `koanf:"log_level" validate:"oneof=debug info warn error"`

	// Cookie
	CookieDomain string `koanf:"cookie_domain"`

	// 以下は読み込み後に導出する
	CookieSecure  bool     `koanf:"-"`
	AdminSubjects []string `koanf:"-"`
}

// Default はデフォルト値を設定したConfigを返す。
func Default() *Config {
	return &Config{
		DBMaxOpenConns:         10,
		DBMaxIdleConns:         5,
		StoreTimeout:           5 * time.Second,
		OIDCScopes:             "openid profile email",
		IDPTimeout:             10 * time.Second,
		SessionMaxAge:          3600,
		SessionCleanupSchedule: "@every 1h",
		RateLimitGeneral:       120,
		RateLimitBasket:        30,
		ImportTimeout:          30 * time.Second,
		ImportMaxSize:          5 << 20,
		ServerPort:             "8080",
		LogLevel:               "info",
	}
}

// Load はデフォルト値、任意のYAMLファイル（CONFIG_FILE）、環境変数の順に重ねてConfigを読み込む。
// 必須項目の欠落や不正な値がある場合はエラーを返す。
func Load() (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		TransformFunc: func(key, value string) (string, any) {
			// DATABASE_URL -> database_url
			return strings.ToLower(key), value
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables")
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	cfg.derive()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return cfg, nil
}

// derive は他の設定値から決まる項目を埋める。
func (c *Config) derive() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.CookieSecure = strings.HasPrefix(c.AppBaseURL, "https://")
	c.AdminSubjects = splitList(c.AdminSubjectsRaw, ",")
	if c.OIDCJWKSURL == "" && c.OIDCDomain != "" {
		c.OIDCJWKSURL = "https://" + c.OIDCDomain + "/.well-known/jwks.json"
	}
}

// Scopes はOIDCで要求するスコープの一覧を返す。
func (c *Config) Scopes() []string {
	return splitList(c.OIDCScopes, " ")
}

func splitList(raw, sep string) []string {
	var out []string
	for _, part := range strings.Split(raw, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
