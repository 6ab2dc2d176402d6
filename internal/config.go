package internal

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"http_server"`
	Database DatabaseConfig `mapstructure:"database"`
	Security SecurityConfig `mapstructure:"security"`
	Cookies  CookieConfig   `mapstructure:"cookies"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Throttle ThrottleConfig `mapstructure:"login_throttle"`
	Sweeper  SweeperConfig  `mapstructure:"session_sweeper"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	OperationTimeout  time.Duration `mapstructure:"operation_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Source          string        `mapstructure:"source"`
}

type SecurityConfig struct {
	AccessTokenSecret    string        `mapstructure:"access_token_secret"`
	RefreshTokenSecret   string        `mapstructure:"refresh_token_secret"`
	Issuer               string        `mapstructure:"issuer"`
	AccessTokenDuration  time.Duration `mapstructure:"access_token_duration"`
	RefreshTokenDuration time.Duration `mapstructure:"refresh_token_duration"`
	PasswordResetTTL     time.Duration `mapstructure:"password_reset_ttl"`
	BCryptCost           int           `mapstructure:"bcrypt_cost"`
}

type CookieConfig struct {
	Secure   bool   `mapstructure:"secure"`
	Domain   string `mapstructure:"domain"`
	Path     string `mapstructure:"path"`
	SameSite string `mapstructure:"same_site"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type ThrottleConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	Window         time.Duration `mapstructure:"window"`
	TrustedProxies []string      `mapstructure:"trusted_proxies"`
}

type SweeperConfig struct {
	Schedule  string        `mapstructure:"schedule"`
	Retention time.Duration `mapstructure:"retention"`
}

type LoggingConfig struct {
	Env    string `mapstructure:"env"`
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const minSecretLength = 32

// ----------------- DEFAULTS -----------------

func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.OperationTimeout <= 0 {
		c.Server.OperationTimeout = 10 * time.Second
	}
	if c.Security.Issuer == "" {
		c.Security.Issuer = "simcasi"
	}
	if c.Security.AccessTokenDuration <= 0 {
		c.Security.AccessTokenDuration = 15 * time.Minute
	}
	if c.Security.RefreshTokenDuration <= 0 {
		c.Security.RefreshTokenDuration = 7 * 24 * time.Hour
	}
	if c.Security.PasswordResetTTL <= 0 {
		c.Security.PasswordResetTTL = time.Hour
	}
	if c.Security.BCryptCost == 0 {
		c.Security.BCryptCost = 12
	}
	if c.Cookies.Path == "" {
		c.Cookies.Path = "/"
	}
	if c.Cookies.SameSite == "" {
		c.Cookies.SameSite = "lax"
	}
	if c.Throttle.MaxAttempts == 0 {
		c.Throttle.MaxAttempts = 10
	}
	if c.Throttle.Window <= 0 {
		c.Throttle.Window = 15 * time.Minute
	}
	if c.Sweeper.Schedule == "" {
		c.Sweeper.Schedule = "@every 1h"
	}
	if c.Sweeper.Retention <= 0 {
		c.Sweeper.Retention = 24 * time.Hour
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// LoadConfigFromEnv builds the configuration from environment variables only (container deployments).
func LoadConfigFromEnv() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("HTTP_PORT", 8080),
			BaseURL:           getEnv("BASE_URL", ""),
			AllowedOrigins:    getEnv("ALLOWED_ORIGINS", ""),
			ReadHeaderTimeout: getEnvAsDuration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
			OperationTimeout:  getEnvAsDuration("HTTP_OPERATION_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DATABASE_URL", ""),
		},
		Security: SecurityConfig{
			AccessTokenSecret:    getEnv("JWT_ACCESS_SECRET", ""),
			RefreshTokenSecret:   getEnv("JWT_REFRESH_SECRET", ""),
			Issuer:               getEnv("JWT_ISSUER", "simcasi"),
			AccessTokenDuration:  getEnvAsDuration("JWT_ACCESS_TTL", 15*time.Minute),
			RefreshTokenDuration: getEnvAsDuration("JWT_REFRESH_TTL", 7*24*time.Hour),
			PasswordResetTTL:     getEnvAsDuration("PASSWORD_RESET_TTL", time.Hour),
			BCryptCost:           getEnvAsInt("BCRYPT_COST", 12),
		},
		Cookies: CookieConfig{
			Secure:   getEnvAsBool("COOKIE_SECURE", true),
			Domain:   getEnv("COOKIE_DOMAIN", ""),
			Path:     getEnv("COOKIE_PATH", "/"),
			SameSite: getEnv("COOKIE_SAME_SITE", "lax"),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Throttle: ThrottleConfig{
			MaxAttempts:    getEnvAsInt("LOGIN_MAX_ATTEMPTS", 10),
			Window:         getEnvAsDuration("LOGIN_THROTTLE_WINDOW", 15*time.Minute),
			TrustedProxies: splitList(getEnv("TRUSTED_PROXIES", "")),
		},
		Sweeper: SweeperConfig{
			Schedule:  getEnv("SESSION_SWEEP_SCHEDULE", "@every 1h"),
			Retention: getEnvAsDuration("SESSION_SWEEP_RETENTION", 24*time.Hour),
		},
		Logging: LoggingConfig{
			Env:    getEnv("APP_ENV", "production"),
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Cookies.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("cookie config: %v", err))
	}

	if err := c.Throttle.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("login throttle config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		for _, origin := range c.Origins() {
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *ServerConfig) Origins() []string {
	return splitList(c.AllowedOrigins)
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if len(c.AccessTokenSecret) < minSecretLength {
		return fmt.Errorf("access_token_secret must be at least %d characters", minSecretLength)
	}
	if len(c.RefreshTokenSecret) < minSecretLength {
		return fmt.Errorf("refresh_token_secret must be at least %d characters", minSecretLength)
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return errors.New("access and refresh token secrets must differ")
	}
	if c.AccessTokenDuration >= c.RefreshTokenDuration {
		return errors.New("access_token_duration must be shorter than refresh_token_duration")
	}
	if c.BCryptCost < 4 || c.BCryptCost > 31 {
		return errors.New("bcrypt_cost must be between 4 and 31")
	}
	return nil
}

func (c *CookieConfig) Validate() error {
	switch strings.ToLower(c.SameSite) {
	case "lax", "strict":
		return nil
	default:
		return fmt.Errorf("unsupported same_site mode %q", c.SameSite)
	}
}

func (c *CookieConfig) SameSiteMode() http.SameSite {
	if strings.EqualFold(c.SameSite, "strict") {
		return http.SameSiteStrictMode
	}
	return http.SameSiteLaxMode
}

func (c *ThrottleConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return errors.New("max_attempts must be positive")
	}
	if _, err := c.ProxyNetworks(); err != nil {
		return err
	}
	return nil
}

// ProxyNetworks parses TrustedProxies. A bare address is a single-host network.
func (c *ThrottleConfig) ProxyNetworks() ([]*net.IPNet, error) {
	networks := make([]*net.IPNet, 0, len(c.TrustedProxies))
	for _, entry := range c.TrustedProxies {
		entry = strings.TrimSpace(entry)
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", entry)
			}
			bits := 8 * net.IPv6len
			if ip4 := ip.To4(); ip4 != nil {
				ip, bits = ip4, 8*net.IPv4len
			}
			networks = append(networks, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, network, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		networks = append(networks, network)
	}
	return networks, nil
}
