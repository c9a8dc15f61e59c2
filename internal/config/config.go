package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Browser     BrowserConfig     `mapstructure:"browser"`
	AI          AIConfig          `mapstructure:"ai"`
	Apply       ApplyConfig       `mapstructure:"apply"`
	Hunt        HuntConfig        `mapstructure:"hunt"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	BoardsFile  string            `mapstructure:"boards_file"`
}

type AppConfig struct {
	AppName       string `mapstructure:"name"`
	Environment   string `mapstructure:"env"`
	HTTPPort      string `mapstructure:"http_port"`
	DefaultUserID string `mapstructure:"default_user_id"`
	DefaultEmail  string `mapstructure:"default_user_email"`
	MigrationsDir string `mapstructure:"migrations_dir"`
}

type DatabaseConfig struct {
	DBHost     string `mapstructure:"host"`
	DBPort     string `mapstructure:"port"`
	DBName     string `mapstructure:"name"`
	DBUser     string `mapstructure:"user"`
	DBPassword string `mapstructure:"password"`
	DBSSLMode  string `mapstructure:"ssl_mode"`

	ConnectTimeout        time.Duration `mapstructure:"connect_timeout"`
	PoolMaxConns          int32         `mapstructure:"pool_max_conns"`
	PoolMinConns          int32         `mapstructure:"pool_min_conns"`
	PoolMaxConnLifetime   time.Duration `mapstructure:"pool_max_conn_lifetime"`
	PoolMaxConnIdleTime   time.Duration `mapstructure:"pool_max_conn_idle_time"`
	PoolHealthCheckPeriod time.Duration `mapstructure:"pool_health_check_period"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type BrowserConfig struct {
	Driver      string        `mapstructure:"driver"`
	Headless    bool          `mapstructure:"headless"`
	Stealth     bool          `mapstructure:"stealth"`
	ExecPath    string        `mapstructure:"exec_path"`
	UserAgent   string        `mapstructure:"user_agent"`
	NavTimeout  time.Duration `mapstructure:"nav_timeout"`
	SnapshotDir string        `mapstructure:"snapshot_dir"`
}

type AIConfig struct {
	Provider     string  `mapstructure:"provider"`
	APIKey       string  `mapstructure:"api_key"`
	APIKeyFile   string  `mapstructure:"api_key_file"`
	Model        string  `mapstructure:"model"`
	MinScore     float64 `mapstructure:"min_score"`
	MaxLogLength int     `mapstructure:"max_log_length"`
	MaxRetries   int     `mapstructure:"max_retries"`
}

type ApplyConfig struct {
	SubmitEnabled bool          `mapstructure:"submit_enabled"`
	WaitTimeout   time.Duration `mapstructure:"wait_timeout"`
}

type HuntConfig struct {
	OpportunityThreshold float64       `mapstructure:"opportunity_threshold"`
	Boards               []string      `mapstructure:"boards"`
	RunTimeout           time.Duration `mapstructure:"run_timeout"`
	LockTTL              time.Duration `mapstructure:"lock_ttl"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	SecretFile string        `mapstructure:"secret_file"`
	ExpiresIn  time.Duration `mapstructure:"expires_in"`
}

type TelegramConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
	ChatID  int64  `mapstructure:"chat_id"`
}

type Credentials struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

type CredentialsConfig struct {
	CWJobs   Credentials `mapstructure:"cwjobs"`
	LinkedIn Credentials `mapstructure:"linkedin"`
}

// For returns the credentials configured for a board, if any.
func (c CredentialsConfig) For(board string) (Credentials, bool) {
	var cr Credentials
	switch strings.ToLower(strings.TrimSpace(board)) {
	case "cwjobs":
		cr = c.CWJobs
	case "linkedin":
		cr = c.LinkedIn
	}
	if cr.Email == "" || cr.Password == "" {
		return Credentials{}, false
	}
	return cr, true
}

var errMissingRequired = errors.New("missing required configuration")

// env aliases kept for deployments configured with flat variable names.
var envAliases = map[string][]string{
	"app.name":                      {"APP_NAME"},
	"app.env":                       {"APP_ENV"},
	"app.http_port":                 {"HTTP_PORT", "PORT"},
	"database.host":                 {"DB_HOST"},
	"database.port":                 {"DB_PORT"},
	"database.name":                 {"DB_NAME"},
	"database.user":                 {"DB_USER"},
	"database.password":             {"DB_PASSWORD"},
	"database.ssl_mode":             {"DB_SSL_MODE"},
	"redis.host":                    {"REDIS_HOST"},
	"redis.port":                    {"REDIS_PORT"},
	"redis.password":                {"REDIS_PASSWORD"},
	"ai.api_key":                    {"GEMINI_API_KEY"},
	"credentials.cwjobs.email":      {"CWJOBS_EMAIL"},
	"credentials.cwjobs.password":   {"CWJOBS_PASSWORD"},
	"credentials.linkedin.email":    {"LINKEDIN_EMAIL"},
	"credentials.linkedin.password": {"LINKEDIN_PASSWORD"},
	"telegram.token":                {"TELEGRAM_BOT_TOKEN"},
	"telegram.chat_id":              {"TELEGRAM_CHAT_ID"},
}

var required = []string{
	"database.host",
	"database.name",
	"database.user",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "jobpilot")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.http_port", "5003")
	v.SetDefault("app.default_user_id", "")
	v.SetDefault("app.default_user_email", "me@localhost")
	v.SetDefault("app.migrations_dir", "")

	v.SetDefault("database.host", "")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.connect_timeout", 5*time.Second)
	v.SetDefault("database.pool_max_conns", 10)
	v.SetDefault("database.pool_min_conns", 0)
	v.SetDefault("database.pool_max_conn_lifetime", time.Hour)
	v.SetDefault("database.pool_max_conn_idle_time", 30*time.Minute)
	v.SetDefault("database.pool_health_check_period", time.Minute)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.ttl", 10*time.Minute)

	v.SetDefault("browser.driver", "chromedp")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.stealth", false)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("browser.nav_timeout", 30*time.Second)
	v.SetDefault("browser.snapshot_dir", "logs/snapshots")

	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.api_key_file", "")
	v.SetDefault("ai.model", "gemini-2.5-flash")
	v.SetDefault("ai.min_score", 0.7)
	v.SetDefault("ai.max_log_length", 200)
	v.SetDefault("ai.max_retries", 3)

	v.SetDefault("apply.submit_enabled", false)
	v.SetDefault("apply.wait_timeout", 10*time.Second)

	v.SetDefault("hunt.opportunity_threshold", 0.6)
	v.SetDefault("hunt.boards", []string{"cwjobs", "linkedin", "indeed"})
	v.SetDefault("hunt.run_timeout", 30*time.Minute)
	v.SetDefault("hunt.lock_ttl", 45*time.Minute)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.secret_file", "")
	v.SetDefault("jwt.expires_in", 24*time.Hour)

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_id", 0)

	v.SetDefault("credentials.cwjobs.email", "")
	v.SetDefault("credentials.cwjobs.password", "")
	v.SetDefault("credentials.linkedin.email", "")
	v.SetDefault("credentials.linkedin.password", "")

	v.SetDefault("boards_file", "")
}

// Load reads configuration from an optional .env file, an optional YAML file at
// path and the environment, in increasing order of precedence.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, envs := range envAliases {
		names := append([]string{strings.ToUpper(strings.NewReplacer(".", "_").Replace(key))}, envs...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	path = strings.TrimSpace(path)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var missing []string
	for _, key := range required {
		if strings.TrimSpace(v.GetString(key)) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("%w: %s", errMissingRequired, strings.Join(missing, ", "))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.resolveSecrets(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) resolveSecrets() error {
	if strings.TrimSpace(c.AI.APIKeyFile) != "" {
		key, err := LoadSecret(SecretSource{Name: "ai api key", File: c.AI.APIKeyFile})
		if err != nil {
			return err
		}
		c.AI.APIKey = key
	}
	if strings.TrimSpace(c.JWT.SecretFile) != "" {
		s, err := LoadSecret(SecretSource{Name: "jwt secret", File: c.JWT.SecretFile})
		if err != nil {
			return err
		}
		c.JWT.Secret = s
	}
	return nil
}

// SecretSource describes where a secret value comes from. File takes precedence
// over Value.
type SecretSource struct {
	Name  string
	Value string
	File  string
}

func LoadSecret(src SecretSource) (string, error) {
	name := strings.TrimSpace(src.Name)
	if name == "" {
		name = "secret"
	}

	file := strings.TrimSpace(src.File)
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading %s from file %q: %w", name, file, err)
		}
		src.Value = string(data)
	}

	secret := strings.TrimSpace(src.Value)
	if secret == "" {
		if file != "" {
			return "", fmt.Errorf("%s file %q is empty", name, file)
		}
		return "", fmt.Errorf("%s is not configured", name)
	}
	return secret, nil
}
