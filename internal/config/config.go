// Package config 负责加载和管理应用程序的配置
// 使用 viper 库支持 YAML 配置文件和环境变量覆盖，启动时先通过 godotenv 读取 .env
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 是应用程序的根配置结构
// 包含所有子配置模块
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`   // 服务器配置
	Database DatabaseConfig `mapstructure:"database"` // 数据库配置
	Redis    RedisConfig    `mapstructure:"redis"`    // Redis 配置
	JWT      JWTConfig      `mapstructure:"jwt"`      // JWT 配置
	Log      LogConfig      `mapstructure:"log"`      // 日志配置
	AI       AIConfig       `mapstructure:"ai"`       // 大模型配置
	Billing  BillingConfig  `mapstructure:"billing"`  // 用量计费配置
}

// ServerConfig 服务器相关配置
type ServerConfig struct {
	Port         int           `mapstructure:"port"`          // 监听端口，默认 8080
	Mode         string        `mapstructure:"mode"`          // 运行模式: debug / release
	CORS         []string      `mapstructure:"cors"`          // CORS 允许的域名
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`  // 读超时
	WriteTimeout time.Duration `mapstructure:"write_timeout"` // 写超时，0 表示不限制（SSE 长连接需要）
	CookieSecure bool          `mapstructure:"cookie_secure"` // session_token Cookie 是否只走 HTTPS
}

// DatabaseConfig 数据库连接配置
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`         // postgres / mysql / sqlite
	DSN          string `mapstructure:"dsn"`            // 连接串
	MaxIdleConns int    `mapstructure:"max_idle_conns"` // 最大空闲连接数
	MaxOpenConns int    `mapstructure:"max_open_conns"` // 最大打开连接数
	MaxLifetime  int    `mapstructure:"max_lifetime"`   // 连接最大生命周期（秒）
	AutoMigrate  bool   `mapstructure:"auto_migrate"`   // 启动时自动迁移表结构
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Host     string `mapstructure:"host"`      // Redis 主机地址
	Port     int    `mapstructure:"port"`      // Redis 端口
	Username string `mapstructure:"username"`  // Redis 用户名
	Password string `mapstructure:"password"`  // Redis 密码
	DB       int    `mapstructure:"db"`        // 数据库索引 (0-15)
	PoolSize int    `mapstructure:"pool_size"` // 连接池大小
}

// JWTConfig JWT 认证配置
type JWTConfig struct {
	Secret          string        `mapstructure:"secret"`           // 会话 Token 签名密钥，至少32字符
	AccessExpire    time.Duration `mapstructure:"access_expire"`    // Access Token 过期时间
	RefreshExpire   time.Duration `mapstructure:"refresh_expire"`   // Refresh Token 过期时间
	DatastoreSecret string        `mapstructure:"datastore_secret"` // 数据存储访问 Token 的签名密钥
	DatastoreExpire time.Duration `mapstructure:"datastore_expire"` // 数据存储访问 Token 过期时间
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug/info/warn/error
	Format string `mapstructure:"format"` // 日志格式: json/text
}

// AIConfig 大模型服务配置
type AIConfig struct {
	Provider         string `mapstructure:"provider"`           // openai / anthropic
	OpenAIAPIKey     string `mapstructure:"openai_api_key"`     // OpenAI API Key
	OpenAIBaseURL    string `mapstructure:"openai_base_url"`    // 兼容 OpenAI 协议的网关地址，可选
	OpenAIModel      string `mapstructure:"openai_model"`       // OpenAI 模型名
	AnthropicAPIKey  string `mapstructure:"anthropic_api_key"`  // Anthropic API Key
	AnthropicModel   string `mapstructure:"anthropic_model"`    // Anthropic 模型名
	SystemPrompt     string `mapstructure:"system_prompt"`      // 系统提示词
	MaxTokens        int    `mapstructure:"max_tokens"`         // 单次回复最大 token 数
	HistoryMaxLength int    `mapstructure:"history_max_length"` // 发送给模型的历史消息条数上限
}

// BillingConfig 用量计费配置
type BillingConfig struct {
	PricePer1KChars string `mapstructure:"price_per_1k_chars"` // 每千字符价格，十进制字符串
}

// Load 从指定路径加载配置文件
// 支持环境变量覆盖配置项
// 参数:
//   - configPath: 配置文件目录路径 (如 "./configs")
//
// 返回:
//   - *Config: 配置对象
//   - error: 如果加载失败则返回错误
func Load(configPath string) (*Config, error) {
	// 先加载 .env，文件不存在时忽略
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// 启用环境变量
	// 例如: DATABASE_DSN -> database.dsn
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindEnvVariables(v)
	setDefaults(v)

	// 配置文件不存在时继续使用默认值和环境变量
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// bindEnvVariables 绑定环境变量到配置项
func bindEnvVariables(v *viper.Viper) {
	// 服务器配置
	v.BindEnv("server.port", "SERVER_PORT", "PORT")
	v.BindEnv("server.mode", "SERVER_MODE")

	// 数据库配置
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.dsn", "DATABASE_DSN", "DATABASE_URL")

	// Redis 配置
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.username", "REDIS_USERNAME")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// JWT 配置
	v.BindEnv("jwt.secret", "JWT_SECRET", "AUTH_SECRET")
	v.BindEnv("jwt.datastore_secret", "DATASTORE_JWT_SECRET")

	// 大模型配置
	v.BindEnv("ai.provider", "AI_PROVIDER")
	v.BindEnv("ai.openai_api_key", "OPENAI_API_KEY")
	v.BindEnv("ai.openai_base_url", "OPENAI_BASE_URL")
	v.BindEnv("ai.anthropic_api_key", "ANTHROPIC_API_KEY")
}

// setDefaults 设置配置项的默认值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "0s")
	v.SetDefault("server.cookie_secure", false)

	// 数据库默认配置
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "host=localhost user=postgres password=postgres dbname=pocket_chat port=5432 sslmode=disable")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.max_lifetime", 3600)
	v.SetDefault("database.auto_migrate", true)

	// Redis 默认配置
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 100)

	// JWT 默认配置
	v.SetDefault("jwt.access_expire", "24h")
	v.SetDefault("jwt.refresh_expire", "168h")
	v.SetDefault("jwt.datastore_expire", "5m")

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// 大模型默认配置
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.openai_model", "gpt-4o-mini")
	v.SetDefault("ai.anthropic_model", "claude-3-5-haiku-latest")
	v.SetDefault("ai.system_prompt", "You are a helpful assistant.")
	v.SetDefault("ai.max_tokens", 1024)
	v.SetDefault("ai.history_max_length", 40)

	// 计费默认配置
	v.SetDefault("billing.price_per_1k_chars", "0.002")
}
