package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port int        `mapstructure:"port"`
	CORS CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig 数据库配置，driver 支持 sqlite（默认）与 postgres
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Path            string `mapstructure:"path"` // sqlite 文件路径或 DSN
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
	LogLevel        string `mapstructure:"log_level"`          // gorm 日志级别: silent|error|warn|info
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置，addr 为空表示不启用
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CacheConfig 查询结果缓存
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// IngestConfig 数据导入配置
type IngestConfig struct {
	Source      string            `mapstructure:"source"` // local | s3
	Dir         string            `mapstructure:"dir"`
	Files       map[string]string `mapstructure:"files"` // 表名 → 文件名
	RunOnStart  bool              `mapstructure:"run_on_start"`
	Schedule    string            `mapstructure:"schedule"` // cron 表达式，为空不启用
	Timezone    string            `mapstructure:"timezone"`
	Concurrency int               `mapstructure:"concurrency"`
	AdminToken  string            `mapstructure:"admin_token"`
	RateLimit   int               `mapstructure:"rate_limit"` // 每分钟手动触发次数上限
	S3          S3Config          `mapstructure:"s3"`
	SQS         SQSConfig         `mapstructure:"sqs"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
}

// S3Config 数据源对象存储
type S3Config struct {
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	Bucket       string `mapstructure:"bucket"`
	Prefix       string `mapstructure:"prefix"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
}

// SQSConfig 导入触发队列，queue_url 为空不启用
type SQSConfig struct {
	QueueURL    string `mapstructure:"queue_url"`
	WaitSeconds int32  `mapstructure:"wait_seconds"`
}

// KafkaConfig 导入结果通知，brokers 为空不启用
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// DefaultFiles 默认的表 → 导出文件名映射
func DefaultFiles() map[string]string {
	return map[string]string{
		"courses":    "courses.xlsx",
		"users":      "users.xlsx",
		"login":      "login.xlsx",
		"topics":     "topics.xlsx",
		"entries":    "entries.xlsx",
		"enrollment": "enrollment.xlsx",
	}
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.path", "forum.db")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "forum")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)
	v.SetDefault("db.conn_max_idle_time", 30)
	v.SetDefault("db.log_level", "warn")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "5m")

	v.SetDefault("ingest.source", "local")
	v.SetDefault("ingest.dir", "./data")
	v.SetDefault("ingest.files", DefaultFiles())
	v.SetDefault("ingest.run_on_start", true)
	v.SetDefault("ingest.schedule", "")
	v.SetDefault("ingest.timezone", "UTC")
	v.SetDefault("ingest.concurrency", 4)
	v.SetDefault("ingest.admin_token", "")
	v.SetDefault("ingest.rate_limit", 5)
	v.SetDefault("ingest.s3.region", "us-east-1")
	v.SetDefault("ingest.s3.use_path_style", true)
	v.SetDefault("ingest.sqs.wait_seconds", 20)
	v.SetDefault("ingest.kafka.topic", "forum.ingest.runs")

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("FORUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// ── 关键配置校验 ──
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("配置校验失败: db.driver 仅支持 sqlite 或 postgres，实际 %q", c.Database.Driver)
	}
	switch c.Ingest.Source {
	case "local":
		if c.Ingest.Dir == "" {
			return fmt.Errorf("配置校验失败: ingest.dir 不能为空")
		}
	case "s3":
		if c.Ingest.S3.Bucket == "" {
			return fmt.Errorf("配置校验失败: ingest.s3.bucket 不能为空")
		}
	default:
		return fmt.Errorf("配置校验失败: ingest.source 仅支持 local 或 s3，实际 %q", c.Ingest.Source)
	}
	if len(c.Ingest.Kafka.Brokers) > 0 && c.Ingest.Kafka.Topic == "" {
		return fmt.Errorf("配置校验失败: ingest.kafka.topic 不能为空")
	}
	if c.Ingest.AdminToken != "" && len(c.Ingest.AdminToken) < 16 {
		return fmt.Errorf("配置校验失败: ingest.admin_token 长度不能少于 16 字符")
	}
	return nil
}
