// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Tika          TikaConfig          `mapstructure:"tika"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Pipeline      PipelineConfig      `mapstructure:"pipeline"`
	Search        SearchConfig        `mapstructure:"search"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig 存储 Supabase 签发的 JWT 的校验配置。
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	AdminRole string `mapstructure:"admin_role"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type KafkaConfig struct {
	Brokers     string `mapstructure:"brokers"`
	Topic       string `mapstructure:"topic"`
	GroupID     string `mapstructure:"group_id"`
	MaxAttempts int    `mapstructure:"max_attempts"`
}

type TikaConfig struct {
	ServerURL string `mapstructure:"server_url"`
}

type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

type MinIOConfig struct {
	Endpoint             string `mapstructure:"endpoint"`
	AccessKeyID          string `mapstructure:"access_key_id"`
	SecretAccessKey      string `mapstructure:"secret_access_key"`
	UseSSL               bool   `mapstructure:"use_ssl"`
	BucketName           string `mapstructure:"bucket_name"`
	PresignExpiryMinutes int    `mapstructure:"presign_expiry_minutes"`
}

// EmbeddingConfig 存储 Gemini embedding 接口与限流配置。
type EmbeddingConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	BaseURL           string  `mapstructure:"base_url"`
	Model             string  `mapstructure:"model"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
	CooldownSeconds   int     `mapstructure:"cooldown_seconds"`
}

type LLMConfig struct {
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Model      string              `mapstructure:"model"`
	Generation LLMGenerationConfig `mapstructure:"generation"`
}

type LLMGenerationConfig struct {
	Temperature     float64 `mapstructure:"temperature"`
	MaxOutputTokens int     `mapstructure:"max_output_tokens"`
}

// PipelineConfig 控制入库后的向量化流程。
type PipelineConfig struct {
	AutoEmbed    bool `mapstructure:"auto_embed"`
	BatchSize    int  `mapstructure:"batch_size"`
	ChunkSize    int  `mapstructure:"chunk_size"`
	ChunkOverlap int  `mapstructure:"chunk_overlap"`
	// JobLeaseMinutes 之后仍为 pending 的任务可以被重新抢占。
	JobLeaseMinutes int `mapstructure:"job_lease_minutes"`
}

// JobLease 返回 pending 任务的租约时长。
func (p PipelineConfig) JobLease() time.Duration {
	return time.Duration(p.JobLeaseMinutes) * time.Minute
}

type SearchConfig struct {
	DefaultLimit     int     `mapstructure:"default_limit"`
	DefaultThreshold float64 `mapstructure:"default_threshold"`
	HistoryLimit     int     `mapstructure:"history_limit"`
	HistoryTTLHours  int     `mapstructure:"history_ttl_hours"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.postgres.max_idle_conns", 10)
	v.SetDefault("database.postgres.max_open_conns", 50)
	v.SetDefault("auth.admin_role", "admin")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("kafka.topic", "lawspark-embedding-tasks")
	v.SetDefault("kafka.group_id", "lawspark-embedding-consumer")
	v.SetDefault("kafka.max_attempts", 3)
	v.SetDefault("minio.presign_expiry_minutes", 60)
	v.SetDefault("elasticsearch.index_name", "lawspark_document_metadata")
	v.SetDefault("embedding.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("embedding.model", "text-embedding-004")
	v.SetDefault("embedding.requests_per_second", 5.0)
	v.SetDefault("embedding.burst", 5)
	v.SetDefault("embedding.cooldown_seconds", 30)
	v.SetDefault("llm.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("llm.model", "gemini-1.5-flash")
	v.SetDefault("llm.generation.temperature", 0.2)
	v.SetDefault("llm.generation.max_output_tokens", 1024)
	v.SetDefault("pipeline.batch_size", 5)
	v.SetDefault("pipeline.chunk_size", 1000)
	v.SetDefault("pipeline.chunk_overlap", 200)
	v.SetDefault("pipeline.job_lease_minutes", 30)
	v.SetDefault("search.default_limit", 10)
	v.SetDefault("search.default_threshold", 0.7)
	v.SetDefault("search.history_limit", 20)
	v.SetDefault("search.history_ttl_hours", 168)
}

// Load 读取 .env 与 YAML 配置文件，并应用环境变量覆盖。
func Load(configPath string) (Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("LAWSPARK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides 处理与部署平台约定的环境变量名。
func applyEnvOverrides(cfg *Config) {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.Embedding.APIKey = key
		cfg.LLM.APIKey = key
	}
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		cfg.Database.Postgres.DSN = dsn
	}
	if secret := os.Getenv("SUPABASE_JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
}
