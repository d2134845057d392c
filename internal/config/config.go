// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	RAG      RAGConfig      `mapstructure:"rag"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port              string `mapstructure:"port"`
	Mode              string `mapstructure:"mode"`
	UploadsDir        string `mapstructure:"uploads_dir"`
	KnowledgeBasesDir string `mapstructure:"knowledge_bases_dir"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig 存储 PostgreSQL 元数据库的配置。
// 各字段可分别被 DB_HOST / DB_PORT / DB_NAME / DB_USER / DB_PASSWORD 环境变量覆盖。
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN 构建 gorm/pgx 使用的连接串。
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// RAGConfig 存储 RAG 服务（文档摄取引擎）相关的配置。
type RAGConfig struct {
	BaseURL                string `mapstructure:"base_url"`
	HealthTimeoutSeconds   int    `mapstructure:"health_timeout_seconds"`
	QueryTimeoutSeconds    int    `mapstructure:"query_timeout_seconds"`
	ProgressTimeoutSeconds int    `mapstructure:"progress_timeout_seconds"`
	ParseTimeoutHours      int    `mapstructure:"parse_timeout_hours"`
	ConnectTimeoutSeconds  int    `mapstructure:"connect_timeout_seconds"`
}

// IngestConfig 存储文档摄取流水线相关的配置。
type IngestConfig struct {
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`
	VerifyDelaySeconds  int `mapstructure:"verify_delay_seconds"`
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// 数据库连接信息优先读取环境变量，与部署脚本约定保持一致
	_ = viper.BindEnv("database.postgres.host", "DB_HOST")
	_ = viper.BindEnv("database.postgres.port", "DB_PORT")
	_ = viper.BindEnv("database.postgres.name", "DB_NAME")
	_ = viper.BindEnv("database.postgres.user", "DB_USER")
	_ = viper.BindEnv("database.postgres.password", "DB_PASSWORD")

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}
}
