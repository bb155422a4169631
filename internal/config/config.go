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
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Rerank        RerankConfig        `mapstructure:"rerank"`
	Chat          ChatConfig          `mapstructure:"chat"`
	Tenants       TenantsConfig       `mapstructure:"tenants"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	APIKey        string `mapstructure:"api_key"`
	BaseURL       string `mapstructure:"base_url"`
	Model         string `mapstructure:"model"`
	Dimensions    int    `mapstructure:"dimensions"`
	CacheTTLHours int    `mapstructure:"cache_ttl_hours"`
}

// LLMConfig 存储大语言模型相关的配置。
// Temperature 是部署级常量，不随请求变化。
type LLMConfig struct {
	APIKey          string  `mapstructure:"api_key"`
	BaseURL         string  `mapstructure:"base_url"`
	Model           string  `mapstructure:"model"`
	Temperature     float64 `mapstructure:"temperature"`
	MaxPromptTokens int     `mapstructure:"max_prompt_tokens"`
}

// RerankConfig 存储重排序服务相关的配置。
type RerankConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// ChatConfig 存储问答流水线相关的配置。
type ChatConfig struct {
	TopK           int     `mapstructure:"top_k"`
	LexicalWeight  float64 `mapstructure:"lexical_weight"`
	VectorWeight   float64 `mapstructure:"vector_weight"`
	MemoryMaxTurns int     `mapstructure:"memory_max_turns"`
	MemoryCapacity int     `mapstructure:"memory_capacity"`
	MemoryTTLHours int     `mapstructure:"memory_ttl_hours"`
	HistoryLimit   int     `mapstructure:"history_limit"`
}

// TenantsConfig 指向租户注册表文件。
type TenantsConfig struct {
	File string `mapstructure:"file"`
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}

	applyDefaults()
}

// applyDefaults 为未配置的流水线参数填入默认值。
func applyDefaults() {
	if Conf.Chat.TopK <= 0 {
		Conf.Chat.TopK = 12
	}
	if Conf.Chat.LexicalWeight == 0 && Conf.Chat.VectorWeight == 0 {
		Conf.Chat.LexicalWeight = 0.5
		Conf.Chat.VectorWeight = 0.5
	}
	if Conf.Chat.MemoryMaxTurns <= 0 {
		Conf.Chat.MemoryMaxTurns = 2
	}
	if Conf.Chat.MemoryCapacity <= 0 {
		Conf.Chat.MemoryCapacity = 4096
	}
	if Conf.Chat.MemoryTTLHours <= 0 {
		Conf.Chat.MemoryTTLHours = 12
	}
	if Conf.Chat.HistoryLimit <= 0 {
		Conf.Chat.HistoryLimit = 3
	}
	if Conf.LLM.MaxPromptTokens <= 0 {
		Conf.LLM.MaxPromptTokens = 8191
	}
	if Conf.Embedding.Dimensions <= 0 {
		Conf.Embedding.Dimensions = 1536
	}
}
