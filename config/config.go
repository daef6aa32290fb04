package config

import (
	"os"
	"strings"
	"time"

	"deeptrace-backend-controller/utils"
	"github.com/spf13/viper"
)

const (
	EnvPrefix         = "DEEPTRACE"
	DefaultConfigFile = "deeptrace.yaml"
)

type ServerConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Debug      bool   `mapstructure:"debug"`
	AdminToken string `mapstructure:"admin_token"`
}

/*
DatabaseConfig 关系数据库配置。

	Driver 为 mysql、postgres 或 sqlite；
	Path 仅 sqlite 使用，为数据库文件路径；
*/
type DatabaseConfig struct {
	Driver         string `mapstructure:"driver"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	Path           string `mapstructure:"path"`
	CheckMigration bool   `mapstructure:"check_migration"`
}

type LogConfig struct {
	FileLevel      string `mapstructure:"file_level"`
	ConsoleLevel   string `mapstructure:"console_level"`
	FileDir        string `mapstructure:"file_dir"`
	DisableConsole bool   `mapstructure:"disable_console"`
	MaxSizeMB      int    `mapstructure:"max_size_mb"`
	MaxBackups     int    `mapstructure:"max_backups"`
}

/*
AnalysisConfig 实体抽取配置。

	Recognizer 为 jieba 或 hugot；
	RetryFailed 为 true 时重扫也会重新处理失败的线索；
	Async 为 true 时通过 RabbitMQ 投递抽取请求；
	Lexicon 为 true 时用已入库的实体名扩充识别结果，误识别的名称也会在之后的运行中反复出现，默认关闭；
*/
type AnalysisConfig struct {
	Recognizer    string   `mapstructure:"recognizer"`
	JiebaDicts    []string `mapstructure:"jieba_dicts"`
	HugotModel    string   `mapstructure:"hugot_model"`
	HugotModelDir string   `mapstructure:"hugot_model_dir"`
	HugotOnnxFile string   `mapstructure:"hugot_onnx_file"`
	MaxChunkRunes int      `mapstructure:"max_chunk_runes"`
	RetryFailed   bool     `mapstructure:"retry_failed"`
	Async         bool     `mapstructure:"async"`
	Lexicon       bool     `mapstructure:"lexicon"`
}

type CacheConfig struct {
	Backend      string        `mapstructure:"backend"`
	OptionTTL    time.Duration `mapstructure:"option_ttl"`
	AnalyticsTTL time.Duration `mapstructure:"analytics_ttl"`
	RedisAddr    string        `mapstructure:"redis_addr"`
	RedisDB      int           `mapstructure:"redis_db"`
	RedisPrefix  string        `mapstructure:"redis_prefix"`
}

type RabbitMQConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	User    string `mapstructure:"user"`
	Pwd     string `mapstructure:"pwd"`
	Host    string `mapstructure:"host"`
	Port    string `mapstructure:"port"`
}

type Neo4jConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	User    string `mapstructure:"user"`
	Pwd     string `mapstructure:"pwd"`
}

type EmailConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Identity string   `mapstructure:"identity"`
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	UserName string   `mapstructure:"user_name"`
	Password string   `mapstructure:"password"`
	NotifyTo []string `mapstructure:"notify_to"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Cache    CacheConfig    `mapstructure:"cache"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	Neo4j    Neo4jConfig    `mapstructure:"neo4j"`
	Email    EmailConfig    `mapstructure:"email"`
	Timezone string         `mapstructure:"timezone"`
}

// Location 返回配置的时区，无法解析时使用本地时区。
func (c *Config) Location() *time.Location {
	if len(c.Timezone) == 0 {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8003)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.admin_token", "")

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.user", "deeptrace")
	v.SetDefault("database.password", "deeptrace")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.database", "deeptrace")
	v.SetDefault("database.path", "deeptrace.db")
	v.SetDefault("database.check_migration", true)

	v.SetDefault("log.file_level", "debug")
	v.SetDefault("log.console_level", "info")
	v.SetDefault("log.file_dir", "logs")
	v.SetDefault("log.disable_console", false)
	v.SetDefault("log.max_size_mb", 64)
	v.SetDefault("log.max_backups", 8)

	v.SetDefault("analysis.recognizer", "jieba")
	v.SetDefault("analysis.jieba_dicts", []string{})
	v.SetDefault("analysis.hugot_model", "KnightsAnalytics/distilbert-NER")
	v.SetDefault("analysis.hugot_model_dir", "./models")
	v.SetDefault("analysis.hugot_onnx_file", "model.onnx")
	v.SetDefault("analysis.max_chunk_runes", 256)
	v.SetDefault("analysis.retry_failed", false)
	v.SetDefault("analysis.async", false)
	v.SetDefault("analysis.lexicon", false)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.option_ttl", "10m")
	v.SetDefault("cache.analytics_ttl", "5m")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.redis_prefix", "deeptrace")

	v.SetDefault("rabbitmq.enabled", false)
	v.SetDefault("rabbitmq.user", "guest")
	v.SetDefault("rabbitmq.pwd", "guest")
	v.SetDefault("rabbitmq.host", "localhost")
	v.SetDefault("rabbitmq.port", "5672")

	v.SetDefault("neo4j.enabled", false)
	v.SetDefault("neo4j.host", "localhost")
	v.SetDefault("neo4j.port", 7687)
	v.SetDefault("neo4j.user", "neo4j")
	v.SetDefault("neo4j.pwd", "")

	v.SetDefault("email.enabled", false)
	v.SetDefault("email.port", 25)
	v.SetDefault("email.notify_to", []string{})

	v.SetDefault("timezone", "Asia/Shanghai")
}

/*
Load 读取配置，优先级：环境变量 > 配置文件 > 默认值。

path 为空时尝试读取当前目录下的 deeptrace.yaml，不存在则只使用环境变量与默认值。
环境变量以 DEEPTRACE_ 为前缀，层级用下划线分隔，例如 DEEPTRACE_DATABASE_DRIVER。
*/
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if len(path) == 0 {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}

	if len(path) != 0 {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, utils.WrapErrorf(err, "read config file [%s] fail", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, utils.WrapError(err, "unmarshal config fail")
	}

	return &cfg, nil
}
