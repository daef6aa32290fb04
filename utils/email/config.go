package email

import (
	"os"
	"strconv"
)

type SMTPConfig struct {
	Identity string
	Host     string
	Port     int
	UserName string
	Password string
}

type Config struct {
	Enabled bool
	SMTP    SMTPConfig
}

var globalConfig = Config{}

func Init(config *Config) {
	globalConfig = *config
}

func Enabled() bool {
	return globalConfig.Enabled
}

// GenerateTestConfig 从 DEEPTRACE_TEST_SMTP_* 环境变量读取测试邮箱，未设置时邮件功能关闭。
func GenerateTestConfig() *Config {
	port, _ := strconv.Atoi(os.Getenv("DEEPTRACE_TEST_SMTP_PORT"))
	if port == 0 {
		port = 25
	}

	host := os.Getenv("DEEPTRACE_TEST_SMTP_HOST")
	return &Config{
		Enabled: len(host) != 0,
		SMTP: SMTPConfig{
			Identity: os.Getenv("DEEPTRACE_TEST_SMTP_USER"),
			Host:     host,
			Port:     port,
			UserName: os.Getenv("DEEPTRACE_TEST_SMTP_USER"),
			Password: os.Getenv("DEEPTRACE_TEST_SMTP_PASSWORD"),
		},
	}
}
