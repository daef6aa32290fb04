package logging

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

/*
Config 日志配置。

	FileLevel 写入文件的最低日志级别；
	ConsoleLevel 输出到控制台的最低日志级别；
	FileDir 日志文件目录，为空时不写文件；
	DisableConsole 关闭控制台输出；
	MaxSizeMB、MaxBackups 日志文件滚动参数，为 0 时使用默认值；
*/
type Config struct {
	FileLevel      logrus.Level
	ConsoleLevel   logrus.Level
	FileDir        string
	DisableConsole bool
	MaxSizeMB      int
	MaxBackups     int
}

const logFileName = "deeptrace.log"

func GenerateTestConfig(t *testing.T) *Config {
	return &Config{
		FileLevel:      logrus.DebugLevel,
		ConsoleLevel:   logrus.DebugLevel,
		FileDir:        t.TempDir(),
		DisableConsole: false,
	}
}

var (
	lock          sync.RWMutex
	defaultConfig = Config{ConsoleLevel: logrus.InfoLevel}
	fileWriter    io.Writer
	defaultLogger *logrus.Logger
)

// SetDefaultConfig 设置全局日志配置，之后 NewLogger 与 Default 返回的 logger 都按此配置输出。
func SetDefaultConfig(config *Config) {
	lock.Lock()
	defer lock.Unlock()

	if closer, ok := fileWriter.(io.Closer); ok {
		_ = closer.Close()
	}

	defaultConfig = *config
	fileWriter = nil

	if len(config.FileDir) != 0 {
		if err := os.MkdirAll(config.FileDir, 0o755); err == nil {
			fileWriter = &lumberjack.Logger{
				Filename:   filepath.Join(config.FileDir, logFileName),
				MaxSize:    orDefault(config.MaxSizeMB, 64),
				MaxBackups: orDefault(config.MaxBackups, 8),
				LocalTime:  true,
			}
		}
	}

	defaultLogger = newLogger(&defaultConfig, fileWriter)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// NewLogger 按当前全局配置创建一个新的 logger。
func NewLogger() *logrus.Logger {
	lock.RLock()
	defer lock.RUnlock()

	return newLogger(&defaultConfig, fileWriter)
}

// Default 返回共享的全局 logger。
func Default() *logrus.Logger {
	lock.RLock()
	if defaultLogger != nil {
		defer lock.RUnlock()
		return defaultLogger
	}
	lock.RUnlock()

	lock.Lock()
	defer lock.Unlock()
	if defaultLogger == nil {
		defaultLogger = newLogger(&defaultConfig, fileWriter)
	}
	return defaultLogger
}

func newLogger(config *Config, file io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetReportCaller(false)

	level := logrus.PanicLevel
	if !config.DisableConsole {
		logger.AddHook(&writerHook{
			writer:    os.Stderr,
			formatter: &logrus.TextFormatter{FullTimestamp: true},
			levels:    levelsUpTo(config.ConsoleLevel),
		})
		level = maxLevel(level, config.ConsoleLevel)
	}

	if file != nil {
		logger.AddHook(&writerHook{
			writer:    file,
			formatter: &logrus.JSONFormatter{},
			levels:    levelsUpTo(config.FileLevel),
		})
		level = maxLevel(level, config.FileLevel)
	}

	logger.SetLevel(level)
	return logger
}

func maxLevel(a, b logrus.Level) logrus.Level {
	if a > b {
		return a
	}
	return b
}

func levelsUpTo(level logrus.Level) []logrus.Level {
	ret := make([]logrus.Level, 0, len(logrus.AllLevels))
	for _, l := range logrus.AllLevels {
		if l <= level {
			ret = append(ret, l)
		}
	}
	return ret
}

// writerHook 将不低于指定级别的日志以给定格式写入 writer。
type writerHook struct {
	mu        sync.Mutex
	writer    io.Writer
	formatter logrus.Formatter
	levels    []logrus.Level
}

func (h *writerHook) Levels() []logrus.Level {
	return h.levels
}

func (h *writerHook) Fire(entry *logrus.Entry) error {
	bytes, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.writer.Write(bytes)
	return err
}
