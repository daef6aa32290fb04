package metadata

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// sqlLogger 将 gorm 的日志转发到 logrus，SQL 语句只在 debug 级别输出。
type sqlLogger struct {
	logger *logrus.Logger
}

func (l *sqlLogger) Printf(fmt string, args ...interface{}) {
	l.logger.WithField("component", "gorm").Debugf(strings.TrimSpace(fmt), args...)
}
