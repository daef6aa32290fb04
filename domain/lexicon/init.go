package lexicon

import (
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type LexiconSetting struct {
	Logger              *logrus.Logger
	GetMetadataDatabase func() *gorm.DB
	// JiebaDicts 可选，依次为主词典、HMM 模型、用户词典等路径
	JiebaDicts []string
}
