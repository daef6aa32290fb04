package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"deeptrace-backend-controller/config"
	"deeptrace-backend-controller/domain/analysiscall"
	"deeptrace-backend-controller/domain/analytics"
	"deeptrace-backend-controller/domain/extraction"
	"deeptrace-backend-controller/domain/graph"
	"deeptrace-backend-controller/domain/ingest"
	"deeptrace-backend-controller/domain/lexicon"
	"deeptrace-backend-controller/domain/recognizer"
	"deeptrace-backend-controller/logging"
	"deeptrace-backend-controller/repository/metadata"
	"deeptrace-backend-controller/repository/neograph"
	"deeptrace-backend-controller/repository/querycache"
	"deeptrace-backend-controller/server"
	"deeptrace-backend-controller/utils"
	"deeptrace-backend-controller/utils/email"
	"github.com/sirupsen/logrus"
)

func parseLevel(level string, def logrus.Level) logrus.Level {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return def
	}
	return parsed
}

func loggingConf(cfg *config.Config) *logging.Config {
	return &logging.Config{
		FileLevel:      parseLevel(cfg.Log.FileLevel, logrus.DebugLevel),
		ConsoleLevel:   parseLevel(cfg.Log.ConsoleLevel, logrus.InfoLevel),
		FileDir:        cfg.Log.FileDir,
		DisableConsole: cfg.Log.DisableConsole,
		MaxSizeMB:      cfg.Log.MaxSizeMB,
		MaxBackups:     cfg.Log.MaxBackups,
	}
}

func emailConf(cfg *config.Config) *email.Config {
	return &email.Config{
		Enabled: cfg.Email.Enabled,
		SMTP: email.SMTPConfig{
			Identity: cfg.Email.Identity,
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			UserName: cfg.Email.UserName,
			Password: cfg.Email.Password,
		},
	}
}

func metadataConf(cfg *config.Config) *metadata.Config {
	db := cfg.Database
	return &metadata.Config{
		Driver: db.Driver,
		MySQL: metadata.MySQLConfig{
			User:     db.User,
			Password: db.Password,
			Host:     fmt.Sprintf("%s:%d", db.Host, db.Port),
			Database: db.Database,
		},
		Postgres: metadata.PostgresConfig{
			User:     db.User,
			Password: db.Password,
			Host:     db.Host,
			Port:     db.Port,
			Database: db.Database,
		},
		SQLite:         metadata.SQLiteConfig{Path: db.Path},
		CheckMigration: db.CheckMigration,
	}
}

func recognizerConf(cfg *config.Config) *recognizer.Config {
	return &recognizer.Config{
		Kind:          cfg.Analysis.Recognizer,
		JiebaDicts:    cfg.Analysis.JiebaDicts,
		HugotModel:    cfg.Analysis.HugotModel,
		HugotModelDir: cfg.Analysis.HugotModelDir,
		HugotOnnxFile: cfg.Analysis.HugotOnnxFile,
		MaxChunkRunes: cfg.Analysis.MaxChunkRunes,
	}
}

func querycacheConf(cfg *config.Config) *querycache.Config {
	return &querycache.Config{
		Backend:     cfg.Cache.Backend,
		RedisAddr:   cfg.Cache.RedisAddr,
		RedisDB:     cfg.Cache.RedisDB,
		RedisPrefix: cfg.Cache.RedisPrefix,
	}
}

func neographConf(cfg *config.Config) *neograph.Config {
	return &neograph.Config{
		Enabled: cfg.Neo4j.Enabled,
		Host:    cfg.Neo4j.Host,
		Port:    cfg.Neo4j.Port,
		User:    cfg.Neo4j.User,
		Pwd:     cfg.Neo4j.Pwd,
	}
}

// mqConf 只有开启 RabbitMQ 且要求异步抽取时返回连接配置。
func mqConf(cfg *config.Config) *analysiscall.MQConnectionConfig {
	if !cfg.RabbitMQ.Enabled || !cfg.Analysis.Async {
		return nil
	}
	return &analysiscall.MQConnectionConfig{
		User: cfg.RabbitMQ.User,
		Pwd:  cfg.RabbitMQ.Pwd,
		Host: cfg.RabbitMQ.Host,
		Port: cfg.RabbitMQ.Port,
	}
}

func serverConf(cfg *config.Config) *server.Config {
	return &server.Config{
		Host:       cfg.Server.Host,
		Port:       cfg.Server.Port,
		DebugMode:  cfg.Server.Debug,
		AdminToken: cfg.Server.AdminToken,
	}
}

/*
app 一次进程内初始化好的全部组件。

	closers 按初始化的逆序关闭；
*/
type app struct {
	cfg     *config.Config
	logger  *logrus.Logger
	lexicon *lexicon.Lexicon
	closers []func() error
}

func (a *app) onClose(f func() error) {
	a.closers = append(a.closers, f)
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.WithError(err).Warn("close component fail")
		}
	}
	a.closers = nil
}

func (a *app) invalidateCache() {
	if err := analytics.InvalidateAll(context.Background()); err != nil {
		a.logger.WithError(err).Warn("invalidate query cache fail")
	}
}

// runAnalysis 先用最新入库的实体名刷新词典，再执行一次抽取。
func (a *app) runAnalysis(ctx context.Context, options *extraction.RunOptions) (*extraction.RunResult, error) {
	if a.lexicon != nil {
		if err := a.lexicon.Refresh(ctx); err != nil {
			a.logger.WithError(err).Warn("refresh lexicon fail, continue with the stale one")
		}
	}
	return extraction.Run(ctx, options)
}

/*
newApp 按配置初始化所有组件。

withMQ 为 true 时连接 RabbitMQ 并监听抽取请求，只有 serve 需要。
*/
func newApp(cfg *config.Config, withMQ bool) (_ *app, err error) {
	logging.SetDefaultConfig(loggingConf(cfg))
	a := &app{cfg: cfg, logger: logging.NewLogger()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	email.Init(emailConf(cfg))

	database, err := metadata.CreateDatabase(metadataConf(cfg))
	if err != nil {
		return nil, utils.WrapError(err, "connect metadata database fail")
	}
	metadata.SetDatabase(database)
	a.onClose(metadata.Close)

	if err = neograph.Init(neographConf(cfg)); err != nil {
		return nil, utils.WrapError(err, "connect neo4j fail")
	}
	a.onClose(neograph.Close)

	cache, err := querycache.New(querycacheConf(cfg))
	if err != nil {
		return nil, utils.WrapErrorf(err, "create query cache [%s] fail", cfg.Cache.Backend)
	}
	if closer, ok := cache.(io.Closer); ok {
		a.onClose(closer.Close)
	}

	loc := cfg.Location()
	analytics.Init(&analytics.Setting{
		GetMetadataDatabase: metadata.DatabaseRaw,
		Cache:               cache,
		Location:            loc,
		OptionTTL:           cfg.Cache.OptionTTL,
		AnalyticsTTL:        cfg.Cache.AnalyticsTTL,
		Logger:              logging.NewLogger(),
	})

	ingest.Init(&ingest.Setting{
		GetMetadataDatabase: metadata.DatabaseRaw,
		Location:            loc,
		Logger:              logging.NewLogger(),
		OnMutation:          a.invalidateCache,
	})

	rec, err := recognizer.New(recognizerConf(cfg))
	if err != nil {
		return nil, utils.WrapErrorf(err, "create recognizer [%s] fail", cfg.Analysis.Recognizer)
	}
	if cfg.Analysis.Lexicon {
		a.lexicon = lexicon.New(&lexicon.LexiconSetting{
			Logger:              logging.NewLogger(),
			GetMetadataDatabase: metadata.DatabaseRaw,
			JiebaDicts:          cfg.Analysis.JiebaDicts,
		}, rec)
		rec = a.lexicon
	}
	a.onClose(rec.Close)

	extraction.Init(&extraction.Setting{
		GetMetadataDatabase: metadata.DatabaseRaw,
		Recognizer:          rec,
		Logger:              logging.NewLogger(),
		RetryFailed:         cfg.Analysis.RetryFailed,
		Mirror:              neograph.Mirror{},
		OnMutation:          a.invalidateCache,
	})

	graph.Init(&graph.SyncSetting{
		GetMetadataDatabase: metadata.DatabaseRaw,
		Mirror:              neograph.Mirror{},
		Logger:              logging.NewLogger(),
	})

	var mq *analysiscall.MQConnectionConfig
	if withMQ {
		mq = mqConf(cfg)
	}
	err = analysiscall.Init(&analysiscall.Setting{
		Run:      a.runAnalysis,
		NotifyTo: cfg.Email.NotifyTo,
		Logger:   logging.NewLogger(),
		MQ:       mq,
	})
	if err != nil {
		return nil, utils.WrapError(err, "init analysis trigger fail")
	}
	a.onClose(func() error {
		analysiscall.Close()
		return nil
	})

	return a, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
