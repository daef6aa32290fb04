package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"deeptrace-backend-controller/config"
	"deeptrace-backend-controller/domain/analysiscall"
	"deeptrace-backend-controller/domain/graph"
	"deeptrace-backend-controller/domain/ingest"
	"deeptrace-backend-controller/logging"
	"deeptrace-backend-controller/repository/metadata"
	"deeptrace-backend-controller/server"
	"deeptrace-backend-controller/utils"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	retryFailed bool
	notifyEmail string
)

var rootCmd = &cobra.Command{
	Use:          "deeptrace",
	Short:        "线索导入、实体抽取与关系分析服务",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HTTP 服务",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(true, func(ctx context.Context, a *app) error {
			a.logger.Infof("serve on %s:%d, async analysis=%v",
				a.cfg.Server.Host, a.cfg.Server.Port, analysiscall.Async())
			return server.New(serverConf(a.cfg)).RunServer(ctx)
		})
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "导入 xlsx 或 csv 表格",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(false, func(ctx context.Context, a *app) error {
			for _, path := range args {
				count, err := ingestFile(ctx, path)
				if err != nil {
					return err
				}
				a.logger.Infof("ingest [%s] finish, %d clues", path, count)
			}
			return nil
		})
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "对待分析的线索执行一次实体抽取",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(false, func(ctx context.Context, a *app) error {
			req := analysiscall.NewRequest(retryFailed, notifyEmail)
			result, err := analysiscall.Analyze(ctx, req)
			if err != nil {
				return err
			}
			a.logger.Infof("analysis [%s]: attempted=%d processed=%d failed=%d skipped=%d mentions=%d",
				req.RequestID, result.Attempted, result.Processed, result.Failed, result.Skipped, result.Mentions)
			return nil
		})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "创建或更新数据库表结构",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		logging.SetDefaultConfig(loggingConf(cfg))

		dbConf := metadataConf(cfg)
		dbConf.CheckMigration = true
		database, err := metadata.CreateDatabase(dbConf)
		if err != nil {
			return utils.WrapError(err, "migrate metadata database fail")
		}
		metadata.SetDatabase(database)
		logging.Default().Infof("migrate [%s] finish", cfg.Database.Driver)
		return metadata.Close()
	},
}

var syncGraphCmd = &cobra.Command{
	Use:   "sync-graph",
	Short: "把所有已分析的线索重新同步到 neo4j",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(false, func(ctx context.Context, a *app) error {
			result, err := graph.Sync(ctx)
			if err != nil {
				return err
			}
			a.logger.Infof("sync graph finish: clues=%d mentions=%d failed=%d",
				result.Clues, result.Mentions, result.Failed)
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"配置文件路径，默认读取当前目录下的 "+config.DefaultConfigFile)

	analyzeCmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "同时重新处理分析失败的线索")
	analyzeCmd.Flags().StringVar(&notifyEmail, "notify", "", "运行结束后额外通知的邮箱")

	rootCmd.AddCommand(serveCmd, ingestCmd, analyzeCmd, migrateCmd, syncGraphCmd)
}

// withApp 读取配置并初始化组件，在收到 SIGINT 或 SIGTERM 时取消 ctx。
func withApp(withMQ bool, f func(ctx context.Context, a *app) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, withMQ)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := f(ctx, a); err != nil {
		a.logger.WithError(err).Error("command fail")
		return err
	}
	return nil
}

func ingestFile(ctx context.Context, path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, utils.WrapErrorf(err, "open [%s] fail", path)
	}
	defer file.Close()

	return ingest.Ingest(ctx, filepath.Base(path), file)
}
