package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"AirlineInsights/src/config"
	"AirlineInsights/src/datapush"
	"AirlineInsights/src/datasource/file"
	"AirlineInsights/src/export"
	"AirlineInsights/src/report"
	"AirlineInsights/src/snapshot"
	"AirlineInsights/src/storage"
	"AirlineInsights/src/web"
)

const (
	jsonFile     = "config.json"
	dataJsonFile = "dataconfig.json"

	rotateCheckInterval = time.Minute
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app 各子命令共用的配置、日志和数据仓库
type app struct {
	cfg     *config.Config
	dcfg    *config.DataConfig
	logger  *storage.Logger
	store   *file.Store
	builder *report.Builder
	echo    <-chan string
}

func (a *app) init(jsonFolder string, flags *pflag.FlagSet) error {
	cfg, dcfg, err := config.LoadConfig(jsonFolder, jsonFile, dataJsonFile, flags)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	// 初始化日志系统
	logger, err := storage.NewLogger(cfg.LogName)
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	if cfg.Verbose {
		a.echo = logger.Subscribe()
		go func(ch <-chan string) {
			for msg := range ch {
				fmt.Fprintln(os.Stderr, msg)
			}
		}(a.echo)
	}

	a.cfg, a.dcfg, a.logger = cfg, dcfg, logger
	a.store = file.NewStore(cfg, cfg.Encoding, cfg.Cache, logger)
	a.builder = report.NewBuilder(a.store, dcfg)
	return nil
}

func (a *app) close() {
	if a.logger == nil {
		return
	}
	if a.echo != nil {
		a.logger.Unsubscribe(a.echo)
	}
	a.logger.Close()
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var jsonFolder string

	root := &cobra.Command{
		Use:   "airdash",
		Short: "Airline insights dashboard",
		Long: `airdash renders precomputed traveler segments and airline pricing
statistics as a web dashboard, terminal tables or Excel workbooks.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			return a.init(jsonFolder, cmd.Flags())
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.close()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&jsonFolder, "config-dir", "./config", "directory holding config.json and dataconfig.json")
	root.PersistentFlags().String("data-dir", "", "directory holding the preprocessed data files")
	root.PersistentFlags().BoolP("verbose", "v", false, "echo log entries to stderr")

	root.AddCommand(newServeCmd(a), newReportCmd(a), newExportCmd(a))
	return root
}

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard web server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().String("addr", "", "listen address (default from config, :8501)")
	return cmd
}

// serve Web服务、文件监控、定时快照一起运行，任一出错全部退出
func (a *app) serve(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger
	eg, ctx := errgroup.WithContext(ctx)

	var changes web.Changes
	if cfg.Watch {
		monitor, err := file.NewFileMonitor(cfg.DataDir, a.store, logger)
		if err != nil {
			return err
		}
		changes = monitor
		eg.Go(func() error { return monitor.Run(ctx) })
	}

	if cfg.Snapshot.Schedule != "" {
		var sender snapshot.Sender
		if cfg.SendEmail.Server != "" {
			sender = datapush.NewMailer(cfg.SendEmail.Server, cfg.SendEmail.Username, cfg.SendEmail.Password,
				cfg.SendEmail.Subject, cfg.SendEmail.To)
		}
		job := snapshot.New(a.builder, cfg.Snapshot.Dir, sender, logger)
		eg.Go(func() error { return job.Schedule(ctx, cfg.Snapshot.Schedule) })
	}

	srv, err := web.NewServer(web.Options{
		Addr:              cfg.Server.Addr,
		SessionSecret:     cfg.Server.SessionSecret,
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadHeaderTimeout),
		Footer:            cfg.Footer,
		Reports:           a.builder,
		Changes:           changes,
		Logger:            logger,
	})
	if err != nil {
		return err
	}
	eg.Go(func() error { return srv.Serve(ctx) })
	eg.Go(func() error { return maintainLog(ctx, logger, cfg) })

	err = eg.Wait()
	logger.Info("服务已退出")
	return err
}

// maintainLog SIGHUP 时重新打开日志文件，并定期检查是否需要轮转
func maintainLog(ctx context.Context, logger *storage.Logger, cfg *config.Config) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	ticker := time.NewTicker(rotateCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Received shutdown signal, shutting down...")
			return nil
		case sig := <-hup:
			if err := logger.Reopen(cfg.LogName); err != nil {
				logger.Error("重新打开日志失败: " + err.Error())
				continue
			}
			logger.Info("Received signal: " + sig.String() + ", log file reopened")
		case <-ticker.C:
			if err := logger.CheckRotate(cfg.LogMaxSize); err != nil {
				logger.Error("日志轮转失败: " + err.Error())
			}
		}
	}
}

func newReportCmd(a *app) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a viewer mode's tables to the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := report.ParseMode(mode)
			if err != nil {
				return err
			}
			tables, err := a.builder.Tables(m)
			if err != nil {
				return explain(err)
			}
			report.Print(cmd.OutOrStdout(), tables)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(report.Traveler), "viewer mode (traveler|analyst)")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var mode, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a viewer mode's tables to an Excel workbook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := report.ParseMode(mode)
			if err != nil {
				return err
			}
			tables, err := a.builder.Tables(m)
			if err != nil {
				return explain(err)
			}
			if out == "" {
				out = fmt.Sprintf("airline-%s.xlsx", m)
			}
			if err := export.SaveToExcel(tables, out); err != nil {
				return err
			}
			a.logger.Info("处理后的数据已保存到: " + out)
			fmt.Fprintf(cmd.OutOrStdout(), "saved %d tables to %s\n", len(tables), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(report.Traveler), "viewer mode (traveler|analyst)")
	cmd.Flags().StringVar(&out, "out", "", "output file (default airline-<mode>.xlsx)")
	return cmd
}

// explain 数据缺失时提示先运行预处理脚本
func explain(err error) error {
	switch {
	case errors.Is(err, file.ErrSegmentationMissing):
		return fmt.Errorf("%w; please run the preprocessing script first", err)
	case errors.Is(err, file.ErrAnalysisMissing):
		return fmt.Errorf("%w; please run the preprocessing script", err)
	}
	return err
}
