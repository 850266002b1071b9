package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FlightDelayExplorer/src/api"
	"FlightDelayExplorer/src/config"
	"FlightDelayExplorer/src/datapush"
	"FlightDelayExplorer/src/datasource"
	"FlightDelayExplorer/src/datasource/email"
	"FlightDelayExplorer/src/datasource/file"
	"FlightDelayExplorer/src/metrics"
	"FlightDelayExplorer/src/report"
	"FlightDelayExplorer/src/storage"

	"github.com/robfig/cron"
)

func main() {
	if err := config.LoadEnv(); err != nil {
		log.Fatal("Failed to load .env:", err)
	}

	jsonFolder := "./config"
	jsonFile := "config.json"
	dataJsonFile := "dataconfig.json"
	cfg, dcfg, err := config.LoadConfig(jsonFolder, jsonFile, dataJsonFile)
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// 初始化日志系统
	logger, err := storage.NewLogger(cfg.LogName, cfg.AppEnv)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Close()

	metricsReg := metrics.NewMetricsRegistry()
	store := datasource.NewStore(datasource.FileLoader(cfg, dcfg))
	server := api.NewServer(store, metricsReg, logger)

	// 启动时加载失败不退出，接口返回503直到下一次加载成功
	if _, err := server.Reload("startup"); err != nil {
		logger.Warning("启动时数据集不可用", "err", err)
	}

	if cfg.Watch {
		monitor, err := startWatcher(cfg, server, logger)
		if err != nil {
			logger.Error("启动文件监控失败", "dir", cfg.DataDir, "err", err)
		} else {
			defer monitor.Close()
		}
	}

	c := cron.New()
	if err := scheduleJobs(c, cfg, dcfg, server, store, metricsReg, logger); err != nil {
		logger.Error("创建定时任务失败", "err", err)
		return
	}
	c.Start()
	defer c.Stop()

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("HTTP服务已启动", "addr", cfg.HTTP.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP服务异常退出", "err", err)
		}
	}()

	waitForShutdown(cfg, server, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP服务关闭失败", "err", err)
	}
	logger.Info("服务已停止")
}

// startWatcher 数据文件变化时重新加载
func startWatcher(cfg *config.Config, server *api.Server, logger *storage.Logger) (*file.FileMonitor, error) {
	monitor, err := file.NewFileMonitor(cfg.DataDir, cfg.FlightsFile, cfg.AirportsFile)
	if err != nil {
		return nil, err
	}

	go func() {
		err := monitor.Watch(func(path string) {
			logger.Info("数据文件已更新", "file", path)
			server.Reload("watch")
		})
		if err != nil {
			logger.Error("文件监控异常退出", "err", err)
		}
	}()

	logger.Info("文件监控已启动", "dir", cfg.DataDir)
	return monitor, nil
}

// scheduleJobs 注册日志轮转、报表导出和邮箱轮询任务
func scheduleJobs(c *cron.Cron, cfg *config.Config, dcfg *config.DataConfig, server *api.Server, store *datasource.Store, metricsReg *metrics.MetricsRegistry, logger *storage.Logger) error {
	if cfg.LogMaxSize != "" {
		if err := c.AddFunc("@every 1m", func() {
			if err := logger.CheckRotate(cfg.LogMaxSize); err != nil {
				logger.Error("日志轮转失败", "err", err)
			}
		}); err != nil {
			return fmt.Errorf("日志轮转任务: %w", err)
		}
	}

	if cfg.Report.Spec != "" {
		exporter := report.NewExporter()
		var push *datapush.DingTalk
		if cfg.DingTalk.Webhook != "" {
			push = datapush.NewDingTalk(cfg.DingTalk.Webhook, cfg.DingTalk.Secret)
		}
		if err := c.AddFunc(cfg.Report.Spec, func() {
			runReportJob(cfg, store, exporter, push, metricsReg, logger)
		}); err != nil {
			return fmt.Errorf("报表任务(%s): %w", cfg.Report.Spec, err)
		}
		logger.Info("报表任务已注册", "spec", cfg.Report.Spec)
	}

	if cfg.Email.Server != "" {
		emailClient := email.NewEmailClient(cfg.Email.Server, cfg.Email.Username, cfg.Email.Password)
		handler := newAttachmentHandler(cfg, dcfg)
		spec := emailCronSpec(cfg)
		if err := c.AddFunc(spec, func() {
			pollMailbox(cfg, emailClient, handler, server, logger)
		}); err != nil {
			return fmt.Errorf("邮件任务(%s): %w", spec, err)
		}
		logger.Info("邮件监控已启动", "interval", time.Duration(cfg.Email.CheckInterval).String())
	}
	return nil
}

// newAttachmentHandler 附件能解析出航班记录才会覆盖数据文件
func newAttachmentHandler(cfg *config.Config, dcfg *config.DataConfig) *email.AttachmentHandler {
	handler := email.NewAttachmentHandler(cfg.DataDir, cfg.FlightsFile)
	handler.Validate = func(filename string, data []byte) error {
		flights, _, err := file.ParseFlights(filename, data, cfg.FlightsSheet, dcfg)
		if err != nil {
			return err
		}
		if len(flights) == 0 {
			return fmt.Errorf("没有有效的航班记录")
		}
		return nil
	}
	return handler
}

// pollMailbox 检查邮箱并保存航班数据，未开启文件监控时直接重新加载
func pollMailbox(cfg *config.Config, svc email.MailService, handler email.EmailHandler, server *api.Server, logger *storage.Logger) string {
	path, err := email.CheckAndProcessEmails(svc, handler, cfg.Email.TargetSubject, logger)
	if err != nil {
		logger.Error("检查处理邮件失败", "err", err)
		return ""
	}
	if path == "" {
		return ""
	}

	logger.Info("已从邮件获取航班数据", "file", path)
	if !cfg.Watch {
		server.Reload("email")
	}
	return path
}

func emailCronSpec(cfg *config.Config) string {
	return fmt.Sprintf("@every %s", time.Duration(cfg.Email.CheckInterval).String())
}

// runReportJob 导出报表，按配置发送邮件并推送摘要
func runReportJob(cfg *config.Config, store *datasource.Store, exporter *report.Exporter, push *datapush.DingTalk, metricsReg *metrics.MetricsRegistry, logger *storage.Logger) string {
	ds := store.Snapshot()
	if ds == nil {
		metricsReg.ReportsExported.WithLabelValues("skipped").Inc()
		logger.Warning("数据集未加载，跳过报表导出")
		return ""
	}

	path, err := exporter.Export(ds, cfg.Report.Origins, cfg.Report.OutputDir)
	if err != nil {
		metricsReg.ReportsExported.WithLabelValues("error").Inc()
		logger.Error("报表导出失败", "err", err)
		return ""
	}
	metricsReg.ReportsExported.WithLabelValues("ok").Inc()
	logger.Info("报表已导出", "file", path)

	digest := report.Digest(ds, cfg.Report.Origins)
	if cfg.SendEmail.Server != "" {
		if err := email.SendReport(cfg, "航线延误汇总", digest, path); err != nil {
			logger.Error("报表邮件发送失败", "err", err)
		} else {
			logger.Info("报表邮件已发送", "recipients", len(cfg.SendEmail.Recipients))
		}
	}
	if push != nil {
		if err := push.PushMarkdown("航线延误汇总", digest); err != nil {
			logger.Error("钉钉推送失败", "err", err)
		}
	}
	return path
}

// waitForShutdown SIGINT/SIGTERM时返回，SIGHUP重新加载数据集并重新打开日志文件
func waitForShutdown(cfg *config.Config, server *api.Server, logger *storage.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	for sig := range sigChan {
		if sig == syscall.SIGHUP {
			if err := logger.Reopen(cfg.LogName); err != nil {
				logger.Error("重新打开日志失败", "err", err)
			}
			server.Reload("signal")
			continue
		}
		logger.Info("Received signal: " + sig.String() + ", shutting down...")
		return
	}
}
