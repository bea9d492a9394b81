package main

import (
	adhoc "RegionOcrServer/Adhoc"
	"RegionOcrServer/api"
	"RegionOcrServer/config"
	"RegionOcrServer/engine"
	backend "RegionOcrServer/gRPC"
	"RegionOcrServer/imgproc"
	"RegionOcrServer/logger"
	"RegionOcrServer/monitor"
	"RegionOcrServer/pipeline"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()
	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printBanner(cfg config.Config) {
	fmt.Println(strings.Repeat("#", 64))
	fmt.Println("  HTTP Port:", cfg.HTTPPort)
	fmt.Println("  gRPC Port:", cfg.RPCPort)
	fmt.Println("  Detector :", cfg.Detector.Backend, cfg.Detector.ModelPath, cfg.Detector.RemoteURL)
	fmt.Println("  Recognizer:", cfg.Recognizer.Backend, "workers", cfg.Recognizer.Workers)
	fmt.Println("  Pairing  :", cfg.Pairing)
	fmt.Println(strings.Repeat("#", 64))
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.LogLevel, cfg.Development); err != nil {
		return err
	}
	defer logger.Sync()
	if !cfg.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	printBanner(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	defer func() {
		if err := engine.DestroyRuntime(); err != nil {
			logger.Log().Warn("destroy onnxruntime", zap.Error(err))
		}
	}()
	det, err := engine.NewDetectorFromConfig(cfg)
	if err != nil {
		return err
	}
	defer det.Destroy()
	rec, err := engine.NewRecognizerFromConfig(cfg)
	if err != nil {
		return err
	}
	defer rec.Destroy()
	decoder, err := imgproc.NewDecoder(cfg.ImageDecoder, cfg.MaxPixels)
	if err != nil {
		return err
	}
	analyzer, err := pipeline.New(det, rec, decoder, pipeline.OptionsFromConfig(cfg))
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	if cfg.Monitor.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := monitor.StartMon(cfg.Monitor.Port, ctx); err != nil {
				logger.Log().Error("metrics server", zap.Error(err))
			}
		}()
	}
	if cfg.Registry.Enabled {
		ip, err := adhoc.GetOutboundIP()
		if err != nil {
			logger.Log().Warn("failed to get outbound IP, announcing loopback", zap.Error(err))
			ip = "127.0.0.1"
		}
		announcer := adhoc.NewAnnouncer(adhoc.RegServerConfig{
			Addr:     cfg.Registry.Host,
			Port:     cfg.Registry.Port,
			Interval: cfg.Registry.Interval,
		}, ip, cfg.HTTPPort, cfg.RPCPort, analyzer.Labels())
		wg.Add(1)
		go announcer.SendAliveMessage(ctx, &wg)
	} else {
		logger.Log().Info("registry disabled, skipping registration")
	}

	grpcServer, err := backend.StartGRPCServer(cfg.RPCPort, analyzer, cfg.RequestTimeout)
	if err != nil {
		stop()
		wg.Wait()
		return err
	}
	httpServer := api.NewServer(analyzer, api.Options{RequestTimeout: cfg.RequestTimeout})
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Run(cfg.HTTPPort)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Log().Info("shutdown signal received")
	case runErr = <-errCh:
		logger.Log().Error("HTTP server stopped", zap.Error(runErr))
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Log().Warn("HTTP shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()
	wg.Wait()
	logger.Log().Info("Safely exited")
	return runErr
}
