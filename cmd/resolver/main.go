package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"shipment-ticket-resolver/internal/api"
	"shipment-ticket-resolver/internal/archive"
	"shipment-ticket-resolver/internal/automation"
	"shipment-ticket-resolver/internal/carrier"
	"shipment-ticket-resolver/internal/config"
	"shipment-ticket-resolver/internal/escalation"
	"shipment-ticket-resolver/internal/ledger"
	"shipment-ticket-resolver/internal/source"
	"shipment-ticket-resolver/internal/worker"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	var led ledger.Ledger
	var ledgerPath string
	if cfg.PostgresDSN != "" {
		pg, err := ledger.NewPostgresLedger(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("connect postgres ledger: %v", err)
		}
		defer pg.Close()
		led = pg
	} else {
		fl := ledger.NewFileLedger(cfg.LedgerPath, cfg.FailureLogPath)
		led = fl
		ledgerPath = fl.Path()
	}

	exc := escalation.NewWriter(cfg.ExceptionsDir)

	if cfg.RedisAddr == "" {
		log.Fatalf("redis_addr is required: the resolver pulls work from the shared intake list")
	}
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	src := source.NewRedisSource(redisClient, cfg.IntakeKey)

	client := carrier.New(cfg.CarrierBaseURL, cfg.CarrierAccount, cfg.CarrierPass, cfg.EshopID, cfg.CarrierTimeout)
	fetcher := carrier.NewRetrying(client, cfg.RetryAttempts, cfg.RetryDelay)

	var executor automation.Executor = automation.DryRun{}
	if !cfg.DryRun {
		// The console driver registers itself here when built with one;
		// without it the resolver decides and records but does not submit.
		logrus.Warn("no console driver built in, running decisions as dry-run")
	}

	if cfg.S3Bucket != "" && ledgerPath != "" {
		archiver, err := archive.New(ctx, archive.Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
			Prefix:    cfg.S3Prefix,
			Schedule:  cfg.ArchiveSchedule,
		}, ledgerPath, exc.RecordsDir())
		if err != nil {
			log.Fatalf("init archiver: %v", err)
		}
		if err := archiver.Start(ctx); err != nil {
			log.Fatalf("start archiver: %v", err)
		}
		defer archiver.Stop()
	}

	opsServer := &http.Server{
		Addr:    cfg.OpsAddr,
		Handler: api.New(led, exc).Router(),
	}
	go func() {
		log.Printf("ops api listening on %s", cfg.OpsAddr)
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	orch := worker.New(worker.Options{
		PassInterval:  cfg.PassInterval,
		IdleInterval:  cfg.IdleInterval,
		ErrorInterval: cfg.ErrorInterval,
		BatchSize:     cfg.BatchSize,
	}, src, fetcher, executor, led, exc)

	log.Printf("resolver started pass_interval=%s idle_interval=%s dry_run=%v", cfg.PassInterval, cfg.IdleInterval, cfg.DryRun)
	if err := orch.Run(ctx); err != nil {
		log.Printf("resolver stopped: %v", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = opsServer.Shutdown(shutdownCtx)
}
