package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nurpe/sid-bonds/internal/auth"
	"github.com/nurpe/sid-bonds/internal/config"
	"github.com/nurpe/sid-bonds/internal/db"
	"github.com/nurpe/sid-bonds/internal/event"
	"github.com/nurpe/sid-bonds/internal/excel"
	httphandler "github.com/nurpe/sid-bonds/internal/http"
	"github.com/nurpe/sid-bonds/internal/http/middleware"
	"github.com/nurpe/sid-bonds/internal/logger"
	"github.com/nurpe/sid-bonds/internal/pdf"
	"github.com/nurpe/sid-bonds/internal/repository"
	"github.com/nurpe/sid-bonds/internal/service"
	"github.com/nurpe/sid-bonds/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	guaranteeRepo := repository.NewGuaranteeRepository(database)
	contractRepo := repository.NewContractRepository(database)
	orderRepo := repository.NewOrderRepository(database)
	activityRepo := repository.NewActivityRepository(database)
	groupRepo := repository.NewGroupRepository(database)
	tx := db.NewTransactor(database)

	var sequence service.SequenceGenerator
	switch cfg.Bonds.SequenceBackend {
	case config.SequenceBackendRedis:
		client, err := repository.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect redis")
		}
		defer client.Close()
		sequence = repository.NewRedisSequence(client, cfg.Bonds.SequencePrefix, cfg.Bonds.SequencePadding)
	default:
		sequence = repository.NewSequenceRepository(database, cfg.Bonds.SequencePrefix, cfg.Bonds.SequencePadding)
	}

	var events service.EventPublisher
	if cfg.AMQP.URL != "" {
		conn, err := event.ConnectRabbitMQ(cfg.AMQP.URL, cfg.AMQP.Exchange, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect rabbitmq")
		}
		defer conn.Close()
		events = event.NewPublisher(conn, cfg.AMQP.Exchange)
	}

	guaranteeService := service.NewGuaranteeService(service.GuaranteeDeps{
		Guarantees: guaranteeRepo,
		Contracts:  contractRepo,
		Orders:     orderRepo,
		Sequence:   sequence,
		Tx:         tx,
		Notifier:   activityRepo,
		Groups:     groupRepo,
		Events:     events,
	}, cfg.Bonds, log)
	contractService := service.NewContractService(
		contractRepo, orderRepo, tx, activityRepo, service.OrderFilter(cfg.Bonds.OrderFilter), log,
	)
	orderService := service.NewOrderService(orderRepo, guaranteeRepo, contractService, guaranteeService, tx, log)
	activityService := service.NewActivityService(activityRepo, guaranteeService)
	documentService := service.NewDocumentService(guaranteeService, pdf.NewGenerator(), excel.NewGenerator())

	scheduler, err := worker.NewScheduler(cfg.Bonds.SweepSchedule, guaranteeService, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init scheduler")
	}

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(httphandler.Services{
		Guarantees: guaranteeService,
		Contracts:  contractService,
		Orders:     orderService,
		Activities: activityService,
		Documents:  documentService,
	}, log)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment, cfg.HTTP.AllowedOrigins, log)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Start()
	go func() {
		log.Info().Str("addr", addr).Msg("starting bonds service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	scheduler.Stop(shutdownCtx)
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("bonds service stopped")
}
