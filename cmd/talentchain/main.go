package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/kbunet/talentchain/internal/config"
	"github.com/kbunet/talentchain/internal/domain"
	"github.com/kbunet/talentchain/internal/infrastructure/providers"
	"github.com/kbunet/talentchain/internal/infrastructure/repository"
	"github.com/kbunet/talentchain/internal/present/rest"
	"github.com/kbunet/talentchain/internal/present/rest/middleware"
	"github.com/kbunet/talentchain/internal/service"
	"github.com/kbunet/talentchain/internal/usecase"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	listenAddr := flag.String("listen", ":8000", "address to listen on")
	flag.Parse()

	conf, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	nodeConf := domain.Config{
		FQDN:       conf.NodeInfo.FQDN,
		PrivateKey: conf.NodeInfo.PrivateKey,
		Address:    conf.NodeInfo.Address,
	}

	if conf.Server.EnableTrace {
		cleanup, err := setupTraceProvider(conf.Server.TraceEndpoint, conf.NodeInfo.FQDN)
		if err != nil {
			slog.Error("Failed to set up tracing", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer cleanup()
	}

	db, err := providers.NewDatabase(conf.Server)
	if err != nil {
		slog.Error("Failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := providers.MigrateDatabase(db); err != nil {
		slog.Error("Failed to migrate database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	rdb := providers.NewRedis(conf.Server)
	mc := providers.NewMemcache(conf.Server.MemcachedAddr)

	metadataStore := providers.NewMetadataStore(conf.Ipfs, mc)
	ledger, err := providers.NewLedger(conf.Ledger, conf.NodeInfo.Address)
	if err != nil {
		slog.Error("Failed to construct ledger", slog.String("error", err.Error()))
		os.Exit(1)
	}

	userRepo := repository.NewUserRepository(db)
	certRepo := repository.NewCertificateRepository(db)
	institutionRepo := repository.NewInstitutionRepository(db)
	employerRepo := repository.NewEmployerRepository(db)
	reputationRepo := repository.NewReputationRepository(db)

	events := service.NewEventService(rdb)

	users := usecase.NewUserUsecase(userRepo)
	institutions := usecase.NewInstitutionUsecase(institutionRepo)
	employers := usecase.NewEmployerUsecase(employerRepo)
	reputation := usecase.NewReputationUsecase(reputationRepo)
	certificates := usecase.NewCertificateUsecase(certRepo, metadataStore, ledger, institutions, events)

	auth := service.NewAuthService(nodeConf, users, service.NewRedisNonceStore(rdb))
	authMw := middleware.NewAuthMiddleware(auth, nodeConf)

	handler := rest.NewHandler(nodeConf, certificates, users, institutions, employers, reputation, auth, events)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware(conf.NodeInfo.FQDN))
	}
	e.Use(authMw.IdentifyIdentity)

	handler.RegisterRoutes(e, authMw)

	slog.Info("Starting talentchain node",
		slog.String("fqdn", conf.NodeInfo.FQDN),
		slog.String("address", conf.NodeInfo.Address),
		slog.String("ledger", conf.Ledger.Backend),
	)

	e.Logger.Fatal(e.Start(*listenAddr))
}

func setupTraceProvider(endpoint string, serviceName string) (func(), error) {
	ctx := context.Background()

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tracerProvider)

	cleanup := func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			slog.Error("Failed to shut down tracer provider", slog.String("error", err.Error()))
		}
	}
	return cleanup, nil
}
