package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ginlogger "github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"bus_tracker/internal/auth"
	"bus_tracker/internal/config"
	"bus_tracker/internal/controllers"
	"bus_tracker/internal/logger"
	"bus_tracker/internal/metrics"
	"bus_tracker/internal/middleware"
	"bus_tracker/internal/realtime"
	"bus_tracker/internal/repository"
	"bus_tracker/internal/response"
	"bus_tracker/internal/routes"
	"bus_tracker/internal/services"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	// Initialize structured logging to file
	log, logOut := logger.Setup(cfg.Log)

	// Connect to the database
	db, err := config.OpenDB(cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	if err := config.Migrate(db); err != nil {
		log.WithError(err).Fatal("database migration failed")
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.WithError(err).Fatal("database handle unavailable")
	}
	defer sqlDB.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	userRepo := repository.NewUserRepo(db)
	tokenRepo := repository.NewTokenRepo(db)
	operatorRepo := repository.NewOperatorRepo(db)
	routeRepo := repository.NewRouteRepo(db)
	busRepo := repository.NewBusRepo(db)
	locationRepo := repository.NewLocationRepo(db)

	hub := realtime.NewHub(log, m)
	publisher := locationPublisher(ctx, cfg.Redis, hub, log)

	authSvc := services.NewAuthService(userRepo, tokenRepo, auth.NewTokenManager(cfg.JWT), log)
	locationSvc := services.NewLocationService(locationRepo, busRepo, publisher, m, log)
	busSvc := services.NewBusService(busRepo, routeRepo, operatorRepo, log)
	routeSvc := services.NewRouteService(routeRepo, busRepo, log)
	operatorSvc := services.NewOperatorService(operatorRepo, busRepo, userRepo, log)
	userSvc := services.NewUserService(userRepo, tokenRepo, operatorRepo, busRepo, log)

	gin.SetMode(cfg.Server.Mode)
	response.UseJSONFieldNames()

	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		ginlogger.SetLogger(
			ginlogger.WithWriter(logOut),
			ginlogger.WithUTC(true),
			ginlogger.WithSkipPath([]string{"/health", "/metrics"}),
		),
		middleware.CORS(cfg.CORS),
		middleware.Metrics(m),
	)
	routes.SetupRouter(r, routes.Dependencies{
		Auth:      controllers.NewAuthController(authSvc, log),
		Buses:     controllers.NewBusController(busSvc, locationSvc, log),
		Routes:    controllers.NewRouteController(routeSvc, log),
		Locations: controllers.NewLocationController(locationSvc, cfg.Retention.Days, log),
		Admin:     controllers.NewAdminController(userSvc, operatorSvc, log),
		Health:    controllers.NewHealthController(sqlDB, log),
		WebSocket: controllers.NewWebSocketController(hub, authSvc, log),
		Resolver:  authSvc,
		Gatherer:  registry,
		Log:       log,
	})

	retention := services.NewRetentionWorker(locationSvc, cfg.Retention.Days, cfg.Retention.Interval, log)
	retention.Start(ctx)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	retention.Stop()
	hub.Close()
	log.Info("server stopped")
}

// locationPublisher fans pings out through Redis when enabled so every
// instance's websocket subscribers see them; otherwise pings stay local.
func locationPublisher(ctx context.Context, cfg config.RedisConfig, hub *realtime.Hub, log *logrus.Logger) services.LocationPublisher {
	if !cfg.Enabled {
		return hub
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("redis unreachable; live updates stay on this instance")
		_ = client.Close()
		return hub
	}

	fanout := realtime.NewRedisFanout(client, cfg.Channel, hub, log)
	go func() {
		defer client.Close()
		if err := fanout.Run(ctx); err != nil {
			log.WithError(err).Error("redis fan-out stopped")
		}
	}()
	return fanout
}
