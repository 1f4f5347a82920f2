package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smarthome/internal/handlers"
	"smarthome/internal/logger"
	"smarthome/internal/models"
	"smarthome/internal/notify"
	"smarthome/internal/repository"
	"smarthome/internal/repository/db"
	"smarthome/internal/server"
	"smarthome/internal/service"

	"github.com/spf13/viper"

	_ "smarthome/docs"
)

func main() {
	// init logger
	log := logger.Get(logger.InfoLevel)

	// load config.yml
	if err := loadConfig(); err != nil {
		log.Fatalw("error reading config", "err", err)
	}

	// open DB
	conn, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Fatalw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	repos := repository.NewRepository(conn)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := seedLinkedUser(ctx, repos); err != nil {
		log.Fatalw("failed to seed linked user", "err", err)
	}

	dispatcher, closeSinks := buildNotifier(log)
	go dispatcher.Run(ctx)
	defer closeSinks()

	authCfg := service.AuthConfig{
		SigningKey: viper.GetString("auth.signing_key"),
		TokenTTL:   viper.GetDuration("auth.token_ttl"),
	}
	services := service.NewService(repos, dispatcher, log, authCfg)
	apiHandler := handlers.NewHandler(services, log)

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, log)
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	return viper.ReadInConfig()
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "app.db")
		dbPath = "app.db"
	}
	return db.InitDB(dbPath)
}

// seedLinkedUser upserts the sample account so the fake OAuth tokens resolve
// from the first request onward.
func seedLinkedUser(ctx context.Context, repos *repository.Repository) error {
	return repos.Users.Upsert(ctx, models.User{
		ID:               viper.GetString("user.id"),
		FakeAccessToken:  viper.GetString("user.access_token"),
		FakeRefreshToken: viper.GetString("user.refresh_token"),
	})
}

// buildNotifier assembles the dispatcher with every sink the config enables.
// An empty endpoint or broker URL leaves that sink off.
func buildNotifier(log *logger.Logger) (*notify.Dispatcher, func()) {
	var (
		sinks   []notify.Sink
		closers []func()
	)

	if endpoint := viper.GetString("notify.homegraph_endpoint"); endpoint != "" {
		sinks = append(sinks, notify.NewHomeGraphSink(endpoint))
	}
	if broker := viper.GetString("notify.mqtt.broker"); broker != "" {
		sink, err := notify.NewMQTTSink(broker,
			viper.GetString("notify.mqtt.client_id"),
			viper.GetString("notify.mqtt.topic_prefix"))
		if err != nil {
			log.Errorw("mqtt sink disabled", "err", err, "broker", broker)
		} else {
			sinks = append(sinks, sink)
			closers = append(closers, sink.Close)
		}
	}
	if len(sinks) == 0 {
		log.Infow("no report-state sinks configured; pushes will be dropped")
	}

	dispatcher := notify.NewDispatcher(viper.GetInt("notify.queue_size"), log, sinks...)
	return dispatcher, func() {
		for _, closeSink := range closers {
			closeSink()
		}
	}
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
