package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/lessonloop/lessonloop"
	httpAdapter "github.com/lessonloop/lessonloop/internal/adapters/http"
	"github.com/lessonloop/lessonloop/internal/config"
	"github.com/lessonloop/lessonloop/internal/logging"
	"github.com/lessonloop/lessonloop/pkg/adapters/localoracle"
	"github.com/lessonloop/lessonloop/pkg/adapters/oraclehttp"
	redisAdapter "github.com/lessonloop/lessonloop/pkg/adapters/redis"
	"github.com/lessonloop/lessonloop/pkg/observability"
	"github.com/lessonloop/lessonloop/pkg/script"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the lesson HTTP server",
	Long:  `Serves one lesson script over a JSON API with per-user sessions, optional Redis persistence and a websocket message feed.`,
	Run: func(cmd *cobra.Command, args []string) {
		scriptPath, _ := cmd.Flags().GetString("script")
		configPath, _ := cmd.Flags().GetString("config")
		addr, _ := cmd.Flags().GetString("addr")

		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
		if cmd.Flags().Changed("addr") {
			cfg.Addr = addr
		}

		logger := logging.NewJSON(slog.LevelInfo)

		lesson, err := script.Load(scriptPath)
		if err != nil {
			fmt.Printf("Error loading script: %v\n", err)
			os.Exit(1)
		}
		if err := script.Validate(lesson); err != nil {
			fmt.Printf("Invalid script: %v\n", err)
			os.Exit(1)
		}

		engineOpts := []lessonloop.Option{
			lessonloop.WithLogger(logger),
			lessonloop.WithUILang(cfg.UILang),
			lessonloop.WithMetrics(observability.NewMetrics(prometheus.DefaultRegisterer)),
		}

		if cfg.Redis.Addr != "" {
			client := goredis.NewClient(&goredis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			store := redisAdapter.NewFromClient(client, redisAdapter.WithTTL(cfg.Redis.TTL.Std()))
			engineOpts = append(engineOpts,
				lessonloop.WithStore(store),
				lessonloop.WithProgressStore(store),
				lessonloop.WithLocker(redisAdapter.NewLocker(client, "lessonloop")),
			)
			logger.Info("using redis persistence", "addr", cfg.Redis.Addr)
		} else {
			logger.Info("using in-memory persistence")
		}

		if cfg.Oracle.URL != "" {
			engineOpts = append(engineOpts,
				lessonloop.WithOracle(oraclehttp.New(cfg.Oracle.URL, oraclehttp.WithTimeout(cfg.Oracle.Timeout.Std()))))
			logger.Info("using remote oracle", "url", cfg.Oracle.URL)
		} else {
			engineOpts = append(engineOpts, lessonloop.WithOracle(localoracle.New(lesson)))
			logger.Info("using script-based oracle")
		}

		engine := lessonloop.New(lesson, engineOpts...)
		server := httpAdapter.NewServer(engine, logger)
		defer server.Close()

		srv := &http.Server{
			Addr:    cfg.Addr,
			Handler: server.Handler(),
		}

		serverErrors := make(chan error, 1)
		go func() {
			fmt.Printf("Starting lessonloop server on %s\n", srv.Addr)
			fmt.Printf("Serving lesson: %s\n", scriptPath)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)

		case sig := <-shutdown:
			fmt.Printf("\nStart shutdown... Signal: %v\n", sig)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				fmt.Printf("Graceful shutdown did not complete in %v: %v\n", 5*time.Second, err)
				if err := srv.Close(); err != nil {
					fmt.Printf("Error killing server: %v\n", err)
				}
			}
			fmt.Println("Lessonloop server stopped gracefully")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("config", "c", "", "Path to a YAML config file")
	serveCmd.Flags().StringP("addr", "a", ":8080", "Listen address")
}
