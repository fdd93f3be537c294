package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/yegors/flightwx/internal/airports"
	"github.com/yegors/flightwx/internal/api"
	"github.com/yegors/flightwx/internal/avwx"
	"github.com/yegors/flightwx/internal/config"
	"github.com/yegors/flightwx/internal/flightdata"
	"github.com/yegors/flightwx/internal/weather"
	"github.com/yegors/flightwx/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	host := flag.String("host", "", "Host address to bind to (overrides server.host)")
	port := flag.Int("port", 0, "HTTP port to listen on (overrides server.port)")
	flag.Parse()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	configSource := cfg.Path
	if configSource == "" {
		configSource = "defaults"
	}
	log.Info("Starting flightwx server",
		logger.String("version", Version),
		logger.String("config_path", configSource),
	)
	if cfg.AVWX.Token == "" {
		log.Warn("No AVWX token configured, METAR requests will rely on the flight data fallback")
	}

	// Airport directory is optional
	var directory *airports.Directory
	if cfg.Airports.DBPath != "" {
		directory, err = airports.Load(cfg.Airports.DBPath)
		if err != nil {
			log.Error("Failed to load airports database", logger.String("path", cfg.Airports.DBPath), logger.Error(err))
			os.Exit(1)
		}
		log.Info("Airports database loaded",
			logger.String("path", cfg.Airports.DBPath),
			logger.Int("airports", directory.Len()))
	} else {
		log.Info("No airports database configured, airport codes are forwarded unchanged")
	}

	// Upstream clients live for the whole process
	avwxClient := avwx.NewClient(avwx.Config{
		BaseURL:      cfg.AVWX.BaseURL,
		Token:        cfg.AVWX.Token,
		Timeout:      cfg.AVWXTimeout(),
		HistoryHours: cfg.AVWX.HistoryHours,
	}, log)

	flightClient := flightdata.NewClient(flightdata.Config{
		APIBaseURL:  cfg.FlightData.APIBaseURL,
		SiteBaseURL: cfg.FlightData.SiteBaseURL,
		Token:       cfg.FlightData.Token,
		UserAgent:   cfg.FlightData.UserAgent,
		Timeout:     cfg.FlightDataTimeout(),
	}, log)

	resolver := weather.NewResolver(avwxClient, flightClient, directory, log)

	// Create API router
	router := api.NewRouter(resolver, flightClient, cfg, Version, log)
	handler := router.Routes()

	// --- Setup for multiple HTTP servers ---
	var servers []*http.Server
	allPorts := []int{cfg.Server.Port}
	if len(cfg.Server.AdditionalPorts) > 0 {
		allPorts = append(allPorts, cfg.Server.AdditionalPorts...)
	}

	log.Info("Configured listener ports", logger.Any("ports", allPorts))

	// Start a server for each configured port
	for _, p := range allPorts {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, p)
		server := &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
			IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
		}
		servers = append(servers, server)

		go func(s *http.Server) {
			log.Info("Starting HTTP server", logger.String("addr", s.Addr))
			if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("HTTP server error on startup", logger.String("addr", s.Addr), logger.Error(err))
			}
		}(server)
	}

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	// Shutdown all HTTP servers
	log.Info("Shutting down HTTP servers...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	var wg sync.WaitGroup
	for _, s := range servers {
		wg.Add(1)
		go func(srv *http.Server) {
			defer wg.Done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("HTTP server shutdown error", logger.String("addr", srv.Addr), logger.Error(err))
			} else {
				log.Info("HTTP server shutdown complete", logger.String("addr", srv.Addr))
			}
		}(s)
	}
	wg.Wait()

	log.Info("Server fully stopped")
}
