// Command campus-charging-sim starts the campus charging simulator server.
//
// It supports two modes:
//  1. "server" (default) – runs the HTTP server exposing the REST API, the WebSocket
//     snapshot feed and, when mcp.enabled is set, an /mcp HTTP endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//
// Settings come from an optional JSON file (-config), CAMPUSSIM_* environment
// variables and a .env file, with command-line flags taking precedence.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wricardo/campus-charging-sim/api"
	"github.com/wricardo/campus-charging-sim/campus/config"
	"github.com/wricardo/campus-charging-sim/campus/engine"
	"github.com/wricardo/campus-charging-sim/campus/service"
	"github.com/wricardo/campus-charging-sim/campus/session"
	"github.com/wricardo/campus-charging-sim/transport/mcp"
	"github.com/wricardo/campus-charging-sim/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Campus Charging Simulator"
)

const cleanupInterval = time.Minute

// Command-line flags override file and environment settings when given.
var (
	configFile   = flag.String("config", "", "JSON settings file")
	port         = flag.Int("port", 8080, "HTTP server port")
	host         = flag.String("host", "", "HTTP server host")
	scenariosDir = flag.String("scenarios", "configs", "Directory containing scenario files")
	logLevel     = flag.String("log-level", "info", "Log level (trace, debug, info, warn, error, disabled)")
	mcpEnabled   = flag.Bool("mcp", false, "Expose the /mcp endpoint in server mode")
	version      = flag.Bool("version", false, "Show version information")
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] [MODE]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "%s v%s\n\n", AppName, Version)
		fmt.Fprintf(os.Stderr, "Available modes:\n")
		fmt.Fprintf(os.Stderr, "  server, http     Run HTTP server with API and WebSocket feed (default)\n")
		fmt.Fprintf(os.Stderr, "  stdio-mcp        Run MCP stdio server with internal HTTP server\n")
		fmt.Fprintf(os.Stderr, "  mcp              Alias for stdio-mcp\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment:\n")
		fmt.Fprintf(os.Stderr, "  %s_PORT, %s_SCENARIOSDIR, %s_LOGLEVEL, %s_MCP_ENABLED, ...\n",
			config.EnvPrefix, config.EnvPrefix, config.EnvPrefix, config.EnvPrefix)
	}
}

// main parses flags, initializes services, and starts the selected mode.
func main() {
	// Load .env file if it exists
	envErr := godotenv.Load()

	flag.Parse()

	if *version {
		fmt.Printf("%s v%s\n", AppName, Version)
		os.Exit(0)
	}

	if err := config.Load(*configFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load settings: %v\n", err)
		os.Exit(1)
	}
	applyFlags()

	// Logs go to stderr so stdio MCP keeps stdout to itself
	zerolog.SetGlobalLevel(config.LogLevel())
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		log.Warn().Err(envErr).Msg("error loading .env file")
	}

	mode := "server"
	if args := flag.Args(); len(args) > 0 {
		mode = args[0]
	}

	log.Info().Str("version", Version).Str("mode", mode).Msgf("starting %s", AppName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, runs, err := initializeServices(config.GetString(config.KeyScenariosDir), log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize services")
	}
	go cleanupRoutine(ctx, runs, config.GetDuration(config.KeyRunMaxAge), log.Logger)

	switch mode {
	case "stdio-mcp", "mcp-stdio", "mcp":
		runStdioMCPWithInternalServer(ctx, svc, log.Logger)

	case "server", "http":
		runHTTPServer(ctx, svc, log.Logger)

	default:
		log.Fatal().Msgf("unknown mode: %s. Use 'server' (default) or 'stdio-mcp'", mode)
	}
}

// applyFlags copies explicitly set flags over file and environment settings
func applyFlags() {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			config.Set(config.KeyPort, *port)
		case "host":
			config.Set(config.KeyHost, *host)
		case "scenarios":
			config.Set(config.KeyScenariosDir, *scenariosDir)
		case "log-level":
			config.Set(config.KeyLogLevel, *logLevel)
		case "mcp":
			config.Set(config.KeyMCPEnabled, *mcpEnabled)
		}
	})
}

// initializeServices wires the scenario and run managers into the simulation service.
func initializeServices(dir string, logger zerolog.Logger) (service.SimulationService, *session.Manager, error) {
	scenarios, err := config.NewManager(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create scenario manager: %w", err)
	}

	runs := session.NewManager(engine.WithLogger(logger.With().Str("component", "engine").Logger()))

	return service.NewSimulationService(runs, scenarios,
		service.WithTickInterval(config.GetDuration(config.KeyTickInterval)),
		service.WithLogger(logger.With().Str("component", "service").Logger()),
	), runs, nil
}

// cleanupRoutine periodically removes paused runs that have not been accessed
// within maxAge.
func cleanupRoutine(ctx context.Context, runs *session.Manager, maxAge time.Duration, logger zerolog.Logger) {
	if maxAge <= 0 {
		return
	}

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := runs.CleanupExpiredRuns(maxAge); removed > 0 {
				logger.Info().Int("removed", removed).Int("remaining", runs.Count()).Msg("cleaned up expired runs")
			}
		}
	}
}

// mcpHandler serves single JSON-RPC MCP messages over HTTP POST
func mcpHandler(client *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := client.GetMCPServer().HandleMessage(r.Context(), body)

		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(responseData)
	}
}

// localURL turns a listen address into a URL the process can call itself on
func localURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

// runHTTPServer starts the HTTP server with the REST API, the WebSocket hub and
// optionally an /mcp proxy endpoint. It returns after ctx is cancelled and the
// server has shut down.
func runHTTPServer(ctx context.Context, svc service.SimulationService, logger zerolog.Logger) {
	hub := websocket.NewHub(logger.With().Str("component", "websocket").Logger())
	go hub.Run(ctx)

	apiServer := api.NewServer(svc, hub, logger.With().Str("component", "api").Logger())

	addr := config.Addr()
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)

	if config.GetBool(config.KeyMCPEnabled) {
		baseURL := config.GetString(config.KeyMCPAPIBaseURL)
		if baseURL == "" {
			baseURL = localURL(addr)
		}
		mainRouter.HandleFunc("/mcp", mcpHandler(mcp.NewClient(baseURL)))
	}

	// No WriteTimeout: WebSocket connections are long lived
	httpServer := &http.Server{
		Addr:        addr,
		Handler:     mainRouter,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()

		url := localURL(addr)
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		logger.Info().Msgf("REST API: %s/api", url)
		logger.Info().Msgf("WebSocket: %s/ws?simulation=<simulation_id>", strings.Replace(url, "http", "ws", 1))
		if config.GetBool(config.KeyMCPEnabled) {
			logger.Info().Msgf("MCP endpoint: %s/mcp", url)
		}

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	wg.Wait()
	logger.Info().Msg("server stopped")
}

// runStdioMCPWithInternalServer runs an MCP stdio server.
// It targets mcp.apiBaseUrl when set, then an API already listening on the
// configured port, and otherwise starts an internal HTTP API on a random
// loopback port.
func runStdioMCPWithInternalServer(ctx context.Context, svc service.SimulationService, logger zerolog.Logger) {
	baseURL := config.GetString(config.KeyMCPAPIBaseURL)

	if baseURL == "" {
		externalURL := localURL(config.Addr())
		logger.Info().Msgf("checking for external API server at %s", externalURL)

		testClient := &http.Client{Timeout: 2 * time.Second}
		resp, err := testClient.Get(externalURL + "/health")
		if err == nil {
			resp.Body.Close()
		}
		if err == nil && resp.StatusCode < 500 {
			logger.Info().Msgf("external API server found at %s, using it for MCP", externalURL)
			baseURL = externalURL
		} else {
			listener, err := net.Listen("tcp", "127.0.0.1:0")
			if err != nil {
				logger.Fatal().Err(err).Msg("failed to get available port")
			}

			hub := websocket.NewHub(logger.With().Str("component", "websocket").Logger())
			go hub.Run(ctx)

			httpServer := &http.Server{
				Handler: api.NewServer(svc, hub, logger.With().Str("component", "api").Logger()),
			}
			go func() {
				if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
					logger.Error().Err(err).Msg("internal HTTP server error")
				}
			}()
			defer httpServer.Close()

			baseURL = "http://" + listener.Addr().String()
			logger.Info().Msgf("started internal HTTP server on %s for MCP stdio", baseURL)
		}
	}

	mcpClient := mcp.NewClient(baseURL)
	logger.Info().Str("api", baseURL).Msg("MCP stdio server ready")

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		logger.Fatal().Err(err).Msg("MCP stdio server error")
	}
}
