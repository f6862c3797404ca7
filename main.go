// Command dicemerge starts the Dice Merge game server.
//
// It supports these commands:
//  1. "server" (default) – runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//  3. "scores" – prints the leaderboard from the configured score store
//
// Settings come from DICEMERGE_* environment variables (and a .env file);
// flags override them. Optional ngrok tunneling gives easy external access
// during development.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
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
	"github.com/urfave/cli/v3"
	"github.com/wricardo/mcp-training/dicemerge/api"
	"github.com/wricardo/mcp-training/dicemerge/game/config"
	"github.com/wricardo/mcp-training/dicemerge/game/engine"
	"github.com/wricardo/mcp-training/dicemerge/game/scores"
	"github.com/wricardo/mcp-training/dicemerge/game/scores/sqlite"
	"github.com/wricardo/mcp-training/dicemerge/game/service"
	"github.com/wricardo/mcp-training/dicemerge/game/session"
	"github.com/wricardo/mcp-training/dicemerge/game/settings"
	"github.com/wricardo/mcp-training/dicemerge/transport/mcp"
	"github.com/wricardo/mcp-training/dicemerge/transport/websocket"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Dice Merge Game Server"
)

// main loads .env, then hands off to the CLI.
func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	} else {
		log.Println("Loaded environment variables from .env file")
	}

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

// newApp builds the command tree. The root action runs the HTTP server.
func newApp() *cli.Command {
	return &cli.Command{
		Name:    "dicemerge",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Usage: "HTTP server port (DICEMERGE_PORT)"},
			&cli.StringFlag{Name: "host", Usage: "HTTP server host (DICEMERGE_HOST)"},
			&cli.StringFlag{Name: "config-dir", Usage: "Directory containing game configurations (DICEMERGE_CONFIG_DIR)"},
			&cli.StringFlag{Name: "default-config", Usage: "Config id for sessions created without one (DICEMERGE_DEFAULT_CONFIG)"},
			&cli.StringFlag{Name: "sessions-dir", Usage: "Directory for session snapshots (DICEMERGE_SESSIONS_DIR)"},
			&cli.StringFlag{Name: "score-store", Usage: "Score store backend: file, sqlite or memory (DICEMERGE_SCORE_STORE)"},
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging"},
			&cli.BoolFlag{Name: "ngrok", Usage: "Enable ngrok tunnel (NGROK_ENABLED)"},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "Ngrok auth token (NGROK_AUTHTOKEN)"},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain (NGROK_DOMAIN)"},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("debug") {
				log.SetFlags(log.LstdFlags | log.Lshortfile)
			} else {
				log.SetFlags(log.LstdFlags)
			}
			return ctx, nil
		},
		Action: runServerCommand,
		Commands: []*cli.Command{
			{
				Name:    "server",
				Aliases: []string{"http"},
				Usage:   "Run HTTP server with API, WebSocket, and MCP endpoint",
				Action:  runServerCommand,
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "Run MCP stdio server with internal HTTP server",
				Action:  runStdioCommand,
			},
			{
				Name:  "scores",
				Usage: "Print the leaderboard from the score store",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: scores.DefaultTopLimit, Usage: "Number of entries"},
				},
				Action: runScoresCommand,
			},
		},
	}
}

// loadSettings reads the environment and applies any flags that were set.
func loadSettings(cmd *cli.Command) (settings.Settings, error) {
	s, err := settings.Load()
	if err != nil {
		return s, err
	}

	if cmd.IsSet("port") {
		s.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("host") {
		s.Host = cmd.String("host")
	}
	if cmd.IsSet("config-dir") {
		s.ConfigDir = cmd.String("config-dir")
	}
	if cmd.IsSet("default-config") {
		s.DefaultConfig = cmd.String("default-config")
	}
	if cmd.IsSet("sessions-dir") {
		s.SessionsDir = cmd.String("sessions-dir")
	}
	if cmd.IsSet("score-store") {
		s.ScoreStore = strings.ToLower(cmd.String("score-store"))
	}
	if cmd.IsSet("ngrok") {
		s.NgrokEnabled = cmd.Bool("ngrok")
	}
	if cmd.IsSet("ngrok-auth") {
		s.NgrokAuthToken = cmd.String("ngrok-auth")
	}
	if cmd.IsSet("ngrok-domain") {
		s.NgrokDomain = cmd.String("ngrok-domain")
	}

	return s, s.Validate()
}

func runServerCommand(ctx context.Context, cmd *cli.Command) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	log.Printf("Starting %s v%s (mode: server)", AppName, Version)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := initializeServices(ctx, s)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer svc.Close()

	return runHTTPServer(ctx, s, svc.game)
}

func runStdioCommand(ctx context.Context, cmd *cli.Command) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	log.SetOutput(os.Stderr)
	log.Printf("Starting %s v%s (mode: stdio-mcp)", AppName, Version)

	svc, err := initializeServices(ctx, s)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer svc.Close()

	return runStdioMCPWithInternalServer(s, svc.game)
}

func runScoresCommand(ctx context.Context, cmd *cli.Command) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	store, closeStore, err := openScoreStore(s)
	if err != nil {
		return err
	}
	defer closeStore()

	records, err := store.Top(ctx, int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No scores recorded yet")
		return nil
	}
	for i, rec := range records {
		status := ""
		if rec.Final {
			status = " (final)"
		}
		fmt.Printf("%2d. %6d  highest %-3d %-10s session %s%s\n",
			i+1, rec.Score, rec.HighestDie, rec.ConfigName, rec.SessionID, status)
	}
	return nil
}

// mcpHandler serves MCP JSON-RPC messages posted to /mcp.
func mcpHandler(mcpClient *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	}
}

// newRouter mounts the API server at root and the MCP endpoint at /mcp.
func newRouter(apiServer http.Handler, mcpClient *mcp.Client) *http.ServeMux {
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.HandleFunc("/mcp", mcpHandler(mcpClient))
	return mainRouter
}

// runHTTPServer starts the HTTP server with REST API, WebSocket hub, and an /mcp proxy endpoint.
// If ngrok is enabled, it also provisions a public tunnel. It returns once ctx is cancelled.
func runHTTPServer(ctx context.Context, s settings.Settings, gameService service.GameService) error {
	hub := websocket.NewHub()
	go hub.Run()
	defer hub.Close()

	addr := s.Addr()
	apiServer := api.NewServer(gameService, hub)
	mcpClient := mcp.NewClient(fmt.Sprintf("http://%s", addr))
	mainRouter := newRouter(apiServer, mcpClient)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Printf("HTTP server listening on %s", addr)
		log.Printf("REST API: http://%s/api", addr)
		log.Printf("WebSocket: ws://%s/ws?session=<session_id>", addr)
		log.Printf("MCP endpoint: http://%s/mcp", addr)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	if s.NgrokEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrokTunnel(ctx, s, mainRouter)
		}()
	}

	var err error
	select {
	case <-ctx.Done():
		log.Printf("Shutting down...")
	case err = <-serveErr:
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Printf("HTTP server shutdown error: %v", shutdownErr)
	}

	wg.Wait()
	log.Println("Server stopped")
	return err
}

// runNgrokTunnel serves handler through an ngrok endpoint until ctx is done.
func runNgrokTunnel(ctx context.Context, s settings.Settings, handler http.Handler) {
	if s.NgrokAuthToken == "" {
		log.Println("WARNING: Ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return
	}

	log.Println("Starting ngrok tunnel...")

	var tunnel ngrokConfig.Tunnel
	if s.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(s.NgrokDomain))
		log.Printf("Using custom ngrok domain: %s", s.NgrokDomain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(s.NgrokAuthToken))
	if err != nil {
		log.Printf("Failed to start ngrok tunnel: %v", err)
		return
	}

	tunnelServer := &http.Server{Handler: handler}
	go func() {
		<-ctx.Done()
		tunnelServer.Close()
	}()

	ngrokURL := tun.URL()
	log.Printf("🚀 Ngrok tunnel established: %s", ngrokURL)
	log.Printf("  REST API (ngrok): %s/api", ngrokURL)
	log.Printf("  WebSocket (ngrok): %s/ws?session=<session_id>", ngrokURL)
	log.Printf("  MCP endpoint (ngrok): %s/mcp", ngrokURL)

	if err := tunnelServer.Serve(tun); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("Ngrok server error: %v", err)
	}
	log.Println("Ngrok tunnel closed")
}

// services groups what initializeServices wires together.
type services struct {
	game        service.GameService
	sessions    *session.Manager
	persistence *session.FilePersistence
	store       scores.Store
	recorder    *scores.Recorder
	closeStore  func() error
}

// Close flushes every session and held score snapshot, then releases the
// score store.
func (s *services) Close() {
	if err := s.sessions.SaveAllSessions(); err != nil {
		log.Printf("Warning: Failed to save sessions on shutdown: %v", err)
	}
	if err := s.recorder.Close(context.Background()); err != nil {
		log.Printf("Warning: Failed to flush scores on shutdown: %v", err)
	}
	if err := s.closeStore(); err != nil {
		log.Printf("Warning: Failed to close score store: %v", err)
	}
}

// openScoreStore opens the backend named by the settings.
func openScoreStore(s settings.Settings) (scores.Store, func() error, error) {
	switch strings.ToLower(s.ScoreStore) {
	case settings.StoreSQLite:
		store, err := sqlite.Open(s.ScoresDB)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open score database: %w", err)
		}
		return store, store.Close, nil
	case settings.StoreMemory:
		store := scores.NewMemoryStore()
		return store, store.Close, nil
	default:
		store, err := scores.NewFileStore(s.ScoresFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open score file: %w", err)
		}
		return store, store.Close, nil
	}
}

// initializeServices wires config, persistence, sessions, scores and the
// game service. Cleanup and filesystem sync run until ctx is done.
func initializeServices(ctx context.Context, s settings.Settings) (*services, error) {
	// Create config manager first (needed for persistence)
	configManager, err := config.NewManager(s.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}
	if s.DefaultConfig != "" {
		if err := configManager.SetDefault(s.DefaultConfig); err != nil {
			return nil, fmt.Errorf("default config %q: %w", s.DefaultConfig, err)
		}
	}

	var engineOpts []engine.Option
	if s.Seed != 0 {
		engineOpts = append(engineOpts, engine.WithSeed(s.Seed))
		log.Printf("Using fixed dice seed %d", s.Seed)
	}

	persistence, err := session.NewFilePersistence(s.SessionsDir, configManager, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create session persistence: %w", err)
	}

	sessionManager := session.NewManagerWithPersistence(persistence, engineOpts...)
	if err := sessionManager.LoadPersistedSessions(); err != nil {
		log.Printf("Warning: Failed to load persisted sessions: %v", err)
	}

	store, closeStore, err := openScoreStore(s)
	if err != nil {
		return nil, err
	}
	recorder := scores.NewRecorder(store, s.SnapshotInterval)
	log.Printf("Score store: %s (snapshot interval %s)", s.ScoreStore, s.SnapshotInterval)

	gameService := service.NewGameService(sessionManager, configManager, service.WithRecorder(recorder))

	go sessionCleanupRoutine(ctx, sessionManager, recorder, s.CleanupInterval, s.SessionMaxAge)
	go filesystemSyncRoutine(ctx, sessionManager, persistence, s.SyncInterval)

	return &services{
		game:        gameService,
		sessions:    sessionManager,
		persistence: persistence,
		store:       store,
		recorder:    recorder,
		closeStore:  closeStore,
	}, nil
}

// sessionCleanupRoutine periodically removes sessions that have not been accessed
// within maxAge.
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager, recorder *scores.Recorder, every, maxAge time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := expireSessions(ctx, manager, recorder, maxAge); removed > 0 {
				log.Printf("Cleaned up %d expired sessions", removed)
			}
		}
	}
}

// expireSessions drops idle sessions and writes the held score snapshot
// of each expired run.
func expireSessions(ctx context.Context, manager *session.Manager, recorder *scores.Recorder, maxAge time.Duration) int {
	expired := manager.ExpireSessions(maxAge)
	for _, sess := range expired {
		if err := recorder.Flush(ctx, sess.Engine.GetState().RunID); err != nil {
			log.Printf("Warning: Failed to settle score for expired session %s: %v", sess.ID, err)
		}
	}
	return len(expired)
}

// filesystemSyncRoutine removes sessions from memory when their snapshot
// files are deleted on disk, then writes access times marked since the
// last tick.
func filesystemSyncRoutine(ctx context.Context, manager *session.Manager, persistence session.SessionPersistence, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if pruned := syncWithFilesystem(manager, persistence); pruned > 0 {
			log.Printf("Filesystem sync: pruned %d orphaned sessions from memory", pruned)
		}
		manager.SaveAccessTimes()
	}
}

func syncWithFilesystem(manager *session.Manager, persistence session.SessionPersistence) int {
	if persistence == nil {
		return 0
	}
	pruned := 0
	for _, sess := range manager.List() {
		if persistence.Exists(sess.ID) {
			continue
		}
		if err := manager.DeleteFromMemory(sess.ID); err == nil {
			pruned++
			log.Printf("Pruned session %s from memory (file deleted)", sess.ID)
		}
	}
	return pruned
}

// runStdioMCPWithInternalServer runs an MCP stdio server.
// It tries to reuse an external API at the configured address; if unavailable, it
// starts a minimal internal HTTP API bound to a random loopback port and targets that.
func runStdioMCPWithInternalServer(s settings.Settings, gameService service.GameService) error {
	externalURL := fmt.Sprintf("http://%s", s.Addr())
	log.Printf("Checking for external API server at %s...", externalURL)

	baseURL := externalURL
	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(externalURL + "/api/health")
	if err == nil && resp.StatusCode < 500 {
		resp.Body.Close()
		log.Printf("External API server found at %s, using it for MCP", externalURL)
	} else {
		log.Printf("No external API server found, starting internal HTTP server")

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		internalAddr := listener.Addr().String()
		log.Printf("Starting internal HTTP server on %s for MCP stdio", internalAddr)

		hub := websocket.NewHub()
		go hub.Run()
		defer hub.Close()

		httpServer := &http.Server{Handler: api.NewServer(gameService, hub)}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Internal HTTP server error: %v", err)
			}
		}()
		defer httpServer.Close()

		baseURL = fmt.Sprintf("http://%s", internalAddr)
	}

	mcpClient := mcp.NewClient(baseURL)
	log.Printf("MCP stdio server ready (API at %s)", baseURL)

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}
