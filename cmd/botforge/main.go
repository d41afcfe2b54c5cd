// ABOUTME: Entry point for the botforge server
// ABOUTME: Serves the bot platform API and provides setup subcommands

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/botforge/botforge/internal/auth"
	"github.com/botforge/botforge/internal/bots"
	"github.com/botforge/botforge/internal/chat"
	"github.com/botforge/botforge/internal/config"
	"github.com/botforge/botforge/internal/gateway"
	"github.com/botforge/botforge/internal/llm"
	"github.com/botforge/botforge/internal/permission"
	"github.com/botforge/botforge/internal/search"
	"github.com/botforge/botforge/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
 _           _    __
| |__   ___ | |_ / _| ___  _ __ __ _  ___
| '_ \ / _ \| __| |_ / _ \| '__/ _' |/ _ \
| |_) | (_) | |_|  _| (_) | | | (_| |  __/
|_.__/ \___/ \__|_|  \___/|_|  \__, |\___|
                               |___/
`

// getConfigPath returns the path to the botforge config file.
// Priority: BOTFORGE_CONFIG env var > XDG_CONFIG_HOME/botforge/botforge.yaml > ~/.config/botforge/botforge.yaml
func getConfigPath() string {
	if envPath := os.Getenv("BOTFORGE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "botforge.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "botforge", "botforge.yaml")
}

// getDataPath returns the path to the botforge data directory.
// Priority: XDG_DATA_HOME/botforge > ~/.local/share/botforge
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "botforge")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: botforge <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                    Start the API server")
		fmt.Println("  init                     Create a new config file interactively")
		fmt.Println("  bootstrap --email EMAIL  Create config and the first admin account")
		fmt.Println("  health                   Check server health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "bootstrap":
		err = runBootstrap(ctx)
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database: %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Model:    %s\n", cfg.LLM.DefaultModel)
	fmt.Println()

	logger.Info("starting botforge",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	streamer, err := llm.NewGeminiStreamer(ctx, cfg.LLM.APIKey)
	if err != nil {
		return fmt.Errorf("creating streamer: %w", err)
	}
	defer streamer.Close()

	resolver := permission.NewResolver(s)
	gw := gateway.New(gateway.Options{
		Store:    s,
		Registry: bots.NewRegistry(s, resolver),
		Driver:   chat.NewDriver(s, resolver, streamer, cfg.LLM.DefaultModel),
		Sessions: chat.NewSessions(s),
		Search:   search.New(s),
		Verifier: auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret)),
		TokenTTL: cfg.Auth.TokenTTL,
	})

	server := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: gw.Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", strings.TrimPrefix(cfg.Server.HTTPAddr, ":"))
	if strings.HasPrefix(cfg.Server.HTTPAddr, ":") {
		url = fmt.Sprintf("http://localhost%s/health", cfg.Server.HTTPAddr)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

// runBootstrap performs first-time setup:
// 1. Creates a config file with a random JWT secret (if not exists)
// 2. Creates the database and the first admin account
// 3. Generates a bearer token for that account
//
// One-command setup: botforge bootstrap --email you@example.com --password secret
func runBootstrap(ctx context.Context) error {
	var email, password, displayName string
	args := os.Args[2:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--email" || arg == "-e":
			if i+1 >= len(args) {
				return fmt.Errorf("--email requires a value")
			}
			email = args[i+1]
			i++
		case strings.HasPrefix(arg, "--email="):
			email = strings.TrimPrefix(arg, "--email=")
		case arg == "--password" || arg == "-p":
			if i+1 >= len(args) {
				return fmt.Errorf("--password requires a value")
			}
			password = args[i+1]
			i++
		case strings.HasPrefix(arg, "--password="):
			password = strings.TrimPrefix(arg, "--password=")
		case arg == "--name" || arg == "-n":
			if i+1 >= len(args) {
				return fmt.Errorf("--name requires a value")
			}
			displayName = args[i+1]
			i++
		case strings.HasPrefix(arg, "--name="):
			displayName = strings.TrimPrefix(arg, "--name=")
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("--email flag with a valid address is required")
	}
	if len(password) < 8 {
		return fmt.Errorf("--password flag with at least 8 characters is required")
	}
	if displayName == "" {
		displayName = strings.Split(email, "@")[0]
	}

	configPath := getConfigPath()
	dataPath := getDataPath()
	dbPath := filepath.Join(dataPath, "botforge.db")

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	var cfg *config.Config
	var jwtSecret string

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Generate random JWT secret
		secretBytes := make([]byte, 32)
		if _, err := rand.Read(secretBytes); err != nil {
			return fmt.Errorf("generating JWT secret: %w", err)
		}
		jwtSecret = base64.StdEncoding.EncodeToString(secretBytes)

		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
		if err := os.MkdirAll(dataPath, 0755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}

		configContent := fmt.Sprintf(`# botforge configuration
# Generated by botforge bootstrap

server:
  http_addr: "localhost:8080"

database:
  path: "%s"

auth:
  jwt_secret: "%s"
  token_ttl: "720h"

llm:
  api_key: "${GEMINI_API_KEY}"
  default_model: "gemini-2.0-flash"

logging:
  level: "info"
  format: "text"
`, dbPath, jwtSecret)

		if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}

		green.Printf("  ✓ Created config: %s\n", configPath)

		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	} else {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		jwtSecret = cfg.Auth.JWTSecret

		cyan.Printf("  Using existing config: %s\n", configPath)
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	green.Printf("  ✓ Database: %s\n", cfg.Database.Path)

	count, err := s.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("checking users: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("bootstrap already complete: %d user(s) exist", count)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now().UTC()
	user := &store.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		DisplayName:  displayName,
		IsActive:     true,
		IsAdmin:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("creating user: %w", err)
	}

	green.Printf("  ✓ Created admin account: %s\n", email)

	verifier := auth.NewJWTVerifier([]byte(jwtSecret))
	tokenTTL := 30 * 24 * time.Hour
	expiresAt := time.Now().Add(tokenTTL).UTC()

	token, err := verifier.Generate(user.ID, email, tokenTTL)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	tokenPath := filepath.Join(filepath.Dir(configPath), "token")
	if err := os.WriteFile(tokenPath, []byte(token), 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}

	green.Printf("  ✓ Saved token: %s\n", tokenPath)

	fmt.Println()
	green.Println("  Bootstrap complete!")
	fmt.Println()
	cyan.Println("  Admin Account")
	cyan.Println("  -------------")
	fmt.Printf("  ID:    %s\n", user.ID)
	fmt.Printf("  Email: %s\n", email)
	fmt.Printf("  Token: %s (expires %s)\n", tokenPath, expiresAt.Format("Jan 02, 2006"))
	fmt.Println()

	yellow.Println("  Ready to go:")
	fmt.Println("    botforge serve         # start the server")
	fmt.Println("    botforge-admin me      # verify your identity")
	fmt.Println()

	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("botforge configuration setup")
	fmt.Println("============================")
	fmt.Println()

	defaultConfigPath := getConfigPath()
	defaultDataPath := getDataPath()
	defaultDbPath := filepath.Join(defaultDataPath, "botforge.db")

	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "localhost:8080")

	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", defaultDbPath)

	fmt.Println("\n--- Auth Configuration ---")
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return fmt.Errorf("generating JWT secret: %w", err)
	}
	defaultSecret := base64.StdEncoding.EncodeToString(secretBytes)
	jwtSecret := prompt(reader, "JWT secret (random default)", defaultSecret)
	tokenTTL := prompt(reader, "Token TTL", "720h")

	fmt.Println("\n--- Model Configuration ---")
	apiKey := prompt(reader, "Gemini API key (or ${GEMINI_API_KEY})", "${GEMINI_API_KEY}")
	defaultModel := prompt(reader, "Default model", "gemini-2.0-flash")

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# botforge configuration\n")
	cfg.WriteString("# Generated by botforge init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: \"%s\"\n", httpAddr))
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", dbPath))
	cfg.WriteString("\n")

	cfg.WriteString("auth:\n")
	cfg.WriteString(fmt.Sprintf("  jwt_secret: \"%s\"\n", jwtSecret))
	cfg.WriteString(fmt.Sprintf("  token_ttl: \"%s\"\n", tokenTTL))
	cfg.WriteString("\n")

	cfg.WriteString("llm:\n")
	cfg.WriteString(fmt.Sprintf("  api_key: \"%s\"\n", apiKey))
	cfg.WriteString(fmt.Sprintf("  default_model: \"%s\"\n", defaultModel))
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  botforge serve\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
