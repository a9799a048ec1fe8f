package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/projectcore/changecontrol/internal/auditengine"
	"github.com/projectcore/changecontrol/internal/draftengine"
	"github.com/projectcore/changecontrol/internal/httpapi"
	"github.com/projectcore/changecontrol/internal/notify"
	"github.com/projectcore/changecontrol/internal/store"
	"github.com/projectcore/changecontrol/internal/toolregistry"
)

const (
	colorGreen = "\033[32m"
	colorReset = "\033[0m"
)

func main() {
	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envOr("DATABASE_URL", "data/changecontrol.db"), "SQLite database path")
	seedPath := flag.String("seed", os.Getenv("SEED_FILE"), "optional seed YAML file, loaded once on startup")
	natsPort := flag.Int("nats-port", envInt("NATS_PORT", 4222), "embedded NATS server port for audit event publishing")
	toastEnabled := flag.Bool("toast", os.Getenv("TOAST_NOTIFY") == "1", "enable desktop toast notifications on rollback (Windows only)")
	flag.Parse()

	// OPENAI_API_KEY / OPENAI_BASE_URL / OPENAI_MODEL are recognized but not
	// read directly by this process: they configure whatever external agent
	// harness calls GET /api/ai/tools and POST /api/ai/execute, not this
	// server, which never calls the OpenAI API itself.

	basePath, err := getBasePath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to determine base path: %v\n", err)
		os.Exit(1)
	}
	if !filepath.IsAbs(*dbPath) {
		*dbPath = filepath.Join(basePath, *dbPath)
	}
	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create data directory: %v\n", err)
		os.Exit(1)
	}

	s, err := store.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	now := func() int64 { return time.Now().Unix() }

	if *seedPath != "" {
		if err := s.LoadSeedFile(*seedPath, now()); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to load seed file %s: %v\n", *seedPath, err)
		} else {
			fmt.Printf("  Seed data loaded from %s\n", *seedPath)
		}
	}

	bus, err := notify.NewBus(*natsPort)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: embedded NATS server failed to start, audit events will not be published: %v\n", err)
		bus = nil
	} else {
		defer bus.Close()
		fmt.Printf("  Audit event bus listening at %s\n", bus.URL())
	}

	toaster := notify.NewToaster(*toastEnabled)

	draftEngine := draftengine.New(s, now)
	auditEngine := auditengine.New(s, bus, toaster, now)

	registry := toolregistry.New()
	toolregistry.RegisterBuiltins(registry, toolregistry.Deps{Store: s, AuditEngine: auditEngine})

	srv := httpapi.New(s, draftEngine, auditEngine, registry, bus, now, *dbPath)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: srv.Router(),
	}

	fmt.Print(colorGreen)
	printBanner()
	fmt.Print(colorReset)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	fmt.Printf("  Change-control API ready at http://localhost:%d\n", *port)

	select {
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		}
	case <-shutdown:
		fmt.Println()
		fmt.Println("Shutting down (signal received)...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Shutdown error: %v\n", err)
	}

	fmt.Println("Goodbye!")
}

func getBasePath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return os.Getwd()
	}
	dir := filepath.Dir(exe)
	if filepath.Base(dir) == "exe" || filepath.Base(filepath.Dir(dir)) == "go-build" {
		return os.Getwd()
	}
	if filepath.Base(dir) == "bin" {
		return filepath.Dir(dir), nil
	}
	return dir, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func printBanner() {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║              changecontrold                            ║")
	fmt.Println("  ║   Draft / Apply / Audit change-control core            ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()
}
