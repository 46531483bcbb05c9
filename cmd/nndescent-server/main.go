package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nndescent/nndescent/api"
	"github.com/nndescent/nndescent/config"
	"github.com/nndescent/nndescent/persistence"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to configuration file (default: ~/.nndescent.yml)")
		host       = flag.String("host", "", "Host to listen on (overrides config)")
		port       = flag.Int("port", 0, "Port to listen on (overrides config)")
		dbType     = flag.String("db", "", "Graph store type: memory, bolt, badger (overrides config)")
		dbPath     = flag.String("path", "", "Graph store path (overrides config)")
	)
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbType != "" {
		cfg.Persistence.Type = persistence.Type(*dbType)
	}
	if *dbPath != "" {
		cfg.Persistence.Path = *dbPath
	}

	fmt.Println("=== nndescent server ===")
	fmt.Printf("Configuration:\n")
	fmt.Printf("  Host: %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("  Graph store: %s", cfg.Persistence.Type)
	if cfg.Persistence.Path != "" {
		fmt.Printf(" (%s)", cfg.Persistence.Path)
	}
	fmt.Println()
	fmt.Printf("  Default metric: %s\n", cfg.Build.Metric)
	fmt.Println()

	factory := persistence.NewDefaultFactory()
	store, err := factory.CreateGraphStore(cfg.Persistence)
	if err != nil {
		log.Fatalf("Failed to create graph store: %v", err)
	}
	defer store.Close()

	serverConfig := cfg.Server.ToServerConfig()
	server := api.NewServer(store, serverConfig)

	go func() {
		if err := server.Start(); err != nil && err.Error() != "http: Server closed" {
			log.Fatalf("Server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	fmt.Println("Server stopped gracefully")
}
