package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/aeolun/chatwire/pkg/server"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] <port> <maxLoginAttempts>\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  port              TCP port to listen on\n")
	fmt.Fprintf(os.Stderr, "  maxLoginAttempts  consecutive login failures before lockout (1-5)\n\n")
	fmt.Fprintf(os.Stderr, "Flags:\n")
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", "chatwire.toml", "Path to config file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Usage = usage
	flag.Parse()

	cfg, err := server.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Positional arguments override file and environment settings.
	args := flag.Args()
	if len(args) > 2 {
		usage()
		os.Exit(2)
	}
	if len(args) >= 1 {
		port, err := strconv.Atoi(args[0])
		if err != nil {
			log.Fatalf("Invalid port %q: %v", args[0], err)
		}
		cfg.TCPPort = port
	}
	if len(args) == 2 {
		attempts, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatalf("Invalid maxLoginAttempts %q: %v", args[1], err)
		}
		cfg.MaxLoginAttempts = attempts
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	if *debug {
		srv.EnableDebugLogging()
	}

	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("Received %v, shutting down", sig)

	if err := srv.Stop(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
