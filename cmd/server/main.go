// LineRelay server - a multi-client line-oriented chat relay.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/linerelay/linerelay/internal/chat"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "linerelay-server: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("linerelay-server", flag.ContinueOnError)

	configPath := fs.StringP("config", "c", "", "Path to YAML configuration file")
	listenAddr := fs.StringP("listen", "l", "", "TCP listen address (overrides config)")
	usersFile := fs.StringP("users", "u", "", "Credential file path (overrides config)")
	adminLabel := fs.String("admin-label", "", "Prefix for operator broadcasts (overrides config)")
	wsEnabled := fs.Bool("ws", false, "Enable the WebSocket gateway")
	wsListen := fs.String("ws-listen", "", "WebSocket gateway listen address (implies --ws)")

	var showHelp bool
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if showHelp {
		fs.PrintDefaults()
		return nil
	}

	cfg := chat.DefaultConfig()
	if *configPath != "" {
		loaded, err := chat.LoadConfigFile(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	cfg = chat.ApplyEnv(cfg)

	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *usersFile != "" {
		cfg.UsersFile = *usersFile
	}
	if *adminLabel != "" {
		cfg.AdminLabel = *adminLabel
	}
	if *wsEnabled {
		cfg.WebSocket.Enabled = true
	}
	if *wsListen != "" {
		cfg.WebSocket.Enabled = true
		cfg.WebSocket.ListenAddr = *wsListen
	}

	fmt.Println("Starting LineRelay server...")

	store := chat.NewFileCredentialStore(cfg.UsersFile)
	server := chat.NewServer(cfg, store)
	if err := server.Start(); err != nil {
		return err
	}

	var gateway *chat.Gateway
	if cfg.WebSocket.Enabled {
		gateway = chat.NewGateway(server, cfg.WebSocket)
		if err := gateway.Start(); err != nil {
			shutdownErr := server.Shutdown(cfg.ShutdownTimeout())
			if shutdownErr != nil {
				log.Printf("Error shutting down after gateway bind failure: %v", shutdownErr)
			}
			return err
		}
	}

	// The operator console and OS signals both end in the same shutdown
	// path; whichever fires first wins and the other side finds the server
	// already closed.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console := chat.NewConsole(server, cfg.AdminLabel)
	consoleStopped := make(chan bool, 1)
	go func() {
		consoleStopped <- console.Run(os.Stdin)
	}()

	select {
	case <-ctx.Done():
		log.Println("Signal received, shutting down")
	case stopped := <-consoleStopped:
		if !stopped {
			// Stdin ended without STOP; keep serving until a signal lands.
			log.Println("Admin input closed, waiting for shutdown signal")
			<-ctx.Done()
		}
	}
	if err := server.Shutdown(cfg.ShutdownTimeout()); err != nil {
		log.Printf("Shutdown did not drain cleanly: %v", err)
	}

	if gateway != nil {
		if err := gateway.Shutdown(cfg.ShutdownTimeout()); err != nil {
			log.Printf("Gateway shutdown error: %v", err)
		}
	}
	return nil
}
