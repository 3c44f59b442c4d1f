package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guiyumin/chnl/internal/core/config"
	"github.com/guiyumin/chnl/internal/core/extractor"
	"github.com/guiyumin/chnl/internal/core/log"
	"github.com/guiyumin/chnl/internal/core/version"
	"github.com/guiyumin/chnl/internal/core/viewers"
	"github.com/guiyumin/chnl/internal/server"
)

func main() {
	// Command-line flags
	port := flag.Int("port", 0, "HTTP listen port (default: 8080)")
	configPath := flag.String("config", "", "config file (default: "+config.SavePath()+")")
	showVersion := flag.Bool("version", false, "show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("chnl-server %s\n", version.Version)
		return
	}

	cfg := config.LoadOrDefault()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadFile(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	// flag > config > default
	if *port > 0 {
		cfg.Server.Port = *port
	}

	if err := log.Setup(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	srv := server.NewServer(
		cfg,
		extractor.BrowserOpener(extractor.BrowserOptionsFromConfig(cfg)),
		viewers.New(cfg.ViewerAPI, viewers.WithUserAgent(cfg.UserAgent)),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Infof("shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Stop(ctx); err != nil {
			log.Errorf("shutdown: %v", err)
		}
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Errorf("server error: %v", err)
		os.Exit(1)
	}
}
