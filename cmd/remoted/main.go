package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"github.com/okena/remoted/internal/logger"
	"github.com/okena/remoted/internal/ptybus"
	"github.com/okena/remoted/internal/remoteserver"
	"github.com/okena/remoted/internal/workspace"
)

func main() {
	debug := flag.Bool("debug", false, "enable debug logging")
	projectPath := flag.String("project", "", "path of the initial project to register (defaults to the current directory)")
	flag.Parse()

	level := logger.LevelInfo
	if *debug {
		level = logger.LevelDebug
	}
	logger.Configure(level, *debug)

	path := *projectPath
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("resolving working directory")
		}
		path = cwd
	}

	bus := ptybus.New(ptybus.DefaultBufferSize)
	version := workspace.NewVersionWatch()
	owner := workspace.NewOwner(bus, version)
	owner.AddProject(&workspace.Project{
		ID:   uuid.NewString(),
		Name: filepath.Base(path),
		Path: path,
	})

	srv, err := remoteserver.New(owner)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("constructing server")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Logger.Info().Msg("shutting down")
		if err := srv.Shutdown(); err != nil {
			logger.Logger.Warn().Err(err).Msg("error during shutdown")
		}
	}()

	if err := srv.Listen(); err != nil {
		fmt.Fprintf(os.Stderr, "remoted: %v\n", err)
		os.Exit(1)
	}
}
