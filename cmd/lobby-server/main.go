package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/rwe-net/lobby-server/config"
	"github.com/rwe-net/lobby-server/game"
	"github.com/rwe-net/lobby-server/globals"
	"github.com/rwe-net/lobby-server/ws"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

var configPath = pflag.StringP("config", "c", "", "path to config file or directory")

func main() {
	flagSet := config.GetFlagSet()
	pflag.CommandLine.AddFlagSet(flagSet)
	pflag.Parse()

	globalConfig, err := config.ReadConfiguration(*configPath, flagSet)
	if err != nil {
		panic(err)
	}
	if globalConfig.LogLevel != "" {
		globals.AppLogger.SetLevel(hclog.LevelFromString(globalConfig.LogLevel))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := game.NewRegistry()
	server := ws.NewServer(globalConfig, registry)

	httpServer := &http.Server{
		Addr:    globalConfig.ServerConfig.Addr,
		Handler: server.Routes(),
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		server.Master.Run(gCtx)
		return nil
	})
	g.Go(func() error {
		globals.AppLogger.Info("listening", "addr", globalConfig.ServerConfig.Addr)
		var err error
		if globalConfig.ServerConfig.SSLCert != "" && globalConfig.ServerConfig.SSLKey != "" {
			err = httpServer.ListenAndServeTLS(globalConfig.ServerConfig.SSLCert, globalConfig.ServerConfig.SSLKey)
		} else {
			err = httpServer.ListenAndServe()
		}
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gCtx.Done()
		return httpServer.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		globals.AppLogger.Error("stopped listening", "error", err)
		os.Exit(1)
	}
}
