package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/velprakashr08-max/Frutify/internal/di"
)

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "migrate" || os.Args[1] == "seed") {
		runner, err := di.InitializeMigrationRunner()
		if err != nil {
			log.Fatal(err)
		}
		if err := runner.Run(); err != nil {
			log.Fatal(err)
		}
		if os.Args[1] == "seed" {
			path := ""
			if len(os.Args) > 2 {
				path = os.Args[2]
			}
			if err := runner.Seed(path); err != nil {
				log.Fatal(err)
			}
		}
		return
	}

	a, err := di.InitializeApp()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.Logger.Info("worker starting", "queues", len(a.Dispatchers), "ops_addr", a.OpsServer.Addr)
	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error("worker stopped", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error("shutdown incomplete", "error", err)
	}
}
