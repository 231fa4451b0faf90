package main

import (
	"context"
	"log"
	"os"

	"github.com/okatashev/nimbus/internal/buildinfo"
	"github.com/okatashev/nimbus/internal/client/cli"
	"github.com/okatashev/nimbus/internal/client/config"
	"github.com/okatashev/nimbus/internal/logging"
)

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()

	logger, err := logging.NewDefault(cfg.LogLevel)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app.Run(ctx)
}
