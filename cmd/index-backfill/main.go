package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"searchahouse/internal/adapters/storage"
	"searchahouse/internal/backfill"
	"searchahouse/internal/changefeed"
	"searchahouse/internal/scheduler"
	"searchahouse/platform/config"
	"searchahouse/platform/logger"
)

func main() {
	typesFlag := flag.String("types", "property,agent,lead", "comma separated entity types to backfill")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	if err := cfg.RequireRedis(); err != nil {
		panic(err.Error())
	}

	log := logger.New(cfg.Env)

	types, err := parseTypes(*typesFlag)
	if err != nil {
		log.Error("invalid entity types", "error", err)
		os.Exit(2)
	}
	log.Info("starting index backfill", "bucket", cfg.GetSnapshotBucket(), "types", *typesFlag)

	if err := run(cfg, log, types); err != nil {
		log.Error("backfill failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger, types []changefeed.EntityType) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, err := storage.NewMinIOService(cfg)
	if err != nil {
		return fmt.Errorf("initialize storage service: %w", err)
	}
	if err := source.CheckBucket(ctx); err != nil {
		return fmt.Errorf("snapshot bucket %s: %w", source.Bucket(), err)
	}

	publisher, err := scheduler.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("initialize queue client: %w", err)
	}
	defer func() { _ = publisher.Close() }()

	res, err := backfill.New(source, publisher, log).Run(ctx, types)
	log.Info("backfill finished", "objects", res.Objects, "published", res.Published, "skipped", res.Skipped)
	return err
}

func parseTypes(raw string) ([]changefeed.EntityType, error) {
	var types []changefeed.EntityType
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		t, ok := changefeed.ParseEntityType(part)
		if !ok {
			return nil, errors.New("unknown entity type " + part)
		}
		types = append(types, t)
	}
	if len(types) == 0 {
		return nil, errors.New("no entity types given")
	}
	return types, nil
}
