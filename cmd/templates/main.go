package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/openwaterlabs/abstraction-returns-backend/internal/infrastructure/archive"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/infrastructure/config"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/infrastructure/database"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/infrastructure/repository"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/infrastructure/telemetry"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/service/bulkreturns"
)

// Generates the bulk return template archive offline, for operators who
// distribute the CSVs outside the download endpoint.

var (
	refDate = flag.String("date", "", "Reference date inside the cycle (YYYY-MM-DD, default today)")
	summer  = flag.Bool("summer", false, "Use the summer cycle (1 Nov - 31 Oct)")
	outPath = flag.String("out", "bulk-return-templates.zip", "Output archive path")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, err := telemetry.SetupLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		slog.Error("failed to setup logger", "error", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()

	ref := time.Now().UTC()
	if *refDate != "" {
		ref, err = time.Parse("2006-01-02", *refDate)
		if err != nil {
			logger.Fatal("invalid date", zap.String("date", *refDate), zap.Error(err))
		}
	}
	cycle := bulkreturns.CycleFromDate(ref, *summer)

	pool, err := database.NewPool(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	repo := repository.NewReturnsRepository(pool, logger)
	dueReturns, err := repo.ListDue(ctx, cycle.StartDate, cycle.EndDate)
	if err != nil {
		logger.Fatal("failed to list due returns", zap.Error(err))
	}
	logger.Info("generating templates",
		zap.Time("cycle_start", cycle.StartDate),
		zap.Time("cycle_end", cycle.EndDate),
		zap.Bool("summer", cycle.IsSummer),
		zap.Int("due_returns", len(dueReturns)))

	out, err := os.Create(*outPath)
	if err != nil {
		logger.Fatal("failed to create output file", zap.Error(err))
	}

	builder := archive.NewZipBuilder(out, logger)
	err = bulkreturns.NewService(logger).GenerateTemplates(ctx, cycle, dueReturns,
		bulkreturns.Options{
			CompanyName:  cfg.Bulk.CompanyName,
			HelpFilePath: cfg.Bulk.HelpFilePath,
		}, builder)
	if err != nil {
		out.Close()
		os.Remove(*outPath)
		logger.Fatal("template generation failed", zap.Error(err))
	}
	if err := out.Close(); err != nil {
		logger.Fatal("failed to finish output file", zap.Error(err))
	}

	logger.Info("archive written", zap.String("path", *outPath))
}
