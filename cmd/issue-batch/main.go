package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/akash768145s/BlockCred-sub000/internal/app"
	"github.com/akash768145s/BlockCred-sub000/internal/config"
	"github.com/akash768145s/BlockCred-sub000/internal/domain"
	"github.com/akash768145s/BlockCred-sub000/internal/generator"
	"github.com/akash768145s/BlockCred-sub000/internal/logging"
	"github.com/akash768145s/BlockCred-sub000/internal/service"
)

var errMissingDataset = errors.New("dataset not found")

func main() {
	var (
		datasetDir  = flag.String("dataset-dir", "./seed-data", "Directory containing issuers.json and certificates.json")
		issuersPath = flag.String("issuers", "", "Path to issuers.json (overrides dataset-dir)")
		certsPath   = flag.String("certificates", "", "Path to certificates.json (overrides dataset-dir)")
		workers     = flag.Int("workers", 4, "Number of concurrent issuance workers")
		skipIssuers = flag.Bool("skip-issuers", false, "Assume issuers are already registered")
	)
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Component(logging.New(cfg.Logging), "issue-batch")

	issuerFile, certFile, err := resolveDatasetPaths(*datasetDir, *issuersPath, *certsPath)
	if err != nil {
		logger.Error("dataset resolution failed", "error", err)
		os.Exit(1)
	}

	issuers, err := generator.ReadIssuers(issuerFile)
	if err != nil {
		logger.Error("failed to load issuers", "error", err, "path", issuerFile)
		os.Exit(1)
	}
	records, err := generator.ReadCertificates(certFile)
	if err != nil {
		logger.Error("failed to load certificates", "error", err, "path", certFile)
		os.Exit(1)
	}
	if len(records) == 0 {
		logger.Error("certificates dataset empty", "path", certFile)
		os.Exit(1)
	}

	tasks := make([]service.IssueTask, 0, len(records))
	for _, rec := range records {
		task, err := rec.Task()
		if err != nil {
			logger.Error("invalid certificate record", "error", err)
			os.Exit(1)
		}
		tasks = append(tasks, task)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	application, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := application.Close(context.Background()); err != nil {
			logger.Warn("closing backends failed", "error", err)
		}
	}()

	bulk := service.NewBulkIssuer(application.Service, *workers)
	start := time.Now()

	if !*skipIssuers {
		regs := make([]domain.IssuerRegistration, 0, len(issuers))
		for _, issuer := range issuers {
			regs = append(regs, issuer.Registration())
		}
		logger.Info("registering issuers", "count", len(regs), "admin", cfg.Registry.Admin.Hex())
		if err := bulk.RegisterIssuers(ctx, cfg.Registry.Admin, regs); err != nil {
			logger.Error("issuer registration failed", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("issuing certificates", "count", len(tasks), "workers", *workers)
	results, issueErr := bulk.Issue(ctx, tasks)

	issued := 0
	for _, res := range results {
		if res != nil {
			issued++
		}
	}

	if application.Dispatcher != nil {
		for application.Dispatcher.Drain(ctx) > 0 {
		}
	}

	if issueErr != nil {
		logger.Error("issuance finished with errors", "error", issueErr, "issued", issued, "total", len(tasks))
		os.Exit(1)
	}
	logger.Info("issuance complete", "duration", time.Since(start).String(), "issuers", len(issuers), "certificates", issued)
}

func resolveDatasetPaths(baseDir, issuersPath, certsPath string) (string, string, error) {
	resolve := func(explicitPath, fallbackFile string) (string, error) {
		if explicitPath != "" {
			if _, err := os.Stat(explicitPath); err != nil {
				return "", fmt.Errorf("stat %s: %w", explicitPath, err)
			}
			return explicitPath, nil
		}
		path := filepath.Join(baseDir, fallbackFile)
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("%w: %s", errMissingDataset, path)
		}
		return path, nil
	}

	issuerFile, err := resolve(issuersPath, generator.IssuersFile)
	if err != nil {
		return "", "", err
	}
	certFile, err := resolve(certsPath, generator.CertificatesFile)
	if err != nil {
		return "", "", err
	}
	return issuerFile, certFile, nil
}
