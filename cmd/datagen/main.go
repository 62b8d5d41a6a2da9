package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/akash768145s/BlockCred-sub000/internal/generator"
)

func main() {
	cfg := generator.DefaultConfig()
	var (
		issuers      = flag.Int("issuers", cfg.NumIssuers, "number of issuers to generate")
		students     = flag.Int("students", cfg.NumStudents, "number of distinct students certificates are spread over")
		certificates = flag.Int("certificates", cfg.NumCertificates, "number of certificates to generate")
		institution  = flag.String("institution", cfg.Institution, "institution name recorded on every issuer")
		seed         = flag.Int64("seed", cfg.Seed, "random seed for deterministic generation")
		outputDir    = flag.String("output-dir", "seed-data", "directory to write issuers.json and certificates.json")
		writeStdout  = flag.Bool("stdout", false, "write combined dataset to stdout instead of files")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dataset, err := generator.New(generator.Config{
		NumIssuers:      *issuers,
		NumStudents:     *students,
		NumCertificates: *certificates,
		Institution:     *institution,
		Seed:            *seed,
	}).Generate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generation failed: %v\n", err)
		os.Exit(1)
	}

	if *writeStdout {
		if err := json.NewEncoder(os.Stdout).Encode(dataset); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write dataset to stdout: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := generator.WriteDataset(dataset, *outputDir); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write dataset: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stdout, "Generated %d issuers and %d certificates into %s\n", len(dataset.Issuers), len(dataset.Certificates), *outputDir)
}
