package main

import (
	"fmt"
	"os"

	"github.com/akash768145s/BlockCred-sub000/internal/config"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}
	if err := newRootCmd(runDeploy).Execute(); err != nil {
		os.Exit(1)
	}
}
