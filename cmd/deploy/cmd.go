package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/akash768145s/BlockCred-sub000/internal/chain"
	"github.com/akash768145s/BlockCred-sub000/internal/config"
	"github.com/akash768145s/BlockCred-sub000/internal/logging"
)

const (
	rpcURLFlagName  = "rpc-url"
	rpcURLEnvKey    = "BLOCKCHAIN_RPC_URL"
	rpcURLFlagUsage = "Ethereum JSON-RPC endpoint. Alternatively, this can be set with the following environment variable: " + rpcURLEnvKey

	privateKeyFlagName  = "private-key"
	privateKeyEnvKey    = "PRIVATE_KEY"
	privateKeyFlagUsage = "Hex private key of the deployer (optional). When unset the node's first unlocked account deploys." +
		" Alternatively, this can be set with the following environment variable: " + privateKeyEnvKey

	bytecodeFlagName  = "bytecode"
	bytecodeEnvKey    = "CONTRACT_BYTECODE_FILE"
	bytecodeFlagUsage = "Path to the compiled CertificateManager bytecode (hex). Alternatively, this can be set with the following environment variable: " + bytecodeEnvKey

	abiFlagName  = "abi"
	abiEnvKey    = "CONTRACT_ABI_FILE"
	abiFlagUsage = "Path to the contract ABI (optional, defaults to the embedded ABI). Alternatively, this can be set with the following environment variable: " + abiEnvKey

	outDirFlagName  = "out-dir"
	outDirEnvKey    = "DEPLOY_OUT_DIR"
	outDirFlagUsage = "Directory receiving contract-address.txt and contract-abi.json. Alternatively, this can be set with the following environment variable: " + outDirEnvKey

	timeoutFlagName  = "timeout"
	timeoutEnvKey    = "DEPLOY_TIMEOUT"
	timeoutFlagUsage = "How long to wait for the deployment receipt, e.g. 2m. Alternatively, this can be set with the following environment variable: " + timeoutEnvKey

	defaultRPCURL  = "http://localhost:8545"
	defaultOutDir  = "."
	defaultTimeout = 2 * time.Minute
)

type deployParameters struct {
	rpcURL     string
	privateKey string
	bytecode   string
	abiFile    string
	outDir     string
	timeout    time.Duration
}

type deployFunc func(ctx context.Context, cmd *cobra.Command, params deployParameters) error

func newRootCmd(deploy deployFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "deploy",
		Short:        "Deploy the CertificateManager contract",
		Long:         "Deploy the CertificateManager contract and write its address and ABI to the output directory",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := getParameters(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return deploy(ctx, cmd, params)
		},
	}

	cmd.Flags().String(rpcURLFlagName, "", rpcURLFlagUsage)
	cmd.Flags().String(privateKeyFlagName, "", privateKeyFlagUsage)
	cmd.Flags().String(bytecodeFlagName, "", bytecodeFlagUsage)
	cmd.Flags().String(abiFlagName, "", abiFlagUsage)
	cmd.Flags().String(outDirFlagName, "", outDirFlagUsage)
	cmd.Flags().String(timeoutFlagName, "", timeoutFlagUsage)
	return cmd
}

func getParameters(cmd *cobra.Command) (deployParameters, error) {
	rpcURL, err := getUserSetVar(cmd, rpcURLFlagName, rpcURLEnvKey, true)
	if err != nil {
		return deployParameters{}, err
	}
	privateKey, err := getUserSetVar(cmd, privateKeyFlagName, privateKeyEnvKey, true)
	if err != nil {
		return deployParameters{}, err
	}
	bytecode, err := getUserSetVar(cmd, bytecodeFlagName, bytecodeEnvKey, false)
	if err != nil {
		return deployParameters{}, err
	}
	abiFile, err := getUserSetVar(cmd, abiFlagName, abiEnvKey, true)
	if err != nil {
		return deployParameters{}, err
	}
	outDir, err := getUserSetVar(cmd, outDirFlagName, outDirEnvKey, true)
	if err != nil {
		return deployParameters{}, err
	}
	rawTimeout, err := getUserSetVar(cmd, timeoutFlagName, timeoutEnvKey, true)
	if err != nil {
		return deployParameters{}, err
	}

	params := deployParameters{
		rpcURL:     rpcURL,
		privateKey: privateKey,
		bytecode:   bytecode,
		abiFile:    abiFile,
		outDir:     outDir,
		timeout:    defaultTimeout,
	}
	if params.rpcURL == "" {
		params.rpcURL = defaultRPCURL
	}
	if params.outDir == "" {
		params.outDir = defaultOutDir
	}
	if params.bytecode == "" {
		return deployParameters{}, errors.New(bytecodeFlagName + " must not be empty")
	}
	if rawTimeout != "" {
		d, err := time.ParseDuration(rawTimeout)
		if err != nil || d <= 0 {
			return deployParameters{}, fmt.Errorf("invalid %s %q", timeoutFlagName, rawTimeout)
		}
		params.timeout = d
	}
	return params, nil
}

func getUserSetVar(cmd *cobra.Command, flagName, envKey string, isOptional bool) (string, error) {
	if cmd.Flags().Changed(flagName) {
		value, err := cmd.Flags().GetString(flagName)
		if err != nil {
			return "", fmt.Errorf("%s flag not found: %w", flagName, err)
		}
		return value, nil
	}

	value, isSet := os.LookupEnv(envKey)
	if isOptional || isSet {
		return value, nil
	}
	return "", errors.New("neither " + flagName + " (command line flag) nor " + envKey +
		" (environment variable) have been set")
}

func runDeploy(ctx context.Context, cmd *cobra.Command, params deployParameters) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.Component(logging.New(cfg.Logging), "deploy")

	bytecode, err := chain.ReadBytecode(params.bytecode)
	if err != nil {
		return err
	}
	var abiJSON string
	if params.abiFile != "" {
		raw, err := os.ReadFile(params.abiFile)
		if err != nil {
			return fmt.Errorf("read abi: %w", err)
		}
		abiJSON = string(raw)
	}

	deployer, err := chain.DialDeployer(ctx, params.rpcURL, logger)
	if err != nil {
		return err
	}
	defer deployer.Close()

	dep, err := deployer.Deploy(ctx, chain.DeployOptions{
		PrivateKey: params.privateKey,
		Bytecode:   bytecode,
		ABI:        abiJSON,
		Timeout:    params.timeout,
	})
	if err != nil {
		logger.Error("deployment failed", "error", err)
		return err
	}

	if err := chain.WriteArtifacts(params.outDir, dep, abiJSON); err != nil {
		return err
	}
	logger.Info("contract deployed",
		"address", dep.Address.Hex(),
		"tx", dep.TxHash.Hex(),
		"block", dep.Block,
		"deployer", dep.Deployer.Hex(),
		"out_dir", params.outDir,
	)
	fmt.Fprintf(cmd.OutOrStdout(), "CONTRACT_ADDRESS=%s\n", dep.Address.Hex())
	return nil
}
