package main

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureParams(t *testing.T, args ...string) (deployParameters, error) {
	t.Helper()
	var got deployParameters
	cmd := newRootCmd(func(_ context.Context, _ *cobra.Command, params deployParameters) error {
		got = params
		return nil
	})
	cmd.SetArgs(args)
	cmd.SetOut(new(nopWriter))
	cmd.SetErr(new(nopWriter))
	err := cmd.Execute()
	return got, err
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestDeployCmd_FlagsAndDefaults(t *testing.T) {
	for _, key := range []string{bytecodeEnvKey, rpcURLEnvKey, privateKeyEnvKey, outDirEnvKey, timeoutEnvKey} {
		t.Setenv(key, "")
	}
	params, err := captureParams(t, "--bytecode", "build/CertificateManager.bin")
	require.NoError(t, err)

	assert.Equal(t, "build/CertificateManager.bin", params.bytecode)
	assert.Equal(t, defaultRPCURL, params.rpcURL)
	assert.Equal(t, defaultOutDir, params.outDir)
	assert.Equal(t, defaultTimeout, params.timeout)
	assert.Empty(t, params.privateKey)
}

func TestDeployCmd_EnvFallback(t *testing.T) {
	t.Setenv(bytecodeEnvKey, "env.bin")
	t.Setenv(rpcURLEnvKey, "http://node:8545")
	t.Setenv(timeoutEnvKey, "30s")
	t.Setenv(outDirEnvKey, "artifacts")

	params, err := captureParams(t, "--rpc-url", "http://flag:8545")
	require.NoError(t, err)
	assert.Equal(t, "env.bin", params.bytecode)
	assert.Equal(t, "http://flag:8545", params.rpcURL)
	assert.Equal(t, 30*time.Second, params.timeout)
	assert.Equal(t, "artifacts", params.outDir)
}

func TestDeployCmd_Invalid(t *testing.T) {
	t.Setenv(timeoutEnvKey, "")

	_, err := captureParams(t, "--bytecode", "")
	assert.Error(t, err)

	_, err = captureParams(t, "--bytecode", "x.bin", "--timeout", "soon")
	assert.Error(t, err)
}
