package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akash768145s/BlockCred-sub000/internal/config"
)

var (
	admin  = common.HexToAddress("0x00000000000000000000000000000000000000AD")
	issuer = common.HexToAddress("0x00000000000000000000000000000000000000A1")
)

func testConfig() config.Config {
	return config.Config{
		HTTP:     config.HTTPConfig{MetricsEnabled: true},
		Registry: config.RegistryConfig{Admin: admin, Journal: config.JournalMemory, VerifyCacheSize: 16, VerifyCacheTTL: time.Minute},
		Chain:    config.ChainConfig{Mode: config.LedgerSimulator},
	}
}

func post(t *testing.T, h http.Handler, path string, caller common.Address, body any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(http.MethodPost, path, reader)
	req.Header.Set("X-Caller-Address", caller.Hex())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestBuild_SimulatorEndToEnd(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := Build(context.Background(), testConfig(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close(context.Background())) })

	require.NotNil(t, a.Registry)
	require.NotNil(t, a.Dispatcher)
	assert.Nil(t, a.Projection)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Equal(t, http.StatusCreated, post(t, a.Handler, "/api/issuers", admin, map[string]string{
		"address": issuer.Hex(), "name": "COE Office", "role": "coe", "institution": "SSN",
	}))
	require.Equal(t, http.StatusCreated, post(t, a.Handler, "/api/certificates/issue", issuer, map[string]string{
		"certId": "CERT-001", "studentId": "S100", "certType": "marksheet",
		"contentPointer": "QmCid", "content": "semester 5 marksheet",
	}))

	assert.Contains(t, get(a.Handler, "/api/certificates/verify/CERT-001").Body.String(), `"valid":true`)
	require.Equal(t, http.StatusOK, post(t, a.Handler, "/api/certificates/CERT-001/revoke", issuer, nil))
	assert.Contains(t, get(a.Handler, "/api/certificates/verify/CERT-001").Body.String(), `"valid":false`)

	require.Eventually(t, func() bool {
		return a.Dispatcher.Cursor() >= 4
	}, 2*time.Second, 10*time.Millisecond)

	health := get(a.Handler, "/healthz")
	assert.Equal(t, http.StatusOK, health.Code)
	assert.Contains(t, health.Body.String(), `"journal":"ok"`)

	scrape := get(a.Handler, "/metrics").Body.String()
	assert.Contains(t, scrape, "blockcred_ledger_operations_total")
	assert.Contains(t, scrape, "blockcred_certificates_total 1")
	assert.True(t, strings.Contains(scrape, `blockcred_events_delivered_total{event="CertificateIssued"`))

	cancel()
	require.NoError(t, <-done)
}

func TestBuild_MetricsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.HTTP.MetricsEnabled = false
	a, err := Build(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer a.Close(context.Background())

	assert.Equal(t, http.StatusNotFound, get(a.Handler, "/metrics").Code)
}

func TestBuild_ChainModeRequiresReachableNode(t *testing.T) {
	cfg := testConfig()
	cfg.Chain = config.ChainConfig{Mode: config.LedgerChain, ContractAddress: "0x00000000000000000000000000000000000000C0", PrivateKey: "0xabc"}
	_, err := Build(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}
