package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akash768145s/BlockCred-sub000/internal/domain"
	"github.com/akash768145s/BlockCred-sub000/internal/registry"
	"github.com/akash768145s/BlockCred-sub000/internal/repository"
	"github.com/akash768145s/BlockCred-sub000/internal/service"
)

var (
	adminAddr    = common.HexToAddress("0x00000000000000000000000000000000000000AD")
	issuerAddr   = common.HexToAddress("0x00000000000000000000000000000000000000A1")
	walletAddr   = common.HexToAddress("0x00000000000000000000000000000000000000B2")
	strangerAddr = common.HexToAddress("0x00000000000000000000000000000000000000C3")
	fixedNow     = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
)

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type stubGraph struct {
	profile domain.StudentProfile
	issued  []domain.IssuedCertificate
	stats   []domain.IssuerStats
	lastArg string
}

func (s *stubGraph) CertificatesByIssuer(_ context.Context, address string, _ int) ([]domain.IssuedCertificate, error) {
	s.lastArg = address
	return s.issued, nil
}

func (s *stubGraph) StudentProfile(_ context.Context, studentID string) (domain.StudentProfile, error) {
	if studentID != s.profile.StudentID {
		return domain.StudentProfile{}, repository.ErrNotFound
	}
	return s.profile, nil
}

func (s *stubGraph) TopIssuers(context.Context, int) ([]domain.IssuerStats, error) {
	return s.stats, nil
}

type requestLog struct {
	mu     sync.Mutex
	routes []string
}

func (l *requestLog) ObserveRequest(method, route string, status int, _ time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.routes = append(l.routes, method+" "+route)
}

type testAPI struct {
	handler  http.Handler
	registry *registry.Registry
}

func newTestAPI(t *testing.T, mutate func(*RouterDependencies)) *testAPI {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := registry.New(adminAddr, registry.WithClock(func() time.Time { return fixedNow }))
	svc := service.NewCertificateService(service.NewSimulator(reg), service.Options{Logger: logger})
	svc.WithClock(func() time.Time { return fixedNow })

	deps := RouterDependencies{API: NewAPIHandlers(logger, svc, reg, nil)}
	if mutate != nil {
		mutate(&deps)
	}
	return &testAPI{handler: NewRouter(logger, deps), registry: reg}
}

func (a *testAPI) do(t *testing.T, method, path string, caller *common.Address, body any) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if caller != nil {
		req.Header.Set(headerCaller, caller.Hex())
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var payload apiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload), rec.Body.String())
	return rec, payload
}

func (a *testAPI) registerIssuer(t *testing.T) {
	t.Helper()
	rec, _ := a.do(t, http.MethodPost, "/api/issuers", &adminAddr, registerIssuerRequest{
		Address:     issuerAddr.Hex(),
		Name:        "COE Office",
		Role:        string(domain.RoleCOE),
		Institution: "SSN",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestIssueVerifyRevokeFlow(t *testing.T) {
	api := newTestAPI(t, nil)
	api.registerIssuer(t)

	rec, payload := api.do(t, http.MethodPost, "/api/certificates/issue", &issuerAddr, issueCertificateRequest{
		CertID:         "CERT-001",
		StudentID:      "S100",
		CertType:       string(domain.CertificateTypeDegree),
		ContentPointer: "QmCid",
		ContentHash:    "abc",
		StudentWallet:  walletAddr.Hex(),
	})
	require.Equal(t, http.StatusCreated, rec.Code, payload.Message)
	assert.True(t, payload.Success)

	var issued service.IssueResult
	require.NoError(t, json.Unmarshal(payload.Data, &issued))
	assert.Equal(t, "CERT-001", issued.Certificate.CertID)
	assert.Equal(t, walletAddr, issued.Certificate.StudentWallet)
	assert.NotEmpty(t, issued.Receipt.TxHash)

	rec, payload = api.do(t, http.MethodGet, "/api/certificates/verify/CERT-001", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var verification service.Verification
	require.NoError(t, json.Unmarshal(payload.Data, &verification))
	assert.True(t, verification.Valid)

	rec, _ = api.do(t, http.MethodPost, "/api/certificates/CERT-001/revoke", &issuerAddr, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, payload = api.do(t, http.MethodGet, "/api/certificates/verify/CERT-001", nil, nil)
	require.NoError(t, json.Unmarshal(payload.Data, &verification))
	assert.False(t, verification.Valid)

	rec, payload = api.do(t, http.MethodGet, "/api/students/S100/certificates", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var certs studentCertificatesResponse
	require.NoError(t, json.Unmarshal(payload.Data, &certs))
	assert.Equal(t, []string{"CERT-001"}, certs.Certificates)

	rec, payload = api.do(t, http.MethodGet, "/api/students/S100/wallet", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var wallet walletResponse
	require.NoError(t, json.Unmarshal(payload.Data, &wallet))
	assert.Equal(t, walletAddr, wallet.Wallet)
}

func TestErrorStatusMapping(t *testing.T) {
	api := newTestAPI(t, nil)
	api.registerIssuer(t)

	issue := issueCertificateRequest{
		CertID: "CERT-001", StudentID: "S100", CertType: "degree",
		ContentPointer: "QmCid", ContentHash: "abc", StudentWallet: walletAddr.Hex(),
	}
	rec, _ := api.do(t, http.MethodPost, "/api/certificates/issue", &issuerAddr, issue)
	require.Equal(t, http.StatusCreated, rec.Code)

	cases := []struct {
		name   string
		method string
		path   string
		caller *common.Address
		body   any
		want   int
	}{
		{"duplicate issuer", http.MethodPost, "/api/issuers", &adminAddr, registerIssuerRequest{Address: issuerAddr.Hex(), Name: "x", Role: "coe", Institution: "SSN"}, http.StatusConflict},
		{"non-admin registers issuer", http.MethodPost, "/api/issuers", &strangerAddr, registerIssuerRequest{Address: strangerAddr.Hex(), Name: "x", Role: "coe", Institution: "SSN"}, http.StatusForbidden},
		{"duplicate certificate", http.MethodPost, "/api/certificates/issue", &issuerAddr, issue, http.StatusConflict},
		{"unregistered issuer", http.MethodPost, "/api/certificates/issue", &strangerAddr, issue, http.StatusForbidden},
		{"missing fields", http.MethodPost, "/api/certificates/issue", &issuerAddr, issueCertificateRequest{CertID: "CERT-002"}, http.StatusBadRequest},
		{"unknown certificate", http.MethodGet, "/api/certificates/CERT-404", nil, nil, http.StatusNotFound},
		{"unknown issuer", http.MethodGet, "/api/issuers/" + strangerAddr.Hex(), nil, nil, http.StatusNotFound},
		{"malformed issuer path", http.MethodGet, "/api/issuers/not-hex", nil, nil, http.StatusBadRequest},
		{"unlinked wallet", http.MethodGet, "/api/students/S999/wallet", nil, nil, http.StatusNotFound},
		{"missing caller", http.MethodPost, "/api/certificates/CERT-001/revoke", nil, nil, http.StatusBadRequest},
		{"stranger revokes", http.MethodPost, "/api/certificates/CERT-001/revoke", &strangerAddr, nil, http.StatusForbidden},
		{"bad body", http.MethodPost, "/api/students/S100/wallet", &issuerAddr, map[string]any{"unexpected": 1}, http.StatusBadRequest},
		{"no route", http.MethodGet, "/api/nothing", nil, nil, http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, payload := api.do(t, tc.method, tc.path, tc.caller, tc.body)
			assert.Equal(t, tc.want, rec.Code, payload.Message)
			assert.False(t, payload.Success)
			assert.NotEmpty(t, payload.Message)
		})
	}
}

func TestInvalidCallerHeader(t *testing.T) {
	api := newTestAPI(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/issuers/"+issuerAddr.Hex()+"/deactivate", nil)
	req.Header.Set(headerCaller, "0x123")
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIssuerLifecycleAndRegistryInfo(t *testing.T) {
	api := newTestAPI(t, nil)
	api.registerIssuer(t)

	rec, payload := api.do(t, http.MethodGet, "/api/issuers/"+issuerAddr.Hex(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var issuer issuerResponse
	require.NoError(t, json.Unmarshal(payload.Data, &issuer))
	assert.True(t, issuer.Authorized)
	assert.Equal(t, "SSN", issuer.Issuer.Institution)
	assert.NotEmpty(t, issuer.RoleName)

	rec, _ = api.do(t, http.MethodPost, "/api/issuers/"+issuerAddr.Hex()+"/deactivate", &adminAddr, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, payload = api.do(t, http.MethodGet, "/api/issuers/"+issuerAddr.Hex(), nil, nil)
	require.NoError(t, json.Unmarshal(payload.Data, &issuer))
	assert.True(t, issuer.Authorized)
	assert.False(t, issuer.Issuer.IsActive)

	rec, payload = api.do(t, http.MethodGet, "/api/registry", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var info registryResponse
	require.NoError(t, json.Unmarshal(payload.Data, &info))
	assert.Equal(t, adminAddr, info.Admin)
	assert.Equal(t, 1, info.Issuers)
	require.NotNil(t, info.Height)
	assert.Equal(t, api.registry.Height(), *info.Height)
}

func TestEventsAndPaging(t *testing.T) {
	api := newTestAPI(t, nil)
	api.registerIssuer(t)
	for _, id := range []string{"CERT-001", "CERT-002", "CERT-003"} {
		rec, payload := api.do(t, http.MethodPost, "/api/certificates/issue", &issuerAddr, issueCertificateRequest{
			CertID: id, StudentID: "S100", CertType: "degree", ContentPointer: "QmCid", ContentHash: "abc",
		})
		require.Equal(t, http.StatusCreated, rec.Code, payload.Message)
	}

	rec, payload := api.do(t, http.MethodGet, "/api/certificates?offset=1&limit=1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page certificatePage
	require.NoError(t, json.Unmarshal(payload.Data, &page))
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, []string{"CERT-002"}, page.Items)

	rec, payload = api.do(t, http.MethodGet, "/api/events?since=1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var events eventsResponse
	require.NoError(t, json.Unmarshal(payload.Data, &events))
	require.NotEmpty(t, events.Events)
	assert.Greater(t, events.Events[0].Seq, uint64(1))
	assert.Equal(t, events.Events[len(events.Events)-1].Seq, events.Next)

	rec, _ = api.do(t, http.MethodGet, "/api/events?since=-1", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGraphRoutes(t *testing.T) {
	graph := &stubGraph{
		profile: domain.StudentProfile{StudentID: "S100", Wallet: walletAddr.Hex()},
		issued:  []domain.IssuedCertificate{{CertID: "CERT-001", StudentID: "S100"}},
		stats:   []domain.IssuerStats{{Address: issuerAddr.Hex(), Issued: 3}},
	}
	api := newTestAPI(t, func(deps *RouterDependencies) {
		deps.API.graph = graph
	})

	rec, payload := api.do(t, http.MethodGet, "/api/graph/students/S100", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var profile domain.StudentProfile
	require.NoError(t, json.Unmarshal(payload.Data, &profile))
	assert.Equal(t, walletAddr.Hex(), profile.Wallet)

	rec, _ = api.do(t, http.MethodGet, "/api/graph/students/S404", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = api.do(t, http.MethodGet, "/api/graph/issuers/"+issuerAddr.Hex()+"/certificates", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, issuerAddr.Hex(), graph.lastArg)

	rec, payload = api.do(t, http.MethodGet, "/api/graph/issuers/top", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats []domain.IssuerStats
	require.NoError(t, json.Unmarshal(payload.Data, &stats))
	assert.Equal(t, int64(3), stats[0].Issued)
}

func TestGraphRoutesAbsentWithoutProjection(t *testing.T) {
	api := newTestAPI(t, nil)
	rec, _ := api.do(t, http.MethodGet, "/api/graph/issuers/top", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBearerTokenGuardsMutations(t *testing.T) {
	api := newTestAPI(t, func(deps *RouterDependencies) {
		deps.APIToken = "s3cret"
	})

	rec, payload := api.do(t, http.MethodPost, "/api/issuers", &adminAddr, registerIssuerRequest{
		Address: issuerAddr.Hex(), Name: "COE Office", Role: "coe", Institution: "SSN",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, payload.Success)

	rec, _ = api.do(t, http.MethodGet, "/api/issuers", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	raw, err := json.Marshal(registerIssuerRequest{Address: issuerAddr.Hex(), Name: "COE Office", Role: "coe", Institution: "SSN"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/issuers", bytes.NewReader(raw))
	req.Header.Set(headerCaller, adminAddr.Hex())
	req.Header.Set("Authorization", "Bearer s3cret")
	res := httptest.NewRecorder()
	api.handler.ServeHTTP(res, req)
	assert.Equal(t, http.StatusCreated, res.Code)
}

func TestRequestIDAndMetrics(t *testing.T) {
	observed := &requestLog{}
	api := newTestAPI(t, func(deps *RouterDependencies) {
		deps.Metrics = observed
		deps.MetricsHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("{}"))
		})
	})

	req := httptest.NewRequest(http.MethodGet, "/api/certificates/CERT-404", nil)
	req.Header.Set(headerRequestID, "req-42")
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get(headerRequestID))

	rec, _ = api.do(t, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))

	observed.mu.Lock()
	defer observed.mu.Unlock()
	assert.Equal(t, []string{"GET /api/certificates/{certId}", "GET /metrics"}, observed.routes)
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t, func(deps *RouterDependencies) {
		deps.Probes = map[string]HealthService{
			"journal": ProbeFunc(func(context.Context) error { return nil }),
			"graph":   ProbeFunc(func(context.Context) error { return errors.New("connection refused") }),
		}
	})

	rec, payload := api.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var report HealthReport
	require.NoError(t, json.Unmarshal(payload.Data, &report))
	assert.Equal(t, "degraded", report.Status)
	assert.Equal(t, "ok", report.Checks["journal"])
	assert.Equal(t, "connection refused", report.Checks["graph"])

	healthy := newTestAPI(t, nil)
	rec, _ = healthy.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	api := newTestAPI(t, func(deps *RouterDependencies) {
		deps.AllowedOrigins = []string{"http://localhost:3000"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/certificates/issue", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
