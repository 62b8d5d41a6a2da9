package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"

	"github.com/akash768145s/BlockCred-sub000/internal/domain"
	"github.com/akash768145s/BlockCred-sub000/internal/registry"
	"github.com/akash768145s/BlockCred-sub000/internal/service"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

var errMissingCaller = errors.New("X-Caller-Address header is required")

// EventLog exposes the in-process event log.
type EventLog interface {
	EventsSince(seq uint64, limit int) []domain.Event
	Height() uint64
}

// GraphReader answers queries against the graph projection.
type GraphReader interface {
	CertificatesByIssuer(ctx context.Context, address string, limit int) ([]domain.IssuedCertificate, error)
	StudentProfile(ctx context.Context, studentID string) (domain.StudentProfile, error)
	TopIssuers(ctx context.Context, limit int) ([]domain.IssuerStats, error)
}

// APIHandlers exposes HTTP handlers for the registry API.
type APIHandlers struct {
	logger  *slog.Logger
	service *service.CertificateService
	ledger  service.Ledger
	events  EventLog
	graph   GraphReader
}

// NewAPIHandlers constructs an APIHandlers instance. events and graph may be
// nil, in which case their routes are not mounted.
func NewAPIHandlers(logger *slog.Logger, svc *service.CertificateService, events EventLog, graph GraphReader) *APIHandlers {
	return &APIHandlers{
		logger:  logger,
		service: svc,
		ledger:  svc.Ledger(),
		events:  events,
		graph:   graph,
	}
}

func (h *APIHandlers) register(r *mux.Router) {
	r.HandleFunc("/issuers", h.registerIssuer).Methods(http.MethodPost)
	r.HandleFunc("/issuers", h.listIssuers).Methods(http.MethodGet)
	r.HandleFunc("/issuers/{address}", h.getIssuer).Methods(http.MethodGet)
	r.HandleFunc("/issuers/{address}/deactivate", h.deactivateIssuer).Methods(http.MethodPost)

	r.HandleFunc("/students/{studentId}/wallet", h.registerStudentWallet).Methods(http.MethodPost)
	r.HandleFunc("/students/{studentId}/wallet", h.getStudentWallet).Methods(http.MethodGet)
	r.HandleFunc("/students/{studentId}/certificates", h.studentCertificates).Methods(http.MethodGet)

	r.HandleFunc("/certificates/issue", h.issueCertificate).Methods(http.MethodPost)
	r.HandleFunc("/certificates", h.listCertificates).Methods(http.MethodGet)
	r.HandleFunc("/certificates/verify/{certId}", h.verifyCertificate).Methods(http.MethodGet)
	r.HandleFunc("/certificates/verify/{certId}", h.recordVerification).Methods(http.MethodPost)
	r.HandleFunc("/certificates/{certId}", h.getCertificate).Methods(http.MethodGet)
	r.HandleFunc("/certificates/{certId}/revoke", h.revokeCertificate).Methods(http.MethodPost)

	r.HandleFunc("/registry", h.registryInfo).Methods(http.MethodGet)
	if h.events != nil {
		r.HandleFunc("/events", h.listEvents).Methods(http.MethodGet)
	}
	if h.graph != nil {
		r.HandleFunc("/graph/issuers/top", h.topIssuers).Methods(http.MethodGet)
		r.HandleFunc("/graph/issuers/{address}/certificates", h.issuerCertificates).Methods(http.MethodGet)
		r.HandleFunc("/graph/students/{studentId}", h.studentProfile).Methods(http.MethodGet)
	}
}

type registerIssuerRequest struct {
	Address     string `json:"address"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	Institution string `json:"institution"`
}

type walletRequest struct {
	Wallet string `json:"wallet"`
}

type issueCertificateRequest struct {
	CertID         string         `json:"certId"`
	StudentID      string         `json:"studentId"`
	CertType       string         `json:"certType"`
	ContentPointer string         `json:"contentPointer"`
	Content        string         `json:"content"`
	ContentHash    string         `json:"contentHash"`
	Metadata       map[string]any `json:"metadata"`
	MetadataHash   string         `json:"metadataHash"`
	StudentWallet  string         `json:"studentWallet"`
}

type issuerResponse struct {
	Issuer     domain.Issuer `json:"issuer"`
	RoleName   string        `json:"roleName,omitempty"`
	Authorized bool          `json:"authorized"`
}

type walletResponse struct {
	StudentID string         `json:"studentId"`
	Wallet    common.Address `json:"wallet"`
}

type studentCertificatesResponse struct {
	StudentID    string   `json:"studentId"`
	Certificates []string `json:"certificates"`
}

type certificatePage struct {
	Items  []string `json:"items"`
	Total  int      `json:"total"`
	Offset int      `json:"offset"`
	Limit  int      `json:"limit"`
}

type registryResponse struct {
	Admin             common.Address `json:"admin"`
	Height            *uint64        `json:"height,omitempty"`
	TotalCertificates int            `json:"totalCertificates"`
	Issuers           int            `json:"issuers"`
}

type eventsResponse struct {
	Events []domain.Event `json:"events"`
	Next   uint64         `json:"next"`
}

func (h *APIHandlers) registerIssuer(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req registerIssuerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	addr, err := parseAddress(req.Address, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	receipt, err := h.ledger.RegisterIssuer(r.Context(), caller, domain.IssuerRegistration{
		Address:     addr,
		Name:        strings.TrimSpace(req.Name),
		Role:        strings.TrimSpace(req.Role),
		Institution: strings.TrimSpace(req.Institution),
	})
	if err != nil {
		h.fail(w, "register issuer", err, "issuer", addr.Hex())
		return
	}
	respondMessage(w, http.StatusCreated, "issuer registered", receipt)
}

func (h *APIHandlers) listIssuers(w http.ResponseWriter, r *http.Request) {
	issuers, err := h.ledger.Issuers(r.Context())
	if err != nil {
		h.fail(w, "list issuers", err)
		return
	}
	if issuers == nil {
		issuers = []domain.Issuer{}
	}
	respondData(w, http.StatusOK, issuers)
}

func (h *APIHandlers) getIssuer(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(mux.Vars(r)["address"], "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	issuer, err := h.ledger.Issuer(r.Context(), addr)
	if err != nil {
		h.fail(w, "get issuer", err, "issuer", addr.Hex())
		return
	}
	authorized, err := h.ledger.IsAuthorizedIssuer(r.Context(), addr)
	if err != nil {
		h.fail(w, "check issuer", err, "issuer", addr.Hex())
		return
	}

	resp := issuerResponse{Issuer: issuer, Authorized: authorized}
	if role, err := domain.ParseRole(issuer.Role); err == nil {
		resp.RoleName = role.DisplayName()
	}
	respondData(w, http.StatusOK, resp)
}

func (h *APIHandlers) deactivateIssuer(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	addr, err := parseAddress(mux.Vars(r)["address"], "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	receipt, err := h.ledger.DeactivateIssuer(r.Context(), caller, addr)
	if err != nil {
		h.fail(w, "deactivate issuer", err, "issuer", addr.Hex())
		return
	}
	respondMessage(w, http.StatusOK, "issuer deactivated", receipt)
}

func (h *APIHandlers) registerStudentWallet(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	studentID := mux.Vars(r)["studentId"]
	var req walletRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	wallet, err := parseAddress(req.Wallet, "wallet")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	receipt, err := h.ledger.RegisterStudentWallet(r.Context(), caller, studentID, wallet)
	if err != nil {
		h.fail(w, "register student wallet", err, "student_id", studentID)
		return
	}
	respondMessage(w, http.StatusCreated, "student wallet registered", receipt)
}

func (h *APIHandlers) getStudentWallet(w http.ResponseWriter, r *http.Request) {
	studentID := mux.Vars(r)["studentId"]
	wallet, linked, err := h.ledger.StudentWallet(r.Context(), studentID)
	if err != nil {
		h.fail(w, "get student wallet", err, "student_id", studentID)
		return
	}
	if !linked {
		writeError(w, http.StatusNotFound, "student wallet not registered")
		return
	}
	respondData(w, http.StatusOK, walletResponse{StudentID: studentID, Wallet: wallet})
}

func (h *APIHandlers) studentCertificates(w http.ResponseWriter, r *http.Request) {
	studentID := mux.Vars(r)["studentId"]
	ids, err := h.ledger.StudentCertificates(r.Context(), studentID)
	if err != nil {
		h.fail(w, "list student certificates", err, "student_id", studentID)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	respondData(w, http.StatusOK, studentCertificatesResponse{StudentID: studentID, Certificates: ids})
}

func (h *APIHandlers) issueCertificate(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req issueCertificateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	input, err := req.toServiceInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.Issue(r.Context(), caller, input)
	if err != nil {
		h.fail(w, "issue certificate", err, "student_id", input.StudentID)
		return
	}
	respondMessage(w, http.StatusCreated, "certificate issued", result)
}

func (req issueCertificateRequest) toServiceInput() (service.IssueInput, error) {
	in := service.IssueInput{
		CertID:         req.CertID,
		StudentID:      req.StudentID,
		CertType:       req.CertType,
		ContentPointer: req.ContentPointer,
		ContentHash:    req.ContentHash,
		Metadata:       req.Metadata,
		MetadataHash:   req.MetadataHash,
	}
	if req.Content != "" {
		in.Content = []byte(req.Content)
	}
	if strings.TrimSpace(req.StudentWallet) != "" {
		wallet, err := parseAddress(req.StudentWallet, "studentWallet")
		if err != nil {
			return service.IssueInput{}, err
		}
		in.StudentWallet = wallet
	}
	return in, nil
}

func (h *APIHandlers) listCertificates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offset := parseInt(q.Get("offset"), 0)
	if offset < 0 {
		offset = 0
	}
	limit := parseInt(q.Get("limit"), defaultPageSize)
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	ids, total, err := h.ledger.CertificateIDs(r.Context(), offset, limit)
	if err != nil {
		h.fail(w, "list certificates", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	respondData(w, http.StatusOK, certificatePage{Items: ids, Total: total, Offset: offset, Limit: limit})
}

func (h *APIHandlers) getCertificate(w http.ResponseWriter, r *http.Request) {
	certID := mux.Vars(r)["certId"]
	cert, err := h.ledger.GetCertificate(r.Context(), certID)
	if err != nil {
		h.fail(w, "get certificate", err, "cert_id", certID)
		return
	}
	respondData(w, http.StatusOK, cert)
}

func (h *APIHandlers) verifyCertificate(w http.ResponseWriter, r *http.Request) {
	certID := mux.Vars(r)["certId"]
	result, err := h.service.Verify(r.Context(), certID)
	if err != nil {
		h.fail(w, "verify certificate", err, "cert_id", certID)
		return
	}
	respondData(w, http.StatusOK, result)
}

func (h *APIHandlers) recordVerification(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	certID := mux.Vars(r)["certId"]
	receipt, err := h.service.RecordVerification(r.Context(), caller, certID)
	if err != nil {
		h.fail(w, "record verification", err, "cert_id", certID)
		return
	}
	respondMessage(w, http.StatusOK, "verification recorded", receipt)
}

func (h *APIHandlers) revokeCertificate(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	certID := mux.Vars(r)["certId"]
	receipt, err := h.service.Revoke(r.Context(), caller, certID)
	if err != nil {
		h.fail(w, "revoke certificate", err, "cert_id", certID)
		return
	}
	respondMessage(w, http.StatusOK, "certificate revoked", receipt)
}

func (h *APIHandlers) registryInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	admin, err := h.ledger.Admin(ctx)
	if err != nil {
		h.fail(w, "read admin", err)
		return
	}
	total, err := h.ledger.TotalCertificates(ctx)
	if err != nil {
		h.fail(w, "count certificates", err)
		return
	}
	issuers, err := h.ledger.Issuers(ctx)
	if err != nil {
		h.fail(w, "list issuers", err)
		return
	}

	resp := registryResponse{Admin: admin, TotalCertificates: total, Issuers: len(issuers)}
	if h.events != nil {
		height := h.events.Height()
		resp.Height = &height
	}
	respondData(w, http.StatusOK, resp)
}

func (h *APIHandlers) listEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var since uint64
	if raw := q.Get("since"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be a non-negative integer")
			return
		}
		since = v
	}
	limit := parseInt(q.Get("limit"), defaultPageSize)
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}

	events := h.events.EventsSince(since, limit)
	next := since
	if n := len(events); n > 0 {
		next = events[n-1].Seq
	}
	if events == nil {
		events = []domain.Event{}
	}
	respondData(w, http.StatusOK, eventsResponse{Events: events, Next: next})
}

func (h *APIHandlers) issuerCertificates(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(mux.Vars(r)["address"], "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	certs, err := h.graph.CertificatesByIssuer(r.Context(), addr.Hex(), parseInt(r.URL.Query().Get("limit"), 0))
	if err != nil {
		h.fail(w, "graph issuer certificates", err, "issuer", addr.Hex())
		return
	}
	if certs == nil {
		certs = []domain.IssuedCertificate{}
	}
	respondData(w, http.StatusOK, certs)
}

func (h *APIHandlers) studentProfile(w http.ResponseWriter, r *http.Request) {
	studentID := mux.Vars(r)["studentId"]
	profile, err := h.graph.StudentProfile(r.Context(), studentID)
	if err != nil {
		h.fail(w, "graph student profile", err, "student_id", studentID)
		return
	}
	respondData(w, http.StatusOK, profile)
}

func (h *APIHandlers) topIssuers(w http.ResponseWriter, r *http.Request) {
	stats, err := h.graph.TopIssuers(r.Context(), parseInt(r.URL.Query().Get("limit"), 0))
	if err != nil {
		h.fail(w, "graph top issuers", err)
		return
	}
	if stats == nil {
		stats = []domain.IssuerStats{}
	}
	respondData(w, http.StatusOK, stats)
}

// caller extracts the X-Caller-Address header, writing a 400 when it is
// missing or malformed.
func (h *APIHandlers) caller(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	raw := strings.TrimSpace(r.Header.Get(headerCaller))
	if raw == "" {
		writeError(w, http.StatusBadRequest, errMissingCaller.Error())
		return common.Address{}, false
	}
	addr, err := parseAddress(raw, headerCaller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return common.Address{}, false
	}
	return addr, true
}

func (h *APIHandlers) fail(w http.ResponseWriter, op string, err error, attrs ...any) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(op+" failed", append(attrs, "error", err)...)
		writeError(w, status, op+" failed")
		return
	}
	h.logger.Debug(op+" rejected", append(attrs, "error", err)...)

	var revert *registry.Error
	if errors.As(err, &revert) {
		writeError(w, status, revert.Error())
		return
	}
	writeError(w, status, err.Error())
}

func parseAddress(raw, field string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, errors.New("invalid " + field + ": expected a 20-byte hex address")
	}
	return common.HexToAddress(raw), nil
}
