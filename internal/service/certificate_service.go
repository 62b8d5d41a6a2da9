package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bluele/gcache"
	"github.com/ethereum/go-ethereum/common"

	"github.com/akash768145s/BlockCred-sub000/internal/domain"
	"github.com/akash768145s/BlockCred-sub000/internal/registry"
)

const (
	defaultCacheSize = 1024
	defaultCacheTTL  = 5 * time.Minute
)

// Options configures a CertificateService.
type Options struct {
	// EnforceRoles rejects issuance when the issuer's registered role does not
	// grant the certificate type.
	EnforceRoles bool
	CacheSize    int
	CacheTTL     time.Duration
	Logger       *slog.Logger
}

// IssueInput is the inbound issuance payload. Hashes, the certificate id and
// the student wallet are derived when left empty.
type IssueInput struct {
	CertID         string
	StudentID      string
	CertType       string
	ContentPointer string
	Content        []byte
	ContentHash    string
	Metadata       map[string]any
	MetadataHash   string
	StudentWallet  common.Address
}

// IssueResult describes a committed issuance.
type IssueResult struct {
	Certificate   domain.Certificate `json:"certificate"`
	Receipt       domain.Receipt     `json:"receipt"`
	WalletDerived bool               `json:"walletDerived"`
}

// Verification is the outcome of a certificate check.
type Verification struct {
	CertID      string              `json:"certId"`
	Valid       bool                `json:"valid"`
	Certificate *domain.Certificate `json:"certificate,omitempty"`
	CheckedAt   time.Time           `json:"checkedAt"`
}

// CertificateService orchestrates issuance, revocation and verification on
// top of a Ledger.
type CertificateService struct {
	ledger       Ledger
	cache        gcache.Cache
	enforceRoles bool
	logger       *slog.Logger
	nowFn        func() time.Time
	idNonce      atomic.Uint64

	// generation counts invalidations. A verification read that overlaps
	// one is returned but not cached.
	genMu      sync.Mutex
	generation uint64
}

// NewCertificateService constructs a CertificateService.
func NewCertificateService(ledger Ledger, opts Options) *CertificateService {
	size := opts.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CertificateService{
		ledger:       ledger,
		cache:        gcache.New(size).LRU().Expiration(ttl).Build(),
		enforceRoles: opts.EnforceRoles,
		logger:       logger,
		nowFn:        time.Now,
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (s *CertificateService) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

// Ledger returns the underlying ledger.
func (s *CertificateService) Ledger() Ledger {
	return s.ledger
}

// Issue derives the missing fields of in and issues the certificate as caller.
func (s *CertificateService) Issue(ctx context.Context, caller common.Address, in IssueInput) (IssueResult, error) {
	req, derived, err := s.prepare(ctx, in)
	if err != nil {
		return IssueResult{}, err
	}

	if s.enforceRoles {
		if err := s.checkRole(ctx, caller, req.CertType); err != nil {
			return IssueResult{}, err
		}
	}

	receipt, err := s.ledger.IssueCertificate(ctx, caller, req)
	if err != nil {
		return IssueResult{}, err
	}
	s.Invalidate(req.CertID)

	cert, err := s.ledger.GetCertificate(ctx, req.CertID)
	if err != nil {
		return IssueResult{}, fmt.Errorf("read issued certificate %s: %w", req.CertID, err)
	}

	s.logger.Info("certificate issued",
		"cert_id", req.CertID,
		"student_id", req.StudentID,
		"cert_type", req.CertType,
		"issuer", caller.Hex(),
		"tx", receipt.TxHash,
	)
	return IssueResult{Certificate: cert, Receipt: receipt, WalletDerived: derived}, nil
}

func (s *CertificateService) prepare(ctx context.Context, in IssueInput) (domain.IssueRequest, bool, error) {
	req := domain.IssueRequest{
		CertID:         strings.TrimSpace(in.CertID),
		StudentID:      strings.TrimSpace(in.StudentID),
		CertType:       normalizeCertType(in.CertType),
		ContentPointer: strings.TrimSpace(in.ContentPointer),
		ContentHash:    normalizeHash(in.ContentHash),
		MetadataHash:   strings.TrimSpace(in.MetadataHash),
		StudentWallet:  in.StudentWallet,
	}

	if len(in.Content) > 0 {
		computed := HashContent(in.Content)
		if req.ContentHash != "" && req.ContentHash != computed {
			return req, false, &registry.Error{Kind: registry.KindValidation, Reason: "Content hash does not match content"}
		}
		req.ContentHash = computed
	}

	if req.MetadataHash == "" {
		hash, err := HashMetadata(in.Metadata)
		if err != nil {
			return req, false, &registry.Error{Kind: registry.KindValidation, Reason: err.Error()}
		}
		req.MetadataHash = hash
	}

	if req.CertID == "" && req.ContentHash != "" && req.StudentID != "" {
		req.CertID = DeriveCertificateID(req.ContentHash, req.StudentID, s.nowFn().UTC(), s.idNonce.Add(1))
	}

	var derived bool
	if req.StudentWallet == (common.Address{}) && req.StudentID != "" {
		_, linked, err := s.ledger.StudentWallet(ctx, req.StudentID)
		if err != nil {
			return req, false, fmt.Errorf("lookup wallet for %s: %w", req.StudentID, err)
		}
		if !linked {
			req.StudentWallet = DeriveStudentWallet(req.StudentID)
			derived = true
		}
	}
	return req, derived, nil
}

func (s *CertificateService) checkRole(ctx context.Context, caller common.Address, certType string) error {
	issuer, err := s.ledger.Issuer(ctx, caller)
	if errors.Is(err, registry.ErrNotFound) {
		// The ledger rejects unregistered callers itself.
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup issuer %s: %w", caller.Hex(), err)
	}
	role, err := domain.ParseRole(issuer.Role)
	if err != nil || !role.CanIssue(domain.CertificateType(certType)) {
		return &registry.Error{
			Kind:   registry.KindUnauthorized,
			Reason: fmt.Sprintf("Role %q cannot issue %q certificates", issuer.Role, certType),
		}
	}
	return nil
}

// Revoke revokes certID as caller and drops any cached verification.
func (s *CertificateService) Revoke(ctx context.Context, caller common.Address, certID string) (domain.Receipt, error) {
	receipt, err := s.ledger.RevokeCertificate(ctx, caller, certID)
	if err != nil {
		return domain.Receipt{}, err
	}
	s.Invalidate(certID)
	s.logger.Info("certificate revoked", "cert_id", certID, "by", caller.Hex(), "tx", receipt.TxHash)
	return receipt, nil
}

// Verify reports whether certID is valid. Results are cached until the
// certificate changes or the entry expires.
func (s *CertificateService) Verify(ctx context.Context, certID string) (Verification, error) {
	if cached, err := s.cache.Get(certID); err == nil {
		if v, ok := cached.(Verification); ok {
			return v, nil
		}
	}

	s.genMu.Lock()
	gen := s.generation
	s.genMu.Unlock()

	result := Verification{CertID: certID, CheckedAt: s.nowFn().UTC()}
	cert, err := s.ledger.GetCertificate(ctx, certID)
	switch {
	case err == nil:
		result.Certificate = &cert
		result.Valid = !cert.Revoked
	case errors.Is(err, registry.ErrNotFound):
	default:
		return Verification{}, fmt.Errorf("verify %s: %w", certID, err)
	}

	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.generation != gen {
		return result, nil
	}
	if err := s.cache.Set(certID, result); err != nil {
		s.logger.Warn("verification cache set failed", "cert_id", certID, "error", err)
	}
	return result, nil
}

// RecordVerification emits an on-ledger verification event.
func (s *CertificateService) RecordVerification(ctx context.Context, caller common.Address, certID string) (domain.Receipt, error) {
	return s.ledger.RecordVerification(ctx, caller, certID)
}

// Invalidate drops the cached verification of certID.
func (s *CertificateService) Invalidate(certID string) {
	s.genMu.Lock()
	s.generation++
	s.cache.Remove(certID)
	s.genMu.Unlock()
}
