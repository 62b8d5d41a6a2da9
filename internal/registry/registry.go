package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/akash768145s/BlockCred-sub000/internal/domain"
	"github.com/akash768145s/BlockCred-sub000/internal/journal"
)

// Method names as they appear in the journal and the contract ABI.
const (
	MethodRegisterIssuer        = "registerIssuer"
	MethodDeactivateIssuer      = "deactivateIssuer"
	MethodRegisterStudentWallet = "registerStudentWallet"
	MethodIssueCertificate      = "issueCertificate"
	MethodRevokeCertificate     = "revokeCertificate"
	MethodRecordVerification    = "recordVerification"
)

// ErrReplayDiverged is returned by Restore when a journaled call no longer
// produces the recorded transaction.
var ErrReplayDiverged = errors.New("journal replay diverged")

// Registry is the off-chain certificate registry. Mutating calls are
// serialised by a single write lock and either commit completely or leave no
// trace; reads run concurrently under the read lock.
type Registry struct {
	mu sync.RWMutex

	admin          common.Address
	issuers        map[common.Address]*domain.Issuer
	authorized     map[common.Address]bool
	issuerList     []common.Address
	studentWallets map[string]common.Address
	walletStudents map[common.Address]string
	certificates   map[string]*domain.Certificate
	studentCerts   map[string][]string
	allCerts       []string
	events         []domain.Event
	height         uint64
	changed        chan struct{}

	journal journal.Journal
	now     func() time.Time
	logger  *slog.Logger
}

// Option customises a Registry.
type Option func(*Registry)

// WithJournal persists every committed call to j.
func WithJournal(j journal.Journal) Option {
	return func(r *Registry) {
		r.journal = j
	}
}

// WithClock overrides the time source used for block timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates an empty registry administered by admin.
func New(admin common.Address, opts ...Option) *Registry {
	r := &Registry{
		admin:          admin,
		issuers:        make(map[common.Address]*domain.Issuer),
		authorized:     make(map[common.Address]bool),
		studentWallets: make(map[string]common.Address),
		walletStudents: make(map[common.Address]string),
		certificates:   make(map[string]*domain.Certificate),
		studentCerts:   make(map[string][]string),
		changed:        make(chan struct{}),
		now:            time.Now,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// call is a registry invocation in its journaled form.
type call struct {
	method string
	caller common.Address
	args   map[string]string
}

type pendingEvent struct {
	name  domain.EventName
	attrs map[string]string
}

// effect is a fully validated state change that has not been applied yet.
type effect struct {
	apply  func()
	events []pendingEvent
}

// RegisterIssuer adds an address to the issuer directory. Admin only.
func (r *Registry) RegisterIssuer(ctx context.Context, caller common.Address, reg domain.IssuerRegistration) (domain.Receipt, error) {
	return r.execute(ctx, call{
		method: MethodRegisterIssuer,
		caller: caller,
		args: map[string]string{
			"issuer":      reg.Address.Hex(),
			"name":        reg.Name,
			"role":        reg.Role,
			"institution": reg.Institution,
		},
	})
}

// DeactivateIssuer permanently disables an issuer. Admin only.
func (r *Registry) DeactivateIssuer(ctx context.Context, caller, issuer common.Address) (domain.Receipt, error) {
	return r.execute(ctx, call{
		method: MethodDeactivateIssuer,
		caller: caller,
		args:   map[string]string{"issuer": issuer.Hex()},
	})
}

// RegisterStudentWallet links a student identifier to a wallet address.
func (r *Registry) RegisterStudentWallet(ctx context.Context, caller common.Address, studentID string, wallet common.Address) (domain.Receipt, error) {
	return r.execute(ctx, call{
		method: MethodRegisterStudentWallet,
		caller: caller,
		args: map[string]string{
			"studentId": studentID,
			"wallet":    wallet.Hex(),
		},
	})
}

// IssueCertificate stores a new certificate record. When the student has no
// wallet link yet, the supplied wallet is linked as part of the same call.
func (r *Registry) IssueCertificate(ctx context.Context, caller common.Address, req domain.IssueRequest) (domain.Receipt, error) {
	return r.execute(ctx, call{
		method: MethodIssueCertificate,
		caller: caller,
		args: map[string]string{
			"certId":         req.CertID,
			"studentId":      req.StudentID,
			"certType":       req.CertType,
			"contentPointer": req.ContentPointer,
			"contentHash":    req.ContentHash,
			"metadataHash":   req.MetadataHash,
			"studentWallet":  req.StudentWallet.Hex(),
		},
	})
}

// RevokeCertificate marks a certificate revoked. Allowed for the admin and
// for the active issuer that issued it.
func (r *Registry) RevokeCertificate(ctx context.Context, caller common.Address, certID string) (domain.Receipt, error) {
	return r.execute(ctx, call{
		method: MethodRevokeCertificate,
		caller: caller,
		args:   map[string]string{"certId": certID},
	})
}

// RecordVerification emits a CertificateVerified event carrying the current
// verification outcome. Anyone may call it.
func (r *Registry) RecordVerification(ctx context.Context, caller common.Address, certID string) (domain.Receipt, error) {
	return r.execute(ctx, call{
		method: MethodRecordVerification,
		caller: caller,
		args:   map[string]string{"certId": certID},
	})
}

// Restore replays the journal into an empty registry.
func (r *Registry) Restore(ctx context.Context) (int, error) {
	if r.journal == nil {
		return 0, nil
	}

	entries, err := r.journal.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load journal: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.height != 0 {
		return 0, errors.New("restore requires an empty registry")
	}

	for _, entry := range entries {
		if entry.Seq != r.height+1 {
			return 0, fmt.Errorf("%w: entry seq %d at height %d", ErrReplayDiverged, entry.Seq, r.height)
		}
		if !common.IsHexAddress(entry.Caller) {
			return 0, fmt.Errorf("%w: entry %d has caller %q", ErrReplayDiverged, entry.Seq, entry.Caller)
		}
		c := call{
			method: entry.Method,
			caller: common.HexToAddress(entry.Caller),
			args:   entry.Args,
		}
		receipt, err := r.commit(ctx, c, entry.Timestamp.UTC(), false)
		if err != nil {
			return 0, fmt.Errorf("replay entry %d (%s): %w", entry.Seq, entry.Method, err)
		}
		if entry.TxHash != "" && receipt.TxHash != entry.TxHash {
			return 0, fmt.Errorf("%w: entry %d hash %s, replayed %s", ErrReplayDiverged, entry.Seq, entry.TxHash, receipt.TxHash)
		}
	}

	r.logger.Info("registry restored", "entries", len(entries), "height", r.height)
	return len(entries), nil
}

func (r *Registry) execute(ctx context.Context, c call) (domain.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := r.now().UTC().Truncate(time.Second)
	receipt, err := r.commit(ctx, c, ts, true)
	if err != nil {
		r.logger.Debug("registry call rejected", "method", c.method, "caller", c.caller.Hex(), "error", err)
		return domain.Receipt{}, err
	}
	r.logger.Debug("registry call committed", "method", c.method, "block", receipt.Block, "tx", receipt.TxHash)
	return receipt, nil
}

// commit plans, journals and applies a call. Callers hold the write lock.
func (r *Registry) commit(ctx context.Context, c call, ts time.Time, persist bool) (domain.Receipt, error) {
	eff, err := r.plan(c, ts)
	if err != nil {
		return domain.Receipt{}, err
	}

	height := r.height + 1
	txHash := transactionHash(height, c)

	if persist && r.journal != nil {
		entry := journal.Entry{
			Seq:       height,
			TxHash:    txHash,
			Method:    c.method,
			Caller:    c.caller.Hex(),
			Timestamp: ts,
			Args:      c.args,
		}
		if err := r.journal.Append(ctx, entry); err != nil {
			return domain.Receipt{}, fmt.Errorf("journal %s: %w", c.method, err)
		}
	}

	eff.apply()
	r.height = height

	receipt := domain.Receipt{TxHash: txHash, Block: height}
	for _, pe := range eff.events {
		ev := domain.Event{
			Seq:        uint64(len(r.events)) + 1,
			Block:      height,
			TxHash:     txHash,
			Name:       pe.name,
			Timestamp:  ts,
			Attributes: pe.attrs,
		}
		r.events = append(r.events, ev)
		receipt.Events = append(receipt.Events, cloneEvent(ev))
	}

	close(r.changed)
	r.changed = make(chan struct{})
	return receipt, nil
}

func (r *Registry) plan(c call, ts time.Time) (effect, error) {
	switch c.method {
	case MethodRegisterIssuer:
		return r.planRegisterIssuer(c, ts)
	case MethodDeactivateIssuer:
		return r.planDeactivateIssuer(c)
	case MethodRegisterStudentWallet:
		return r.planRegisterStudentWallet(c)
	case MethodIssueCertificate:
		return r.planIssueCertificate(c, ts)
	case MethodRevokeCertificate:
		return r.planRevokeCertificate(c, ts)
	case MethodRecordVerification:
		return r.planRecordVerification(c)
	default:
		return effect{}, fmt.Errorf("unknown registry method %q", c.method)
	}
}

func (r *Registry) planRegisterIssuer(c call, ts time.Time) (effect, error) {
	if err := r.requireAdmin(c.caller); err != nil {
		return effect{}, err
	}
	addr, ok := parseAddress(c.args["issuer"])
	if !ok || addr == (common.Address{}) {
		return effect{}, revert(KindValidation, reasonInvalidIssuerAddress)
	}
	if r.authorized[addr] {
		return effect{}, revert(KindDuplicate, reasonIssuerRegistered)
	}
	name, role, institution := c.args["name"], c.args["role"], c.args["institution"]
	switch {
	case name == "":
		return effect{}, revert(KindValidation, reasonEmptyName)
	case role == "":
		return effect{}, revert(KindValidation, reasonEmptyRole)
	case institution == "":
		return effect{}, revert(KindValidation, reasonEmptyInstitution)
	}

	return effect{
		apply: func() {
			r.issuers[addr] = &domain.Issuer{
				Address:      addr,
				Name:         name,
				Role:         role,
				Institution:  institution,
				IsActive:     true,
				RegisteredAt: ts,
			}
			r.authorized[addr] = true
			r.issuerList = append(r.issuerList, addr)
		},
		events: []pendingEvent{{
			name: domain.EventIssuerRegistered,
			attrs: map[string]string{
				"issuer":      addr.Hex(),
				"name":        name,
				"role":        role,
				"institution": institution,
			},
		}},
	}, nil
}

func (r *Registry) planDeactivateIssuer(c call) (effect, error) {
	if err := r.requireAdmin(c.caller); err != nil {
		return effect{}, err
	}
	addr, ok := parseAddress(c.args["issuer"])
	if !ok || !r.authorized[addr] {
		return effect{}, revert(KindNotFound, reasonIssuerNotRegistered)
	}
	issuer := r.issuers[addr]
	if !issuer.IsActive {
		return effect{}, revert(KindDuplicate, reasonIssuerDeactivated)
	}

	return effect{
		apply: func() {
			issuer.IsActive = false
		},
		events: []pendingEvent{{
			name:  domain.EventIssuerDeactivated,
			attrs: map[string]string{"issuer": addr.Hex()},
		}},
	}, nil
}

func (r *Registry) planRegisterStudentWallet(c call) (effect, error) {
	if err := r.requireActiveIssuer(c.caller); err != nil {
		return effect{}, err
	}
	studentID := c.args["studentId"]
	if studentID == "" {
		return effect{}, revert(KindValidation, reasonEmptyStudentID)
	}
	wallet, ok := parseAddress(c.args["wallet"])
	if !ok || wallet == (common.Address{}) {
		return effect{}, revert(KindValidation, reasonInvalidWallet)
	}
	if _, linked := r.studentWallets[studentID]; linked {
		return effect{}, revert(KindDuplicate, reasonStudentLinked)
	}
	if owner, taken := r.walletStudents[wallet]; taken && owner != studentID {
		return effect{}, revert(KindDuplicate, reasonWalletLinked)
	}

	return effect{
		apply:  r.linkWallet(studentID, wallet),
		events: []pendingEvent{walletEvent(studentID, wallet)},
	}, nil
}

func (r *Registry) planIssueCertificate(c call, ts time.Time) (effect, error) {
	if err := r.requireActiveIssuer(c.caller); err != nil {
		return effect{}, err
	}
	certID := c.args["certId"]
	if certID == "" {
		return effect{}, revert(KindValidation, reasonEmptyCertID)
	}
	if _, exists := r.certificates[certID]; exists {
		return effect{}, revert(KindDuplicate, reasonCertificateExists)
	}
	studentID, certType := c.args["studentId"], c.args["certType"]
	contentPointer, contentHash := c.args["contentPointer"], c.args["contentHash"]
	switch {
	case studentID == "":
		return effect{}, revert(KindValidation, reasonEmptyStudentID)
	case certType == "":
		return effect{}, revert(KindValidation, reasonEmptyCertType)
	case contentPointer == "":
		return effect{}, revert(KindValidation, reasonEmptyContentPointer)
	case contentHash == "":
		return effect{}, revert(KindValidation, reasonEmptyContentHash)
	}

	var events []pendingEvent
	var link func()

	wallet, linked := r.studentWallets[studentID]
	if !linked {
		supplied, ok := parseAddress(c.args["studentWallet"])
		if !ok || supplied == (common.Address{}) {
			return effect{}, revert(KindValidation, reasonInvalidWallet)
		}
		if _, taken := r.walletStudents[supplied]; taken {
			return effect{}, revert(KindDuplicate, reasonWalletLinked)
		}
		wallet = supplied
		link = r.linkWallet(studentID, wallet)
		events = append(events, walletEvent(studentID, wallet))
	}

	cert := &domain.Certificate{
		CertID:         certID,
		StudentID:      studentID,
		CertType:       certType,
		ContentPointer: contentPointer,
		ContentHash:    contentHash,
		MetadataHash:   c.args["metadataHash"],
		IssuedAt:       ts,
		Issuer:         c.caller,
		StudentWallet:  wallet,
	}
	events = append(events, pendingEvent{
		name: domain.EventCertificateIssued,
		attrs: map[string]string{
			"certId":         certID,
			"studentId":      studentID,
			"certType":       certType,
			"contentPointer": contentPointer,
			"contentHash":    contentHash,
			"metadataHash":   cert.MetadataHash,
			"issuer":         c.caller.Hex(),
			"studentWallet":  wallet.Hex(),
		},
	})

	return effect{
		apply: func() {
			if link != nil {
				link()
			}
			r.certificates[certID] = cert
			r.studentCerts[studentID] = append(r.studentCerts[studentID], certID)
			r.allCerts = append(r.allCerts, certID)
		},
		events: events,
	}, nil
}

func (r *Registry) planRevokeCertificate(c call, ts time.Time) (effect, error) {
	isAdmin := c.caller == r.admin
	if !isAdmin {
		if err := r.requireActiveIssuer(c.caller); err != nil {
			return effect{}, err
		}
	}
	certID := c.args["certId"]
	cert, exists := r.certificates[certID]
	if !exists {
		return effect{}, revert(KindNotFound, reasonCertificateNotFound)
	}
	if !isAdmin && cert.Issuer != c.caller {
		return effect{}, revert(KindUnauthorized, reasonOnlyIssuerOrAdmin)
	}
	if cert.Revoked {
		return effect{}, revert(KindDuplicate, reasonCertificateRevoked)
	}

	return effect{
		apply: func() {
			revokedAt := ts
			cert.Revoked = true
			cert.RevokedAt = &revokedAt
		},
		events: []pendingEvent{{
			name: domain.EventCertificateRevoked,
			attrs: map[string]string{
				"certId":    certID,
				"revokedBy": c.caller.Hex(),
			},
		}},
	}, nil
}

func (r *Registry) planRecordVerification(c call) (effect, error) {
	certID := c.args["certId"]
	if certID == "" {
		return effect{}, revert(KindValidation, reasonEmptyCertID)
	}
	valid := r.verify(certID)
	return effect{
		apply: func() {},
		events: []pendingEvent{{
			name: domain.EventCertificateVerified,
			attrs: map[string]string{
				"certId":   certID,
				"verifier": c.caller.Hex(),
				"valid":    fmt.Sprintf("%t", valid),
			},
		}},
	}, nil
}

func (r *Registry) requireAdmin(caller common.Address) error {
	if caller != r.admin {
		return revert(KindUnauthorized, reasonOnlyAdmin)
	}
	return nil
}

func (r *Registry) requireActiveIssuer(caller common.Address) error {
	if !r.authorized[caller] {
		return revert(KindUnauthorized, reasonNotAuthorizedIssuer)
	}
	if !r.issuers[caller].IsActive {
		return revert(KindUnauthorized, reasonIssuerInactive)
	}
	return nil
}

func (r *Registry) linkWallet(studentID string, wallet common.Address) func() {
	return func() {
		r.studentWallets[studentID] = wallet
		r.walletStudents[wallet] = studentID
	}
}

func walletEvent(studentID string, wallet common.Address) pendingEvent {
	return pendingEvent{
		name: domain.EventStudentWalletRegistered,
		attrs: map[string]string{
			"studentId": studentID,
			"wallet":    wallet.Hex(),
		},
	}
}

func parseAddress(raw string) (common.Address, bool) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

// transactionHash derives a deterministic hash for the call committed at height.
func transactionHash(height uint64, c call) string {
	keys := make([]string, 0, len(c.args))
	for k := range c.args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "%d|%s|%s", height, c.method, c.caller.Hex())
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s=%s", k, c.args[k])
	}
	return crypto.Keccak256Hash([]byte(b.String())).Hex()
}

func cloneEvent(ev domain.Event) domain.Event {
	attrs := make(map[string]string, len(ev.Attributes))
	for k, v := range ev.Attributes {
		attrs[k] = v
	}
	ev.Attributes = attrs
	return ev
}
