package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akash768145s/BlockCred-sub000/internal/domain"
	"github.com/akash768145s/BlockCred-sub000/internal/journal"
)

var (
	adminAddr    = common.HexToAddress("0x00000000000000000000000000000000000000AD")
	issuerA1     = common.HexToAddress("0x00000000000000000000000000000000000000A1")
	issuerA2     = common.HexToAddress("0x00000000000000000000000000000000000000A2")
	walletB2     = common.HexToAddress("0x00000000000000000000000000000000000000B2")
	walletB3     = common.HexToAddress("0x00000000000000000000000000000000000000B3")
	outsiderC3   = common.HexToAddress("0x00000000000000000000000000000000000000C3")
	fixedBlockTs = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
)

func newTestRegistry(t *testing.T, opts ...Option) *Registry {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedBlockTs })}, opts...)
	return New(adminAddr, opts...)
}

func registerIssuer(t *testing.T, r *Registry, addr common.Address) {
	t.Helper()
	_, err := r.RegisterIssuer(context.Background(), adminAddr, domain.IssuerRegistration{
		Address:     addr,
		Name:        "Controller of Examinations",
		Role:        "coe",
		Institution: "SSN College of Engineering",
	})
	require.NoError(t, err)
}

func issueRequest(certID, studentID string, wallet common.Address) domain.IssueRequest {
	return domain.IssueRequest{
		CertID:         certID,
		StudentID:      studentID,
		CertType:       "marksheet",
		ContentPointer: "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG",
		ContentHash:    "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
		MetadataHash:   "60303ae22b998861bce3b28f33eec1be758a213c86c93c076dbe9f558c11c752",
		StudentWallet:  wallet,
	}
}

func TestRegistry_IssueAndVerifyScenario(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	registerIssuer(t, r, issuerA1)

	req := issueRequest("CERT-001", "S100", walletB2)
	receipt, err := r.IssueCertificate(ctx, issuerA1, req)
	require.NoError(t, err)
	require.Len(t, receipt.Events, 2)
	assert.Equal(t, domain.EventStudentWalletRegistered, receipt.Events[0].Name)
	assert.Equal(t, domain.EventCertificateIssued, receipt.Events[1].Name)

	assert.True(t, r.VerifyCertificate("CERT-001"))

	cert, err := r.GetCertificate("CERT-001")
	require.NoError(t, err)
	assert.Equal(t, "S100", cert.StudentID)
	assert.Equal(t, req.CertType, cert.CertType)
	assert.Equal(t, req.ContentPointer, cert.ContentPointer)
	assert.Equal(t, req.ContentHash, cert.ContentHash)
	assert.Equal(t, req.MetadataHash, cert.MetadataHash)
	assert.Equal(t, issuerA1, cert.Issuer)
	assert.Equal(t, walletB2, cert.StudentWallet)
	assert.Equal(t, fixedBlockTs, cert.IssuedAt)
	assert.False(t, cert.Revoked)
	assert.Nil(t, cert.RevokedAt)

	wallet, ok := r.StudentWallet("S100")
	require.True(t, ok)
	assert.Equal(t, walletB2, wallet)

	student, ok := r.WalletStudent(walletB2)
	require.True(t, ok)
	assert.Equal(t, "S100", student)

	assert.Equal(t, []string{"CERT-001"}, r.StudentCertificates("S100"))
	assert.Equal(t, 1, r.TotalCertificates())
}

func TestRegistry_RegisterIssuerTwiceFails(t *testing.T) {
	r := newTestRegistry(t)
	registerIssuer(t, r, issuerA1)

	_, err := r.RegisterIssuer(context.Background(), adminAddr, domain.IssuerRegistration{
		Address: issuerA1, Name: "Other", Role: "coe", Institution: "Other",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.EqualError(t, err, reasonIssuerRegistered)
	assert.Equal(t, 1, r.IssuerCount())
}

func TestRegistry_RegisterIssuerValidation(t *testing.T) {
	cases := []struct {
		name   string
		caller common.Address
		reg    domain.IssuerRegistration
		kind   error
	}{
		{"non admin", issuerA1, domain.IssuerRegistration{Address: issuerA2, Name: "n", Role: "r", Institution: "i"}, ErrUnauthorized},
		{"empty name", adminAddr, domain.IssuerRegistration{Address: issuerA2, Role: "r", Institution: "i"}, ErrValidation},
		{"empty role", adminAddr, domain.IssuerRegistration{Address: issuerA2, Name: "n", Institution: "i"}, ErrValidation},
		{"empty institution", adminAddr, domain.IssuerRegistration{Address: issuerA2, Name: "n", Role: "r"}, ErrValidation},
		{"zero address", adminAddr, domain.IssuerRegistration{Name: "n", Role: "r", Institution: "i"}, ErrValidation},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRegistry(t)
			_, err := r.RegisterIssuer(context.Background(), tc.caller, tc.reg)
			assert.ErrorIs(t, err, tc.kind)
			assert.Zero(t, r.IssuerCount())
			assert.Zero(t, r.Height())
		})
	}
}

func TestRegistry_IssueCertificateTwiceKeepsFirstRecord(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	registerIssuer(t, r, issuerA1)
	registerIssuer(t, r, issuerA2)

	_, err := r.IssueCertificate(ctx, issuerA1, issueRequest("CERT-001", "S100", walletB2))
	require.NoError(t, err)
	before, err := r.GetCertificate("CERT-001")
	require.NoError(t, err)

	second := issueRequest("CERT-001", "S200", walletB3)
	second.ContentHash = "different"
	_, err = r.IssueCertificate(ctx, issuerA2, second)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.EqualError(t, err, reasonCertificateExists)

	after, err := r.GetCertificate("CERT-001")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	_, linked := r.StudentWallet("S200")
	assert.False(t, linked, "failed issuance must not create the implicit wallet link")
	assert.Equal(t, 1, r.TotalCertificates())
}

func TestRegistry_IssueCertificateValidation(t *testing.T) {
	mutate := map[string]func(*domain.IssueRequest){
		"empty student": func(req *domain.IssueRequest) { req.StudentID = "" },
		"empty type":    func(req *domain.IssueRequest) { req.CertType = "" },
		"empty pointer": func(req *domain.IssueRequest) { req.ContentPointer = "" },
		"empty hash":    func(req *domain.IssueRequest) { req.ContentHash = "" },
		"empty cert id": func(req *domain.IssueRequest) { req.CertID = "" },
		"zero new link": func(req *domain.IssueRequest) { req.StudentWallet = common.Address{} },
	}

	for name, fn := range mutate {
		t.Run(name, func(t *testing.T) {
			r := newTestRegistry(t)
			registerIssuer(t, r, issuerA1)
			req := issueRequest("CERT-001", "S100", walletB2)
			fn(&req)

			_, err := r.IssueCertificate(context.Background(), issuerA1, req)
			assert.ErrorIs(t, err, ErrValidation)
			assert.False(t, r.CertificateExists("CERT-001"))
			assert.Equal(t, uint64(1), r.Height())
		})
	}
}

func TestRegistry_ImplicitLinkMatchesExplicitRegistration(t *testing.T) {
	ctx := context.Background()

	implicit := newTestRegistry(t)
	registerIssuer(t, implicit, issuerA1)
	receipt, err := implicit.IssueCertificate(ctx, issuerA1, issueRequest("CERT-001", "S100", walletB2))
	require.NoError(t, err)

	explicit := newTestRegistry(t)
	registerIssuer(t, explicit, issuerA1)
	explicitReceipt, err := explicit.RegisterStudentWallet(ctx, issuerA1, "S100", walletB2)
	require.NoError(t, err)

	require.Len(t, explicitReceipt.Events, 1)
	assert.Equal(t, explicitReceipt.Events[0].Name, receipt.Events[0].Name)
	assert.Equal(t, explicitReceipt.Events[0].Attributes, receipt.Events[0].Attributes)

	implicitWallet, _ := implicit.StudentWallet("S100")
	explicitWallet, _ := explicit.StudentWallet("S100")
	assert.Equal(t, explicitWallet, implicitWallet)
}

func TestRegistry_ExistingLinkWinsOverSuppliedWallet(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	registerIssuer(t, r, issuerA1)

	_, err := r.RegisterStudentWallet(ctx, issuerA1, "S100", walletB2)
	require.NoError(t, err)

	receipt, err := r.IssueCertificate(ctx, issuerA1, issueRequest("CERT-002", "S100", walletB3))
	require.NoError(t, err)
	require.Len(t, receipt.Events, 1, "no wallet event when the student is already linked")

	cert, err := r.GetCertificate("CERT-002")
	require.NoError(t, err)
	assert.Equal(t, walletB2, cert.StudentWallet)
}

func TestRegistry_RegisterStudentWalletRules(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	registerIssuer(t, r, issuerA1)

	_, err := r.RegisterStudentWallet(ctx, issuerA1, "S100", common.Address{})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = r.RegisterStudentWallet(ctx, outsiderC3, "S100", walletB2)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = r.RegisterStudentWallet(ctx, issuerA1, "S100", walletB2)
	require.NoError(t, err)

	_, err = r.RegisterStudentWallet(ctx, issuerA1, "S100", walletB3)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.EqualError(t, err, reasonStudentLinked)

	_, err = r.RegisterStudentWallet(ctx, issuerA1, "S200", walletB2)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.EqualError(t, err, reasonWalletLinked)
}

func TestRegistry_VerifyCertificateStates(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	registerIssuer(t, r, issuerA1)

	assert.False(t, r.VerifyCertificate("CERT-404"))

	_, err := r.IssueCertificate(ctx, issuerA1, issueRequest("CERT-001", "S100", walletB2))
	require.NoError(t, err)
	assert.True(t, r.VerifyCertificate("CERT-001"))

	receipt, err := r.RevokeCertificate(ctx, issuerA1, "CERT-001")
	require.NoError(t, err)
	require.Len(t, receipt.Events, 1)
	assert.Equal(t, domain.EventCertificateRevoked, receipt.Events[0].Name)
	assert.False(t, r.VerifyCertificate("CERT-001"))

	cert, err := r.GetCertificate("CERT-001")
	require.NoError(t, err)
	assert.True(t, cert.Revoked)
	require.NotNil(t, cert.RevokedAt)
	assert.Equal(t, fixedBlockTs, *cert.RevokedAt)

	_, err = r.RevokeCertificate(ctx, issuerA1, "CERT-001")
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = r.IssueCertificate(ctx, issuerA1, issueRequest("CERT-001", "S100", walletB2))
	assert.ErrorIs(t, err, ErrDuplicate, "a revoked id can never be issued again")
}

func TestRegistry_RevokePermissions(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	registerIssuer(t, r, issuerA1)
	registerIssuer(t, r, issuerA2)

	_, err := r.IssueCertificate(ctx, issuerA1, issueRequest("CERT-001", "S100", walletB2))
	require.NoError(t, err)

	_, err = r.RevokeCertificate(ctx, issuerA2, "CERT-001")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = r.RevokeCertificate(ctx, outsiderC3, "CERT-001")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = r.RevokeCertificate(ctx, adminAddr, "CERT-404")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.RevokeCertificate(ctx, adminAddr, "CERT-001")
	require.NoError(t, err)
}

func TestRegistry_DeactivatedIssuerIsLockedOut(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	registerIssuer(t, r, issuerA1)

	receipt, err := r.DeactivateIssuer(ctx, adminAddr, issuerA1)
	require.NoError(t, err)
	require.Len(t, receipt.Events, 1)
	assert.Equal(t, domain.EventIssuerDeactivated, receipt.Events[0].Name)

	_, err = r.IssueCertificate(ctx, issuerA1, issueRequest("CERT-001", "S100", walletB2))
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.EqualError(t, err, reasonIssuerInactive)

	_, err = r.RegisterStudentWallet(ctx, issuerA1, "S100", walletB2)
	assert.ErrorIs(t, err, ErrUnauthorized)

	assert.True(t, r.IsAuthorizedIssuer(issuerA1))
	issuer, err := r.Issuer(issuerA1)
	require.NoError(t, err)
	assert.False(t, issuer.IsActive)

	_, err = r.DeactivateIssuer(ctx, adminAddr, issuerA1)
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = r.RegisterIssuer(ctx, adminAddr, domain.IssuerRegistration{
		Address: issuerA1, Name: "again", Role: "coe", Institution: "SSN",
	})
	assert.ErrorIs(t, err, ErrDuplicate, "deactivation is one-way")

	_, err = r.DeactivateIssuer(ctx, adminAddr, outsiderC3)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.DeactivateIssuer(ctx, issuerA2, issuerA1)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRegistry_UnregisteredCallerCannotIssue(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.IssueCertificate(context.Background(), outsiderC3, issueRequest("CERT-XXX", "S100", walletB2))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.False(t, r.CertificateExists("CERT-XXX"))
	assert.Empty(t, r.EventsSince(0, 0))
}

func TestRegistry_RecordVerification(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	registerIssuer(t, r, issuerA1)
	_, err := r.IssueCertificate(ctx, issuerA1, issueRequest("CERT-001", "S100", walletB2))
	require.NoError(t, err)

	receipt, err := r.RecordVerification(ctx, outsiderC3, "CERT-001")
	require.NoError(t, err)
	require.Len(t, receipt.Events, 1)
	assert.Equal(t, "true", receipt.Events[0].Attr("valid"))
	assert.Equal(t, outsiderC3.Hex(), receipt.Events[0].Attr("verifier"))

	receipt, err = r.RecordVerification(ctx, outsiderC3, "CERT-404")
	require.NoError(t, err)
	assert.Equal(t, "false", receipt.Events[0].Attr("valid"))
}

func TestRegistry_JournalFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	j := journal.NewMemoryJournal()
	r := newTestRegistry(t, WithJournal(j))
	registerIssuer(t, r, issuerA1)

	j.WithAppendError(errors.New("write concern failed"))
	_, err := r.IssueCertificate(ctx, issuerA1, issueRequest("CERT-001", "S100", walletB2))
	require.Error(t, err)

	assert.False(t, r.CertificateExists("CERT-001"))
	_, linked := r.StudentWallet("S100")
	assert.False(t, linked)
	assert.Equal(t, uint64(1), r.Height())
	assert.Len(t, r.EventsSince(0, 0), 1)
}

func TestRegistry_RestoreReplaysJournal(t *testing.T) {
	ctx := context.Background()
	j := journal.NewMemoryJournal()
	original := newTestRegistry(t, WithJournal(j))
	registerIssuer(t, original, issuerA1)

	_, err := original.IssueCertificate(ctx, issuerA1, issueRequest("CERT-001", "S100", walletB2))
	require.NoError(t, err)
	_, err = original.IssueCertificate(ctx, issuerA1, issueRequest("CERT-002", "S100", walletB2))
	require.NoError(t, err)
	_, err = original.RevokeCertificate(ctx, issuerA1, "CERT-002")
	require.NoError(t, err)
	_, err = original.IssueCertificate(ctx, outsiderC3, issueRequest("CERT-003", "S300", walletB3))
	require.Error(t, err)

	restored := New(adminAddr, WithJournal(j))
	n, err := restored.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	assert.Equal(t, original.Height(), restored.Height())
	assert.Equal(t, original.EventsSince(0, 0), restored.EventsSince(0, 0))
	assert.True(t, restored.VerifyCertificate("CERT-001"))
	assert.False(t, restored.VerifyCertificate("CERT-002"))
	assert.False(t, restored.CertificateExists("CERT-003"))

	want, err := original.GetCertificate("CERT-002")
	require.NoError(t, err)
	got, err := restored.GetCertificate("CERT-002")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = restored.Restore(ctx)
	assert.Error(t, err, "restore into a non-empty registry must fail")
}

func TestRegistry_RestoreDetectsTampering(t *testing.T) {
	ctx := context.Background()
	j := journal.NewMemoryJournal()
	require.NoError(t, j.Append(ctx, journal.Entry{
		Seq:       1,
		TxHash:    "0xdeadbeef",
		Method:    MethodRegisterIssuer,
		Caller:    adminAddr.Hex(),
		Timestamp: fixedBlockTs,
		Args: map[string]string{
			"issuer": issuerA1.Hex(), "name": "n", "role": "coe", "institution": "i",
		},
	}))

	r := New(adminAddr, WithJournal(j))
	_, err := r.Restore(ctx)
	assert.ErrorIs(t, err, ErrReplayDiverged)
}

func TestRegistry_ChangedSignalsCommits(t *testing.T) {
	r := newTestRegistry(t)
	changed := r.Changed()

	select {
	case <-changed:
		t.Fatal("channel closed before any commit")
	default:
	}

	registerIssuer(t, r, issuerA1)

	select {
	case <-changed:
	case <-time.After(time.Second):
		t.Fatal("commit did not signal")
	}

	events := r.EventsSince(0, 0)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(1), events[0].Seq)
	assert.Empty(t, r.EventsSince(1, 0))
}

func TestRegistry_ConcurrentIssuanceIsSerialised(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	registerIssuer(t, r, issuerA1)

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.IssueCertificate(ctx, issuerA1, issueRequest("CERT-RACE", "S100", walletB2))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, dup int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrDuplicate):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, dup)
	assert.Equal(t, 1, r.TotalCertificates())
}

func TestRegistry_CertificateIDsPaging(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	registerIssuer(t, r, issuerA1)
	for _, id := range []string{"C1", "C2", "C3"} {
		_, err := r.IssueCertificate(ctx, issuerA1, issueRequest(id, "S100", walletB2))
		require.NoError(t, err)
	}

	ids, total := r.CertificateIDs(1, 1)
	assert.Equal(t, 3, total)
	assert.Equal(t, []string{"C2"}, ids)

	ids, _ = r.CertificateIDs(5, 10)
	assert.Empty(t, ids)

	ids, _ = r.CertificateIDs(0, 0)
	assert.Equal(t, []string{"C1", "C2", "C3"}, ids)
}

func TestErrorForReason(t *testing.T) {
	err, ok := ErrorForReason("Certificate does not exist")
	require.True(t, ok)
	assert.ErrorIs(t, err, ErrNotFound)

	err, ok = ErrorForReason("Only admin can perform this action")
	require.True(t, ok)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, ok = ErrorForReason("out of gas")
	assert.False(t, ok)
}
