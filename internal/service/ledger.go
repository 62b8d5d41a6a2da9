package service

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/akash768145s/BlockCred-sub000/internal/domain"
)

// Ledger is the certificate registry contract. It is implemented by the
// in-process simulator and by the on-chain contract client.
type Ledger interface {
	RegisterIssuer(ctx context.Context, caller common.Address, reg domain.IssuerRegistration) (domain.Receipt, error)
	DeactivateIssuer(ctx context.Context, caller, issuer common.Address) (domain.Receipt, error)
	RegisterStudentWallet(ctx context.Context, caller common.Address, studentID string, wallet common.Address) (domain.Receipt, error)
	IssueCertificate(ctx context.Context, caller common.Address, req domain.IssueRequest) (domain.Receipt, error)
	RevokeCertificate(ctx context.Context, caller common.Address, certID string) (domain.Receipt, error)
	RecordVerification(ctx context.Context, caller common.Address, certID string) (domain.Receipt, error)

	Admin(ctx context.Context) (common.Address, error)
	VerifyCertificate(ctx context.Context, certID string) (bool, error)
	GetCertificate(ctx context.Context, certID string) (domain.Certificate, error)
	CertificateExists(ctx context.Context, certID string) (bool, error)
	TotalCertificates(ctx context.Context) (int, error)
	CertificateIDs(ctx context.Context, offset, limit int) ([]string, int, error)
	StudentCertificates(ctx context.Context, studentID string) ([]string, error)
	StudentWallet(ctx context.Context, studentID string) (common.Address, bool, error)
	Issuer(ctx context.Context, addr common.Address) (domain.Issuer, error)
	IsAuthorizedIssuer(ctx context.Context, addr common.Address) (bool, error)
	Issuers(ctx context.Context) ([]domain.Issuer, error)
}
