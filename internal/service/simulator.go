package service

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/akash768145s/BlockCred-sub000/internal/domain"
	"github.com/akash768145s/BlockCred-sub000/internal/registry"
)

// Simulator serves the Ledger interface from the in-process registry.
type Simulator struct {
	reg *registry.Registry
}

// NewSimulator wraps reg.
func NewSimulator(reg *registry.Registry) *Simulator {
	return &Simulator{reg: reg}
}

// Registry exposes the wrapped registry for event consumers.
func (s *Simulator) Registry() *registry.Registry {
	return s.reg
}

func (s *Simulator) RegisterIssuer(ctx context.Context, caller common.Address, reg domain.IssuerRegistration) (domain.Receipt, error) {
	return s.reg.RegisterIssuer(ctx, caller, reg)
}

func (s *Simulator) DeactivateIssuer(ctx context.Context, caller, issuer common.Address) (domain.Receipt, error) {
	return s.reg.DeactivateIssuer(ctx, caller, issuer)
}

func (s *Simulator) RegisterStudentWallet(ctx context.Context, caller common.Address, studentID string, wallet common.Address) (domain.Receipt, error) {
	return s.reg.RegisterStudentWallet(ctx, caller, studentID, wallet)
}

func (s *Simulator) IssueCertificate(ctx context.Context, caller common.Address, req domain.IssueRequest) (domain.Receipt, error) {
	return s.reg.IssueCertificate(ctx, caller, req)
}

func (s *Simulator) RevokeCertificate(ctx context.Context, caller common.Address, certID string) (domain.Receipt, error) {
	return s.reg.RevokeCertificate(ctx, caller, certID)
}

func (s *Simulator) RecordVerification(ctx context.Context, caller common.Address, certID string) (domain.Receipt, error) {
	return s.reg.RecordVerification(ctx, caller, certID)
}

func (s *Simulator) Admin(context.Context) (common.Address, error) {
	return s.reg.Admin(), nil
}

func (s *Simulator) VerifyCertificate(_ context.Context, certID string) (bool, error) {
	return s.reg.VerifyCertificate(certID), nil
}

func (s *Simulator) GetCertificate(_ context.Context, certID string) (domain.Certificate, error) {
	return s.reg.GetCertificate(certID)
}

func (s *Simulator) CertificateExists(_ context.Context, certID string) (bool, error) {
	return s.reg.CertificateExists(certID), nil
}

func (s *Simulator) TotalCertificates(context.Context) (int, error) {
	return s.reg.TotalCertificates(), nil
}

func (s *Simulator) CertificateIDs(_ context.Context, offset, limit int) ([]string, int, error) {
	ids, total := s.reg.CertificateIDs(offset, limit)
	return ids, total, nil
}

func (s *Simulator) StudentCertificates(_ context.Context, studentID string) ([]string, error) {
	return s.reg.StudentCertificates(studentID), nil
}

func (s *Simulator) StudentWallet(_ context.Context, studentID string) (common.Address, bool, error) {
	wallet, ok := s.reg.StudentWallet(studentID)
	return wallet, ok, nil
}

func (s *Simulator) Issuer(_ context.Context, addr common.Address) (domain.Issuer, error) {
	return s.reg.Issuer(addr)
}

func (s *Simulator) IsAuthorizedIssuer(_ context.Context, addr common.Address) (bool, error) {
	return s.reg.IsAuthorizedIssuer(addr), nil
}

func (s *Simulator) Issuers(context.Context) ([]domain.Issuer, error) {
	return s.reg.Issuers(), nil
}
