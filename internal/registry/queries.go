package registry

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/akash768145s/BlockCred-sub000/internal/domain"
)

// Admin returns the registry administrator.
func (r *Registry) Admin() common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.admin
}

// Height returns the number of committed calls.
func (r *Registry) Height() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.height
}

// Changed returns a channel that is closed by the next committed call.
func (r *Registry) Changed() <-chan struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.changed
}

// VerifyCertificate reports whether certID exists and is not revoked.
func (r *Registry) VerifyCertificate(certID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.verify(certID)
}

func (r *Registry) verify(certID string) bool {
	cert, ok := r.certificates[certID]
	return ok && !cert.Revoked
}

// GetCertificate returns the stored record for certID.
func (r *Registry) GetCertificate(certID string) (domain.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cert, ok := r.certificates[certID]
	if !ok {
		return domain.Certificate{}, revert(KindNotFound, reasonCertificateNotFound)
	}
	out := *cert
	if cert.RevokedAt != nil {
		revokedAt := *cert.RevokedAt
		out.RevokedAt = &revokedAt
	}
	return out, nil
}

// CertificateExists reports whether certID was ever issued.
func (r *Registry) CertificateExists(certID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.certificates[certID]
	return ok
}

// TotalCertificates returns the number of issued certificates.
func (r *Registry) TotalCertificates() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.allCerts)
}

// CertificateIDs returns a page of certificate ids in issuance order and the total count.
func (r *Registry) CertificateIDs(offset, limit int) ([]string, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := len(r.allCerts)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []string{}, total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return append([]string(nil), r.allCerts[offset:end]...), total
}

// StudentCertificates returns the certificate ids of a student in issuance order.
func (r *Registry) StudentCertificates(studentID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string{}, r.studentCerts[studentID]...)
}

// StudentWallet returns the wallet linked to studentID.
func (r *Registry) StudentWallet(studentID string) (common.Address, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wallet, ok := r.studentWallets[studentID]
	return wallet, ok
}

// WalletStudent returns the student linked to wallet.
func (r *Registry) WalletStudent(wallet common.Address) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	studentID, ok := r.walletStudents[wallet]
	return studentID, ok
}

// IsAuthorizedIssuer reports whether addr was ever registered as an issuer.
// Deactivated issuers stay authorized; use Issuer to read the active flag.
func (r *Registry) IsAuthorizedIssuer(addr common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.authorized[addr]
}

// Issuer returns the directory entry for addr.
func (r *Registry) Issuer(addr common.Address) (domain.Issuer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	issuer, ok := r.issuers[addr]
	if !ok {
		return domain.Issuer{}, revert(KindNotFound, reasonIssuerNotRegistered)
	}
	return *issuer, nil
}

// Issuers returns all registered issuers in registration order.
func (r *Registry) Issuers() []domain.Issuer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Issuer, 0, len(r.issuerList))
	for _, addr := range r.issuerList {
		out = append(out, *r.issuers[addr])
	}
	return out
}

// IssuerCount returns the number of registered issuers.
func (r *Registry) IssuerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.issuerList)
}

// EventsSince returns up to limit events with a sequence number greater than seq.
func (r *Registry) EventsSince(seq uint64, limit int) []domain.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := uint64(len(r.events))
	if seq >= total {
		return nil
	}
	end := total
	if limit > 0 && seq+uint64(limit) < total {
		end = seq + uint64(limit)
	}
	out := make([]domain.Event, 0, end-seq)
	for _, ev := range r.events[seq:end] {
		out = append(out, cloneEvent(ev))
	}
	return out
}
