package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// CertificateType names a kind of academic credential.
type CertificateType string

const (
	CertificateTypeMarksheet     CertificateType = "marksheet"
	CertificateTypeDegree        CertificateType = "degree"
	CertificateTypeBonafide      CertificateType = "bonafide"
	CertificateTypeNOC           CertificateType = "noc"
	CertificateTypeParticipation CertificateType = "participation_cert"
)

// Certificate is the registry record for an issued credential. Only Revoked
// and RevokedAt change after issuance.
type Certificate struct {
	CertID         string         `json:"certId"`
	StudentID      string         `json:"studentId"`
	CertType       string         `json:"certType"`
	ContentPointer string         `json:"contentPointer"`
	ContentHash    string         `json:"contentHash"`
	MetadataHash   string         `json:"metadataHash"`
	IssuedAt       time.Time      `json:"issuedAt"`
	Issuer         common.Address `json:"issuer"`
	StudentWallet  common.Address `json:"studentWallet"`
	Revoked        bool           `json:"revoked"`
	RevokedAt      *time.Time     `json:"revokedAt,omitempty"`
}

// IssueRequest carries the arguments of an issueCertificate call.
type IssueRequest struct {
	CertID         string
	StudentID      string
	CertType       string
	ContentPointer string
	ContentHash    string
	MetadataHash   string
	StudentWallet  common.Address
}

// WalletLink binds a student identifier to a wallet address.
type WalletLink struct {
	StudentID string         `json:"studentId"`
	Wallet    common.Address `json:"wallet"`
}

// CertificateTypes lists every certificate type in a stable order.
func CertificateTypes() []CertificateType {
	return []CertificateType{
		CertificateTypeMarksheet,
		CertificateTypeDegree,
		CertificateTypeBonafide,
		CertificateTypeNOC,
		CertificateTypeParticipation,
	}
}
