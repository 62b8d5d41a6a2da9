package domain

import "time"

// IssuedCertificate is a certificate as seen from its issuer in the graph
// read model.
type IssuedCertificate struct {
	CertID    string    `json:"certId"`
	StudentID string    `json:"studentId"`
	CertType  string    `json:"certType"`
	IssuedAt  time.Time `json:"issuedAt"`
	Revoked   bool      `json:"revoked"`
}

// ProfileCertificate is a certificate listed on a student profile.
type ProfileCertificate struct {
	CertID        string    `json:"certId"`
	CertType      string    `json:"certType"`
	IssuerAddress string    `json:"issuerAddress"`
	IssuerName    string    `json:"issuerName"`
	Institution   string    `json:"institution"`
	IssuedAt      time.Time `json:"issuedAt"`
	Revoked       bool      `json:"revoked"`
	Verifications int64     `json:"verifications"`
}

// StudentProfile aggregates a student's wallet and certificates.
type StudentProfile struct {
	StudentID    string               `json:"studentId"`
	Wallet       string               `json:"wallet"`
	Certificates []ProfileCertificate `json:"certificates"`
}

// IssuerStats ranks issuers by issuance volume.
type IssuerStats struct {
	Address     string `json:"address"`
	Name        string `json:"name"`
	Institution string `json:"institution"`
	Active      bool   `json:"active"`
	Issued      int64  `json:"issued"`
	Revoked     int64  `json:"revoked"`
}
