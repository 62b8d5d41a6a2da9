package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/akash768145s/BlockCred-sub000/internal/domain"
	"github.com/akash768145s/BlockCred-sub000/internal/graph"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// ErrNotFound is returned when a queried node is absent from the read model.
var ErrNotFound = errors.New("not found in graph")

// Repository maintains the certificate graph
// (:Issuer)-[:ISSUED]->(:Certificate)-[:AWARDED_TO]->(:Student) and answers
// queries against it.
type Repository struct {
	client graph.Client
}

// New instantiates a Repository backed by the supplied graph client.
func New(client graph.Client) *Repository {
	return &Repository{client: client}
}

// EnsureSchema creates the uniqueness constraints the upserts rely on.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaCypher {
		if _, err := r.client.ExecuteWrite(ctx, stmt, nil); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// ApplyEvent projects one registry event. Every statement is an idempotent
// upsert, so replaying the log is safe.
func (r *Repository) ApplyEvent(ctx context.Context, ev domain.Event) error {
	var (
		cypher string
		params map[string]any
	)
	ts := formatTime(ev.Timestamp)

	switch ev.Name {
	case domain.EventIssuerRegistered:
		cypher = upsertIssuerCypher
		params = map[string]any{
			"address":      ev.Attr("issuer"),
			"name":         ev.Attr("name"),
			"role":         ev.Attr("role"),
			"institution":  ev.Attr("institution"),
			"registeredAt": ts,
		}
	case domain.EventIssuerDeactivated:
		cypher = deactivateIssuerCypher
		params = map[string]any{"address": ev.Attr("issuer"), "deactivatedAt": ts}
	case domain.EventStudentWalletRegistered:
		cypher = linkWalletCypher
		params = map[string]any{"studentId": ev.Attr("studentId"), "wallet": ev.Attr("wallet"), "linkedAt": ts}
	case domain.EventCertificateIssued:
		cypher = issueCertificateCypher
		params = map[string]any{
			"certId":         ev.Attr("certId"),
			"issuer":         ev.Attr("issuer"),
			"studentId":      ev.Attr("studentId"),
			"wallet":         ev.Attr("studentWallet"),
			"certType":       ev.Attr("certType"),
			"contentPointer": ev.Attr("contentPointer"),
			"contentHash":    ev.Attr("contentHash"),
			"metadataHash":   ev.Attr("metadataHash"),
			"issuedAt":       ts,
			"txHash":         ev.TxHash,
		}
	case domain.EventCertificateRevoked:
		cypher = revokeCertificateCypher
		params = map[string]any{"certId": ev.Attr("certId"), "revokedBy": ev.Attr("revokedBy"), "revokedAt": ts}
	case domain.EventCertificateVerified:
		cypher = recordVerificationCypher
		params = map[string]any{"certId": ev.Attr("certId"), "verifiedAt": ts}
	default:
		return nil
	}

	if _, err := r.client.ExecuteWrite(ctx, cypher, params); err != nil {
		return fmt.Errorf("project %s #%d: %w", ev.Name, ev.Seq, err)
	}
	return nil
}

// CertificatesByIssuer lists certificates issued by address, newest first.
func (r *Repository) CertificatesByIssuer(ctx context.Context, address string, limit int) ([]domain.IssuedCertificate, error) {
	if strings.TrimSpace(address) == "" {
		return nil, errors.New("issuer address is required")
	}
	res, err := r.client.ExecuteRead(ctx, certificatesByIssuerCypher, map[string]any{
		"address": address,
		"limit":   clampLimit(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("certificates by issuer %s: %w", address, err)
	}

	out := make([]domain.IssuedCertificate, 0, len(res.Records))
	for _, rec := range res.Records {
		out = append(out, domain.IssuedCertificate{
			CertID:    rec.String("certId"),
			StudentID: rec.String("studentId"),
			CertType:  rec.String("certType"),
			IssuedAt:  parseTime(rec["issuedAt"]),
			Revoked:   rec.Bool("revoked"),
		})
	}
	return out, nil
}

// StudentProfile returns the wallet and certificates of studentID.
func (r *Repository) StudentProfile(ctx context.Context, studentID string) (domain.StudentProfile, error) {
	if strings.TrimSpace(studentID) == "" {
		return domain.StudentProfile{}, errors.New("student id is required")
	}
	res, err := r.client.ExecuteRead(ctx, studentProfileCypher, map[string]any{"studentId": studentID})
	if err != nil {
		return domain.StudentProfile{}, fmt.Errorf("student profile %s: %w", studentID, err)
	}
	if len(res.Records) == 0 {
		return domain.StudentProfile{}, fmt.Errorf("student %s: %w", studentID, ErrNotFound)
	}

	profile := domain.StudentProfile{
		StudentID:    studentID,
		Wallet:       res.Records[0].String("wallet"),
		Certificates: []domain.ProfileCertificate{},
	}
	for _, rec := range res.Records {
		if rec.String("certId") == "" {
			continue
		}
		profile.Certificates = append(profile.Certificates, domain.ProfileCertificate{
			CertID:        rec.String("certId"),
			CertType:      rec.String("certType"),
			IssuerAddress: rec.String("issuerAddress"),
			IssuerName:    rec.String("issuerName"),
			Institution:   rec.String("institution"),
			IssuedAt:      parseTime(rec["issuedAt"]),
			Revoked:       rec.Bool("revoked"),
			Verifications: rec.Int("verifications"),
		})
	}
	return profile, nil
}

// TopIssuers ranks issuers by the number of certificates they issued.
func (r *Repository) TopIssuers(ctx context.Context, limit int) ([]domain.IssuerStats, error) {
	res, err := r.client.ExecuteRead(ctx, topIssuersCypher, map[string]any{"limit": clampLimit(limit)})
	if err != nil {
		return nil, fmt.Errorf("top issuers: %w", err)
	}
	out := make([]domain.IssuerStats, 0, len(res.Records))
	for _, rec := range res.Records {
		out = append(out, domain.IssuerStats{
			Address:     rec.String("address"),
			Name:        rec.String("name"),
			Institution: rec.String("institution"),
			Active:      rec.Bool("active"),
			Issued:      rec.Int("issued"),
			Revoked:     rec.Int("revoked"),
		})
	}
	return out, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultLimit
	case limit > maxLimit:
		return maxLimit
	default:
		return limit
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(val any) time.Time {
	switch v := val.(type) {
	case time.Time:
		return v
	case string:
		if parsed, err := time.Parse(time.RFC3339, v); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

var schemaCypher = []string{
	`CREATE CONSTRAINT issuer_address IF NOT EXISTS FOR (i:Issuer) REQUIRE i.address IS UNIQUE`,
	`CREATE CONSTRAINT certificate_id IF NOT EXISTS FOR (c:Certificate) REQUIRE c.certId IS UNIQUE`,
	`CREATE CONSTRAINT student_id IF NOT EXISTS FOR (s:Student) REQUIRE s.studentId IS UNIQUE`,
}

const upsertIssuerCypher = `
MERGE (i:Issuer {address: $address})
SET i.name = $name,
	i.role = $role,
	i.institution = $institution,
	i.active = true,
	i.registeredAt = $registeredAt
RETURN i.address AS address
`

const deactivateIssuerCypher = `
MATCH (i:Issuer {address: $address})
SET i.active = false, i.deactivatedAt = $deactivatedAt
RETURN i.address AS address
`

const linkWalletCypher = `
MERGE (s:Student {studentId: $studentId})
SET s.wallet = $wallet, s.linkedAt = $linkedAt
RETURN s.studentId AS studentId
`

const issueCertificateCypher = `
MERGE (i:Issuer {address: $issuer})
MERGE (s:Student {studentId: $studentId})
ON CREATE SET s.wallet = $wallet
MERGE (c:Certificate {certId: $certId})
ON CREATE SET c.revoked = false, c.verifications = 0
SET c.certType = $certType,
	c.contentPointer = $contentPointer,
	c.contentHash = $contentHash,
	c.metadataHash = $metadataHash,
	c.issuedAt = $issuedAt,
	c.txHash = $txHash
MERGE (i)-[:ISSUED]->(c)
MERGE (c)-[:AWARDED_TO]->(s)
RETURN c.certId AS certId
`

const revokeCertificateCypher = `
MATCH (c:Certificate {certId: $certId})
SET c.revoked = true, c.revokedAt = $revokedAt, c.revokedBy = $revokedBy
RETURN c.certId AS certId
`

const recordVerificationCypher = `
MATCH (c:Certificate {certId: $certId})
SET c.verifications = coalesce(c.verifications, 0) + 1, c.lastVerifiedAt = $verifiedAt
RETURN c.certId AS certId
`

const certificatesByIssuerCypher = `
MATCH (:Issuer {address: $address})-[:ISSUED]->(c:Certificate)-[:AWARDED_TO]->(s:Student)
RETURN c.certId AS certId,
	s.studentId AS studentId,
	c.certType AS certType,
	c.issuedAt AS issuedAt,
	c.revoked AS revoked
ORDER BY c.issuedAt DESC, c.certId
LIMIT $limit
`

const studentProfileCypher = `
MATCH (s:Student {studentId: $studentId})
OPTIONAL MATCH (i:Issuer)-[:ISSUED]->(c:Certificate)-[:AWARDED_TO]->(s)
RETURN s.wallet AS wallet,
	c.certId AS certId,
	c.certType AS certType,
	i.address AS issuerAddress,
	i.name AS issuerName,
	i.institution AS institution,
	c.issuedAt AS issuedAt,
	c.revoked AS revoked,
	c.verifications AS verifications
ORDER BY c.issuedAt
`

const topIssuersCypher = `
MATCH (i:Issuer)
OPTIONAL MATCH (i)-[:ISSUED]->(c:Certificate)
WITH i, count(c) AS issued, count(CASE WHEN c.revoked THEN 1 END) AS revoked
RETURN i.address AS address,
	i.name AS name,
	i.institution AS institution,
	i.active AS active,
	issued,
	revoked
ORDER BY issued DESC, address
LIMIT $limit
`
