package generator

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/akash768145s/BlockCred-sub000/internal/domain"
	"github.com/akash768145s/BlockCred-sub000/internal/service"
)

// Dataset contains the generated issuers and certificates.
type Dataset struct {
	Issuers      []IssuerRecord      `json:"issuers"`
	Certificates []CertificateRecord `json:"certificates"`
}

// IssuerRecord is an issuer entry of a dataset file.
type IssuerRecord struct {
	Address     common.Address `json:"address"`
	Name        string         `json:"name"`
	Role        string         `json:"role"`
	Institution string         `json:"institution"`
}

// Registration converts the record into registry arguments.
func (r IssuerRecord) Registration() domain.IssuerRegistration {
	return domain.IssuerRegistration{
		Address:     r.Address,
		Name:        r.Name,
		Role:        r.Role,
		Institution: r.Institution,
	}
}

// CertificateRecord is a certificate entry of a dataset file. Empty hashes,
// ids and wallets are derived at issuance.
type CertificateRecord struct {
	Issuer         common.Address `json:"issuer"`
	CertID         string         `json:"certId,omitempty"`
	StudentID      string         `json:"studentId"`
	CertType       string         `json:"certType"`
	ContentPointer string         `json:"contentPointer"`
	Content        string         `json:"content,omitempty"`
	ContentHash    string         `json:"contentHash,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	StudentWallet  string         `json:"studentWallet,omitempty"`
}

// Task converts the record into a bulk issuance task.
func (r CertificateRecord) Task() (service.IssueTask, error) {
	in := service.IssueInput{
		CertID:         r.CertID,
		StudentID:      r.StudentID,
		CertType:       r.CertType,
		ContentPointer: r.ContentPointer,
		ContentHash:    r.ContentHash,
		Metadata:       r.Metadata,
	}
	if r.Content != "" {
		in.Content = []byte(r.Content)
	}
	if wallet := strings.TrimSpace(r.StudentWallet); wallet != "" {
		if !common.IsHexAddress(wallet) {
			return service.IssueTask{}, fmt.Errorf("certificate %s: invalid student wallet %q", r.CertID, wallet)
		}
		in.StudentWallet = common.HexToAddress(wallet)
	}
	return service.IssueTask{Issuer: r.Issuer, Input: in}, nil
}

// issuingRoles are the roles that may issue at least one certificate type.
var issuingRoles = []domain.Role{
	domain.RoleCOE,
	domain.RoleDepartmentFaculty,
	domain.RoleClubCoordinator,
}

// Generator produces synthetic registry data. Output depends only on Config.
type Generator struct {
	cfg  Config
	rand *rand.Rand
}

// New returns a configured Generator instance.
func New(cfg Config) *Generator {
	defaults := DefaultConfig()
	if cfg.NumIssuers <= 0 {
		cfg.NumIssuers = defaults.NumIssuers
	}
	if cfg.NumStudents <= 0 {
		cfg.NumStudents = defaults.NumStudents
	}
	if cfg.NumCertificates < 0 {
		cfg.NumCertificates = defaults.NumCertificates
	}
	if cfg.Institution == "" {
		cfg.Institution = defaults.Institution
	}
	if cfg.Seed == 0 {
		cfg.Seed = defaults.Seed
	}

	return &Generator{
		cfg:  cfg,
		rand: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Generate synthesises issuers and certificates. It respects context cancellation.
func (g *Generator) Generate(ctx context.Context) (Dataset, error) {
	issuers := make([]IssuerRecord, g.cfg.NumIssuers)
	for i := range issuers {
		role := issuingRoles[i%len(issuingRoles)]
		issuers[i] = IssuerRecord{
			Address:     g.randomAddress(),
			Name:        fmt.Sprintf("%s %d", role.DisplayName(), i/len(issuingRoles)+1),
			Role:        string(role),
			Institution: g.cfg.Institution,
		}
	}

	grants := make([][]domain.CertificateType, len(issuers))
	for i, issuer := range issuers {
		for _, certType := range domain.CertificateTypes() {
			if domain.Role(issuer.Role).CanIssue(certType) {
				grants[i] = append(grants[i], certType)
			}
		}
	}

	certificates := make([]CertificateRecord, g.cfg.NumCertificates)
	for i := range certificates {
		if err := ctx.Err(); err != nil {
			return Dataset{}, err
		}

		idx := g.rand.Intn(len(issuers))
		certType := grants[idx][g.rand.Intn(len(grants[idx]))]
		certID := fmt.Sprintf("CERT-%06d", i+1)
		studentID := fmt.Sprintf("S%05d", g.rand.Intn(g.cfg.NumStudents)+1)

		certificates[i] = CertificateRecord{
			Issuer:         issuers[idx].Address,
			CertID:         certID,
			StudentID:      studentID,
			CertType:       string(certType),
			ContentPointer: g.randomCID(),
			Content:        fmt.Sprintf("%s %s issued to %s", certType, certID, studentID),
			Metadata:       g.metadata(certType),
		}
	}

	return Dataset{Issuers: issuers, Certificates: certificates}, nil
}

func (g *Generator) metadata(certType domain.CertificateType) map[string]any {
	departments := []string{"CSE", "ECE", "EEE", "MECH", "CIVIL", "IT", "BME", "CHEM"}
	meta := map[string]any{
		"department": departments[g.rand.Intn(len(departments))],
		"year":       2019 + g.rand.Intn(6),
	}
	switch certType {
	case domain.CertificateTypeMarksheet:
		meta["semester"] = 1 + g.rand.Intn(8)
		meta["gpa"] = fmt.Sprintf("%.2f", 6+g.rand.Float64()*4)
	case domain.CertificateTypeDegree:
		meta["degree"] = "B.E."
		meta["cgpa"] = fmt.Sprintf("%.2f", 6+g.rand.Float64()*4)
	case domain.CertificateTypeParticipation:
		events := []string{"Hackathon", "Symposium", "Robotics Meet", "Coding Contest", "Cultural Fest"}
		meta["event"] = events[g.rand.Intn(len(events))]
	case domain.CertificateTypeBonafide, domain.CertificateTypeNOC:
		purposes := []string{"Internship", "Passport", "Scholarship", "Higher Studies"}
		meta["purpose"] = purposes[g.rand.Intn(len(purposes))]
	}
	return meta
}

func (g *Generator) randomAddress() common.Address {
	var b [common.AddressLength]byte
	g.rand.Read(b[:])
	return common.BytesToAddress(b[:])
}

func (g *Generator) randomCID() string {
	b := make([]byte, 22)
	g.rand.Read(b)
	return fmt.Sprintf("Qm%x", b)
}
