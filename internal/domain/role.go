package domain

import (
	"fmt"
	"strings"
)

// Role is the closed set of BlockCred account roles.
type Role string

const (
	RoleMainAdmin         Role = "ssn_main_admin"
	RoleCOE               Role = "coe"
	RoleDepartmentFaculty Role = "department_faculty"
	RoleClubCoordinator   Role = "club_coordinator"
	RoleExternalVerifier  Role = "external_verifier"
	RoleStudent           Role = "student"
)

// Roles lists every valid role.
func Roles() []Role {
	return []Role{
		RoleMainAdmin,
		RoleCOE,
		RoleDepartmentFaculty,
		RoleClubCoordinator,
		RoleExternalVerifier,
		RoleStudent,
	}
}

// ParseRole converts a raw string to a Role.
func ParseRole(raw string) (Role, error) {
	candidate := Role(strings.ToLower(strings.TrimSpace(raw)))
	for _, role := range Roles() {
		if role == candidate {
			return role, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", raw)
}

// Permissions describes what a role may do.
type Permissions struct {
	OnboardSubAdmins   bool `json:"canOnboardSubAdmins"`
	DeployContracts    bool `json:"canDeployContracts"`
	IssueMarksheet     bool `json:"canIssueMarksheet"`
	IssueBonafide      bool `json:"canIssueBonafide"`
	IssueNOC           bool `json:"canIssueNoc"`
	IssueParticipation bool `json:"canIssueParticipation"`
	VerifyCredentials  bool `json:"canVerifyCredentials"`
	ReadOnlyAccess     bool `json:"canReadOnlyAccess"`
	ManageUsers        bool `json:"canManageUsers"`
	ViewAllCredentials bool `json:"canViewAllCredentials"`
	ApproveStudents    bool `json:"canApproveStudents"`
}

// Permissions returns the permission set granted to the role.
func (r Role) Permissions() Permissions {
	switch r {
	case RoleMainAdmin:
		return Permissions{
			OnboardSubAdmins:   true,
			DeployContracts:    true,
			IssueMarksheet:     true,
			IssueBonafide:      true,
			IssueNOC:           true,
			IssueParticipation: true,
			VerifyCredentials:  true,
			ReadOnlyAccess:     true,
			ManageUsers:        true,
			ViewAllCredentials: true,
			ApproveStudents:    true,
		}
	case RoleCOE:
		return Permissions{
			IssueMarksheet:     true,
			VerifyCredentials:  true,
			ReadOnlyAccess:     true,
			ViewAllCredentials: true,
		}
	case RoleDepartmentFaculty:
		return Permissions{
			IssueBonafide:     true,
			IssueNOC:          true,
			VerifyCredentials: true,
			ReadOnlyAccess:    true,
		}
	case RoleClubCoordinator:
		return Permissions{
			IssueParticipation: true,
			VerifyCredentials:  true,
			ReadOnlyAccess:     true,
		}
	case RoleExternalVerifier:
		return Permissions{
			VerifyCredentials: true,
			ReadOnlyAccess:    true,
		}
	case RoleStudent:
		return Permissions{ReadOnlyAccess: true}
	default:
		return Permissions{}
	}
}

// CanIssue reports whether the role may issue certificates of the given type.
// Degrees follow the marksheet permission.
func (r Role) CanIssue(certType CertificateType) bool {
	perms := r.Permissions()
	switch certType {
	case CertificateTypeMarksheet, CertificateTypeDegree:
		return perms.IssueMarksheet
	case CertificateTypeBonafide:
		return perms.IssueBonafide
	case CertificateTypeNOC:
		return perms.IssueNOC
	case CertificateTypeParticipation:
		return perms.IssueParticipation
	default:
		return false
	}
}

// DisplayName is the human readable role label.
func (r Role) DisplayName() string {
	switch r {
	case RoleMainAdmin:
		return "SSN Main Admin"
	case RoleCOE:
		return "Controller of Examinations"
	case RoleDepartmentFaculty:
		return "Department Faculty"
	case RoleClubCoordinator:
		return "Club Coordinator"
	case RoleExternalVerifier:
		return "External Verifier"
	case RoleStudent:
		return "Student"
	default:
		return string(r)
	}
}
