package registry

// Kind classifies a rejected registry call.
type Kind int

const (
	KindUnauthorized Kind = iota + 1
	KindDuplicate
	KindValidation
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindDuplicate:
		return "duplicate"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not found"
	default:
		return "unknown"
	}
}

// Error is the revert reason of a rejected call. A rejected call leaves no
// trace in registry state.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return "registry: " + e.Kind.String()
	}
	return e.Reason
}

// Is matches any *Error of the same kind when the target carries no reason,
// so errors.Is(err, ErrNotFound) works for every not-found revert.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Reason == "" {
		return t.Kind == e.Kind
	}
	return t.Kind == e.Kind && t.Reason == e.Reason
}

var (
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	ErrDuplicate    = &Error{Kind: KindDuplicate}
	ErrValidation   = &Error{Kind: KindValidation}
	ErrNotFound     = &Error{Kind: KindNotFound}
)

func revert(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

const (
	reasonOnlyAdmin            = "Only admin can perform this action"
	reasonNotAuthorizedIssuer  = "Not an authorized issuer"
	reasonIssuerInactive       = "Issuer is not active"
	reasonIssuerRegistered     = "Issuer already registered"
	reasonIssuerNotRegistered  = "Issuer not registered"
	reasonIssuerDeactivated    = "Issuer already deactivated"
	reasonInvalidIssuerAddress = "Invalid issuer address"
	reasonEmptyName            = "Name cannot be empty"
	reasonEmptyRole            = "Role cannot be empty"
	reasonEmptyInstitution     = "Institution cannot be empty"
	reasonInvalidWallet        = "Invalid wallet address"
	reasonEmptyStudentID       = "Student ID cannot be empty"
	reasonStudentLinked        = "Student wallet already registered"
	reasonWalletLinked         = "Wallet already linked to another student"
	reasonCertificateExists    = "Certificate already exists"
	reasonEmptyCertID          = "Certificate ID cannot be empty"
	reasonEmptyCertType        = "Certificate type cannot be empty"
	reasonEmptyContentPointer  = "IPFS CID cannot be empty"
	reasonEmptyContentHash     = "Certificate hash cannot be empty"
	reasonCertificateNotFound  = "Certificate does not exist"
	reasonCertificateRevoked   = "Certificate already revoked"
	reasonOnlyIssuerOrAdmin    = "Only the issuing authority or admin can revoke"
)

var reasonKinds = map[string]Kind{
	reasonOnlyAdmin:            KindUnauthorized,
	reasonNotAuthorizedIssuer:  KindUnauthorized,
	reasonIssuerInactive:       KindUnauthorized,
	reasonOnlyIssuerOrAdmin:    KindUnauthorized,
	reasonIssuerRegistered:     KindDuplicate,
	reasonIssuerDeactivated:    KindDuplicate,
	reasonStudentLinked:        KindDuplicate,
	reasonWalletLinked:         KindDuplicate,
	reasonCertificateExists:    KindDuplicate,
	reasonCertificateRevoked:   KindDuplicate,
	reasonIssuerNotRegistered:  KindNotFound,
	reasonCertificateNotFound:  KindNotFound,
	reasonInvalidIssuerAddress: KindValidation,
	reasonEmptyName:            KindValidation,
	reasonEmptyRole:            KindValidation,
	reasonEmptyInstitution:     KindValidation,
	reasonInvalidWallet:        KindValidation,
	reasonEmptyStudentID:       KindValidation,
	reasonEmptyCertID:          KindValidation,
	reasonEmptyCertType:        KindValidation,
	reasonEmptyContentPointer:  KindValidation,
	reasonEmptyContentHash:     KindValidation,
}

// ErrorForReason maps a contract revert reason to a typed Error. It reports
// false for reasons the registry never produces.
func ErrorForReason(reason string) (*Error, bool) {
	kind, ok := reasonKinds[reason]
	if !ok {
		return nil, false
	}
	return revert(kind, reason), true
}
