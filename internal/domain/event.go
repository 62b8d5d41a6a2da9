package domain

import "time"

// EventName identifies a registry event.
type EventName string

const (
	EventStudentWalletRegistered EventName = "StudentWalletRegistered"
	EventIssuerRegistered        EventName = "IssuerRegistered"
	EventIssuerDeactivated       EventName = "IssuerDeactivated"
	EventCertificateIssued       EventName = "CertificateIssued"
	EventCertificateRevoked      EventName = "CertificateRevoked"
	EventCertificateVerified     EventName = "CertificateVerified"
)

// Event is an entry of the registry event log.
type Event struct {
	Seq        uint64            `json:"seq"`
	Block      uint64            `json:"block"`
	TxHash     string            `json:"txHash"`
	Name       EventName         `json:"name"`
	Timestamp  time.Time         `json:"timestamp"`
	Attributes map[string]string `json:"attributes"`
}

// Attr returns the named attribute or an empty string.
func (e Event) Attr(key string) string {
	if e.Attributes == nil {
		return ""
	}
	return e.Attributes[key]
}

// Receipt describes a committed registry call.
type Receipt struct {
	TxHash string  `json:"txHash"`
	Block  uint64  `json:"block"`
	Events []Event `json:"events"`
}
