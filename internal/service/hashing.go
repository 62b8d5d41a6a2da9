package service

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// HashContent returns the hex SHA-256 digest of a certificate file.
func HashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashMetadata returns the hex SHA-256 digest of the canonical JSON form of
// metadata. Map keys are emitted in sorted order by encoding/json.
func HashMetadata(metadata map[string]any) (string, error) {
	if len(metadata) == 0 {
		return "", nil
	}
	payload, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return HashContent(payload), nil
}

// DeriveCertificateID derives a certificate id from the content hash, the
// student, the issuance time and a per-process nonce. The nonce keeps ids of
// identical documents issued within the same clock tick apart.
func DeriveCertificateID(contentHash, studentID string, issuedAt time.Time, nonce uint64) string {
	input := contentHash + studentID + issuedAt.UTC().Format(time.RFC3339Nano) + strconv.FormatUint(nonce, 10)
	return crypto.Keccak256Hash([]byte(input)).Hex()
}

// DeriveStudentWallet returns the deterministic custodial wallet for a
// student that has not supplied one.
func DeriveStudentWallet(studentID string) common.Address {
	sum := sha256.Sum256([]byte("student_wallet_" + studentID))
	return common.BytesToAddress(sum[:common.AddressLength])
}
