package generator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Dataset file names.
const (
	IssuersFile      = "issuers.json"
	CertificatesFile = "certificates.json"
)

// WriteDataset serializes the dataset into issuers.json and certificates.json under dir.
func WriteDataset(dataset Dataset, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := writeJSON(filepath.Join(dir, IssuersFile), dataset.Issuers); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, CertificatesFile), dataset.Certificates)
}

// ReadIssuers loads an issuers.json file.
func ReadIssuers(path string) ([]IssuerRecord, error) {
	var out []IssuerRecord
	if err := readJSON(path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadCertificates loads a certificates.json file.
func ReadCertificates(path string) ([]CertificateRecord, error) {
	var out []CertificateRecord
	if err := readJSON(path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func writeJSON(path string, data any) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encode json for %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, dst any) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
