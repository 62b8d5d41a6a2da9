package generator

// Config drives the synthetic dataset generator.
type Config struct {
	NumIssuers      int
	NumStudents     int
	NumCertificates int
	Institution     string
	Seed            int64
}

// DefaultConfig returns a dataset sized for local bulk issuance runs.
func DefaultConfig() Config {
	return Config{
		NumIssuers:      6,
		NumStudents:     250,
		NumCertificates: 1000,
		Institution:     "SSN College of Engineering",
		Seed:            42,
	}
}
