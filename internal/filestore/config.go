package filestore

import "fmt"

// Provider identifies the object storage backend.
type Provider string

// ProviderMinIO covers MinIO and any other S3-compatible endpoint.
const ProviderMinIO Provider = "minio"

// Config locates the object store serving s3:// schema locations.
// An empty Endpoint disables s3:// locations altogether.
type Config struct {
	Provider  Provider `yaml:"provider"`
	Endpoint  string   `yaml:"endpoint"` // host:port, e.g. "localhost:9000"
	AccessKey string   `yaml:"access_key"`
	SecretKey string   `yaml:"secret_key"`
	UseSSL    bool     `yaml:"use_ssl"`

	// Region is only needed by region-aware backends such as AWS S3.
	Region string `yaml:"region"`
}

// DefaultConfig returns a plain-HTTP MinIO config, the usual local setup.
func DefaultConfig(endpoint, accessKey, secretKey string) *Config {
	return &Config{
		Provider:  ProviderMinIO,
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
	}
}

// Enabled reports whether an object store endpoint is configured.
func (c *Config) Enabled() bool {
	return c != nil && c.Endpoint != ""
}

// String describes the endpoint without credentials, for logs.
func (c *Config) String() string {
	if !c.Enabled() {
		return "objectstore(disabled)"
	}
	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s(%s://%s)", c.Provider, scheme, c.Endpoint)
}
