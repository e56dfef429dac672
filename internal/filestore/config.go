package filestore

import "time"

// Provider identifies the file storage backend.
type Provider string

const (
	ProviderMinIO Provider = "minio"
)

// Config holds all settings needed to connect to a file storage backend
// and to place exported snapshots in it.
type Config struct {
	// Provider is the storage backend (e.g. ProviderMinIO).
	Provider Provider `yaml:"provider"`

	// Endpoint is the host:port of the storage server.
	// Example: "localhost:9000" for local MinIO.
	Endpoint string `yaml:"endpoint"`

	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`

	// UseSSL controls whether TLS is used for the connection.
	UseSSL bool `yaml:"useSSL"`

	// Region is used by region-aware backends. Leave empty for MinIO.
	Region string `yaml:"region"`

	// Bucket receives the snapshots. It must already exist.
	Bucket string `yaml:"bucket"`

	// Prefix is prepended to every snapshot key.
	Prefix string `yaml:"prefix"`

	// PresignTTL bounds the lifetime of download links.
	PresignTTL time.Duration `yaml:"presignTTL"`

	// Compress stores snapshots gzip-encoded.
	Compress bool `yaml:"compress"`
}

// DefaultConfig returns a local-dev config for MinIO.
func DefaultConfig(endpoint, accessKey, secretKey string) *Config {
	return &Config{
		Provider:   ProviderMinIO,
		Endpoint:   endpoint,
		AccessKey:  accessKey,
		SecretKey:  secretKey,
		Bucket:     "sqlgrid",
		Prefix:     "snapshots",
		PresignTTL: 15 * time.Minute,
	}
}
