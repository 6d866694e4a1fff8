package storage

import "strings"

// NewStorage creates an ObjectStorage instance based on the configuration.
// An empty Type is detected from the endpoint.
func NewStorage(cfg *Config) (ObjectStorage, error) {
	if cfg.Type == "" {
		cfg.Type = detectStorageType(cfg.Endpoint)
	}

	switch cfg.Type {
	case StorageTypeMemory:
		return NewMemoryStorage(cfg.Bucket, cfg.PublicURL), nil
	case StorageTypeMinIO:
		return NewMinIOStorage(cfg)
	default:
		return NewS3Storage(cfg)
	}
}

// detectStorageType attempts to detect the storage type from the endpoint
func detectStorageType(endpoint string) StorageType {
	endpoint = strings.ToLower(endpoint)

	switch {
	case endpoint == "":
		return StorageTypeMemory
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case strings.Contains(endpoint, "amazonaws.com"):
		return StorageTypeS3
	default:
		return StorageTypeS3Compatible
	}
}
