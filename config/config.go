/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	storeerrors "github.com/suparena/familystore/errors"
)

// Environment variables read by FromEnv.
const (
	EnvEndpoint     = "EndpointUrl"
	EnvKey          = "Primary"
	EnvBackend      = "FAMILYSTORE_BACKEND"
	EnvRegion       = "AWS_REGION"
	EnvAccessKeyID  = "AWS_ACCESS_KEY_ID"
	// EnvAccessKey is read when EnvAccessKeyID is unset.
	EnvAccessKey = "AWS_ACCESS_KEY"
	EnvDatabase     = "FAMILYSTORE_DATABASE"
	EnvContainer    = "FAMILYSTORE_CONTAINER"
	EnvPartitionKey = "FAMILYSTORE_PARTITION_KEY"
	EnvQuery        = "FAMILYSTORE_QUERY"
	EnvLogLevel     = "FAMILYSTORE_LOG_LEVEL"
)

// Backend names accepted in Config.Backend.
const (
	BackendCosmos   = "cosmos"
	BackendDynamoDB = "dynamodb"
	BackendMemory   = "memory"
)

// Config holds everything the demo workflow needs to reach a store and run.
type Config struct {
	Backend string

	// Endpoint and Key are the account endpoint and primary key. For DynamoDB, Key is the
	// secret access key and Endpoint optionally overrides the regional endpoint.
	Endpoint    string
	Key         string
	Region      string
	AccessKeyID string

	DatabaseID       string
	ContainerID      string
	PartitionKeyPath string
	Query            string

	LogLevel zerolog.Level
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Backend:          BackendCosmos,
		DatabaseID:       "FamilyDatabase",
		ContainerID:      "FamilyContainer",
		PartitionKeyPath: "/LastName",
		Query:            "SELECT * FROM c WHERE c.LastName = 'Andersen'",
		LogLevel:         zerolog.InfoLevel,
	}
}

// Load reads the optional dotenv files (".env" when none are named) into the process
// environment and returns the defaults overlaid with it. Missing files are ignored;
// variables already set in the environment win over file values.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := Default()
	if err := FromEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv overlays the environment variables onto cfg.
func FromEnv(cfg *Config) error {
	if v := os.Getenv(EnvBackend); v != "" {
		cfg.Backend = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv(EnvEndpoint); v != "" {
		cfg.Endpoint = strings.TrimSpace(v)
	}
	if v := os.Getenv(EnvKey); v != "" {
		cfg.Key = v
	}
	if v := os.Getenv(EnvRegion); v != "" {
		cfg.Region = v
	}
	if v := os.Getenv(EnvAccessKeyID); v != "" {
		cfg.AccessKeyID = v
	} else if v := os.Getenv(EnvAccessKey); v != "" {
		cfg.AccessKeyID = v
	}
	if v := os.Getenv(EnvDatabase); v != "" {
		cfg.DatabaseID = v
	}
	if v := os.Getenv(EnvContainer); v != "" {
		cfg.ContainerID = v
	}
	if v := os.Getenv(EnvPartitionKey); v != "" {
		cfg.PartitionKeyPath = v
	}
	if v := os.Getenv(EnvQuery); v != "" {
		cfg.Query = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		level, err := zerolog.ParseLevel(strings.ToLower(v))
		if err != nil {
			return storeerrors.NewValidationError(EnvLogLevel, err.Error())
		}
		cfg.LogLevel = level
	}
	return nil
}

// Validate checks that the settings required by the selected backend are present.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendCosmos:
		if c.Endpoint == "" {
			return storeerrors.NewValidationError(EnvEndpoint, "account endpoint is required for the cosmos backend")
		}
		if c.Key == "" {
			return storeerrors.NewValidationError(EnvKey, "account key is required for the cosmos backend")
		}
	case BackendDynamoDB:
		if c.Region == "" {
			return storeerrors.NewValidationError(EnvRegion, "region is required for the dynamodb backend")
		}
		if c.AccessKeyID == "" {
			return storeerrors.NewValidationError(EnvAccessKeyID, "access key id is required for the dynamodb backend")
		}
		if c.Key == "" {
			return storeerrors.NewValidationError(EnvKey, "secret access key is required for the dynamodb backend")
		}
	case BackendMemory:
	default:
		return storeerrors.NewValidationError(EnvBackend, fmt.Sprintf("unknown backend %q", c.Backend))
	}

	if c.Endpoint != "" && !validEndpoint(c.Endpoint) {
		return storeerrors.NewValidationError(EnvEndpoint, fmt.Sprintf("%q is not an absolute http(s) URI", c.Endpoint))
	}
	if c.DatabaseID == "" {
		return storeerrors.NewValidationError(EnvDatabase, "database id is required")
	}
	if c.ContainerID == "" {
		return storeerrors.NewValidationError(EnvContainer, "container id is required")
	}
	if !strings.HasPrefix(c.PartitionKeyPath, "/") || len(c.PartitionKeyPath) < 2 {
		return storeerrors.NewValidationError(EnvPartitionKey, "partition key path must look like /LastName")
	}
	if strings.TrimSpace(c.Query) == "" {
		return storeerrors.NewValidationError(EnvQuery, "query text is required")
	}
	return nil
}

func validEndpoint(endpoint string) bool {
	if !strfmt.Default.Validates("uri", endpoint) {
		return false
	}
	// The uri format accepts relative and opaque references; a service endpoint needs a scheme and host.
	u, _ := url.Parse(endpoint)
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
