/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	storeerrors "github.com/suparena/familystore/errors"
)

var allEnv = []string{
	EnvEndpoint, EnvKey, EnvBackend, EnvRegion, EnvAccessKeyID, EnvAccessKey,
	EnvDatabase, EnvContainer, EnvPartitionKey, EnvQuery, EnvLogLevel,
}

// clearEnv unsets every variable the package reads; t.Setenv restores them afterwards.
// godotenv treats a variable set to "" as present, so they must be unset rather than blanked.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allEnv {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, BackendCosmos, cfg.Backend)
	assert.Equal(t, "FamilyDatabase", cfg.DatabaseID)
	assert.Equal(t, "FamilyContainer", cfg.ContainerID)
	assert.Equal(t, "/LastName", cfg.PartitionKeyPath)
	assert.Equal(t, "SELECT * FROM c WHERE c.LastName = 'Andersen'", cfg.Query)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
}

func TestFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvBackend, " DynamoDB ")
	t.Setenv(EnvRegion, "us-west-2")
	t.Setenv(EnvAccessKeyID, "AKIDEXAMPLE")
	t.Setenv(EnvAccessKey, "AKIDLEGACY")
	t.Setenv(EnvKey, "secret")
	t.Setenv(EnvDatabase, "Families")
	t.Setenv(EnvLogLevel, "DEBUG")

	cfg := Default()
	require.NoError(t, FromEnv(&cfg))
	assert.Equal(t, BackendDynamoDB, cfg.Backend)
	assert.Equal(t, "us-west-2", cfg.Region)
	assert.Equal(t, "AKIDEXAMPLE", cfg.AccessKeyID)
	assert.Equal(t, "Families", cfg.DatabaseID)
	assert.Equal(t, "FamilyContainer", cfg.ContainerID, "unset variables keep defaults")
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnv_LegacyAccessKey(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvAccessKey, "AKIDLEGACY")

	cfg := Default()
	require.NoError(t, FromEnv(&cfg))
	assert.Equal(t, "AKIDLEGACY", cfg.AccessKeyID)
}

func TestFromEnv_BadLogLevel(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvLogLevel, "chatty")

	cfg := Default()
	err := FromEnv(&cfg)
	assert.True(t, storeerrors.IsValidationError(err))
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("EndpointUrl=https://example.documents.azure.com:443/\nPrimary=filekey\n"), 0o600))
	t.Setenv(EnvKey, "envkey")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://example.documents.azure.com:443/", cfg.Endpoint)
	assert.Equal(t, "envkey", cfg.Key, "environment wins over the file")
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	cosmos := Default()
	cosmos.Endpoint = "https://localhost:8081/"
	cosmos.Key = "key"

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing endpoint", func(c *Config) { c.Endpoint = "" }, EnvEndpoint},
		{"missing key", func(c *Config) { c.Key = "" }, EnvKey},
		{"relative endpoint", func(c *Config) { c.Endpoint = "localhost:8081" }, EnvEndpoint},
		{"ftp endpoint", func(c *Config) { c.Endpoint = "ftp://localhost/" }, EnvEndpoint},
		{"unknown backend", func(c *Config) { c.Backend = "mongo" }, EnvBackend},
		{"bad partition key", func(c *Config) { c.PartitionKeyPath = "LastName" }, EnvPartitionKey},
		{"empty query", func(c *Config) { c.Query = "  " }, EnvQuery},
		{"memory needs nothing", func(c *Config) { c.Backend = BackendMemory; c.Endpoint = ""; c.Key = "" }, ""},
		{"dynamodb needs region", func(c *Config) { c.Backend = BackendDynamoDB }, EnvRegion},
		{"dynamodb needs access key id", func(c *Config) { c.Backend = BackendDynamoDB; c.Region = "us-east-1" }, EnvAccessKeyID},
		{"opaque endpoint", func(c *Config) { c.Endpoint = "https:localhost" }, EnvEndpoint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := cosmos
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var ve *storeerrors.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}
