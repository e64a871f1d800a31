package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestLoadConfigLayering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	yml := `
database:
  driver: sqlite
  dsn: "file:test.db"
pipeline:
  retry_attempts: 5
  retry_base_delay: 250ms
matching:
  po_table_path: /srv/po.xlsx
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("RETRY_ATTEMPTS", "2")
	t.Setenv("LLM_PROVIDER", "none")

	cfg, err := LoadConfigFrom(path)
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "file:test.db", cfg.Database.DSN)
	assert.Equal(t, 2, cfg.Pipeline.RetryAttempts, "env overrides yaml")
	assert.Equal(t, 250*time.Millisecond, cfg.Pipeline.RetryBaseDelay)
	assert.Equal(t, "/srv/po.xlsx", cfg.Matching.POTablePath)
	assert.Equal(t, ":8080", cfg.Server.GRPCAddr, "defaults survive")
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfigFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DriverJSON, cfg.Database.Driver)
	assert.Equal(t, 3, cfg.Pipeline.RetryAttempts)
}

func TestLoadConfigBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: [unclosed"), 0o600))

	_, err := LoadConfigFrom(path)
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "CONFIG_ERROR", appErr.Code)
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "mongo" }},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = DriverPostgres }},
		{"openai without key", func(c *Config) { c.LLM.Provider = ProviderOpenAI; c.LLM.APIKey = "" }},
		{"s3 without bucket", func(c *Config) { c.Storage.Backend = DocumentsS3 }},
		{"no po table", func(c *Config) { c.Matching.POTablePath = "" }},
		{"zero retries", func(c *Config) { c.Pipeline.RetryAttempts = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.LLM.Provider = ProviderNone
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("boom")
	ee := &ExtractionError{Path: "a.pdf", Cause: cause}
	assert.ErrorIs(t, fmt.Errorf("stage: %w", ee), cause)
	assert.Contains(t, ee.Error(), "a.pdf")

	de := &DataLoadError{Source: "po.csv", Missing: []string{"Vendor Name"}}
	assert.Equal(t, "loading po.csv: missing columns Vendor Name", de.Error())
}

func TestToStatus(t *testing.T) {
	assert.Nil(t, ToStatus(nil))
	assert.Equal(t, codes.NotFound, status.Code(ToStatus(WrapError(ErrNotFound, "get"))))
	assert.Equal(t, codes.InvalidArgument, status.Code(ToStatus(NewAppError("X", "bad", ErrValidation))))
	assert.Equal(t, codes.Internal, status.Code(ToStatus(errors.New("other"))))
	assert.Equal(t, codes.Aborted, status.Code(ToStatus(status.Error(codes.Aborted, "keep"))))
}

func TestValidatorRules(t *testing.T) {
	v := NewValidator().
		Field("invoice_number", "", Required).
		Field("status", "maybe", OneOf("approved", "rejected")).
		Field("currency", "usd", CurrencyCode).
		Field("notes", "ok", MaxLength(10))

	require.True(t, v.HasErrors())
	assert.Len(t, v.Errors(), 3)
	assert.Equal(t, codes.InvalidArgument, status.Code(ValidateAndReturnError(v)))

	assert.NoError(t, NewValidator().Field("currency", "EUR", CurrencyCode).Error())
}

func TestContextHelpers(t *testing.T) {
	ctx := WithRunID(WithRequestID(context.Background(), "req-1"), "run-1")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Equal(t, "run-1", RunIDFromContext(ctx))

	l := slog.New(slog.NewTextHandler(os.Stderr, nil))
	assert.Same(t, l, LoggerFromContext(WithLogger(ctx, l), nil))
	assert.Same(t, slog.Default(), LoggerFromContext(ctx, nil))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}
