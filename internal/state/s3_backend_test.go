package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewS3BackendRequiresBucket(t *testing.T) {
	_, err := newS3Backend(map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")
}

func TestNewS3BackendDefaults(t *testing.T) {
	b, err := newS3Backend(map[string]string{"bucket": "my-bucket"})
	// AWS config load can fail in CI without credentials.
	if err != nil {
		t.Skipf("Skipping S3 backend test (no AWS credentials): %v", err)
	}
	s3b, ok := b.(*s3Backend)
	require.True(t, ok)
	assert.Equal(t, "my-bucket", s3b.bucket)
	assert.Equal(t, "groundwork/state.json", s3b.key)
	assert.Equal(t, "us-east-1", s3b.region)
	assert.Empty(t, s3b.dynamoDBTable)
	assert.False(t, s3b.encrypt)
}

func TestNewS3BackendCustomConfig(t *testing.T) {
	config := map[string]string{
		"bucket":         "custom-bucket",
		"key":            "custom/path/state.json",
		"region":         "eu-west-1",
		"dynamodb_table": "groundwork-locks",
		"encrypt":        "true",
		"profile":        "staging",
	}
	b, err := newS3Backend(config)
	if err != nil {
		t.Skipf("Skipping S3 backend test (no AWS credentials): %v", err)
	}
	s3b, ok := b.(*s3Backend)
	require.True(t, ok)
	assert.Equal(t, "custom-bucket", s3b.bucket)
	assert.Equal(t, "custom/path/state.json", s3b.key)
	assert.Equal(t, "eu-west-1", s3b.region)
	assert.Equal(t, "groundwork-locks", s3b.dynamoDBTable)
	assert.True(t, s3b.encrypt)
}

func TestNewBackendLocalDefault(t *testing.T) {
	b, err := NewBackend(nil)
	require.NoError(t, err)
	m, ok := b.(*Manager)
	require.True(t, ok)
	assert.Equal(t, DefaultPath, m.Path())
}

func TestNewBackendLocalCustomPath(t *testing.T) {
	b, err := NewBackend(&BackendConfig{
		Type:   "local",
		Config: map[string]string{"path": "env/prod/state.json"},
	})
	require.NoError(t, err)
	m, ok := b.(*Manager)
	require.True(t, ok)
	assert.Equal(t, "env/prod/state.json", m.Path())
}

func TestNewBackendRejectsUnknownType(t *testing.T) {
	_, err := NewBackend(&BackendConfig{Type: "redis"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend type")
}
