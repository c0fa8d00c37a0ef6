package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"model_gateway/internal/identifier"
	"model_gateway/internal/models"
	"model_gateway/internal/storage"
)

type stubCredentials struct {
	creds map[string]*storage.DecryptedCredential
}

func (s *stubCredentials) GetByProvider(_ context.Context, provider string) (*storage.DecryptedCredential, error) {
	if c, ok := s.creds[provider]; ok {
		return c, nil
	}
	return nil, storage.ErrCredentialNotFound
}

func TestFactoryCloudWithoutCredential(t *testing.T) {
	f := NewFactory(&stubCredentials{}, "", time.Second)

	_, err := f.ForCloud(context.Background(), identifier.ProviderOpenAI)
	require.Error(t, err)

	kind, ok := FailureOf(err)
	require.True(t, ok)
	assert.Equal(t, FailureAuth, kind)
	assert.True(t, errors.Is(err, storage.ErrCredentialNotFound))
}

func TestFactoryCloudAdapters(t *testing.T) {
	f := NewFactory(&stubCredentials{creds: map[string]*storage.DecryptedCredential{
		identifier.ProviderOpenAI:    {Provider: identifier.ProviderOpenAI, APIKey: "sk-1"},
		identifier.ProviderAnthropic: {Provider: identifier.ProviderAnthropic, APIKey: "sk-2"},
	}}, "", time.Second)

	oa, err := f.ForCloud(context.Background(), identifier.ProviderOpenAI)
	require.NoError(t, err)
	assert.Equal(t, "openai", oa.Kind())

	an, err := f.ForCloud(context.Background(), identifier.ProviderAnthropic)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", an.Kind())
}

func TestFactoryLocalDisabled(t *testing.T) {
	f := NewFactory(&stubCredentials{}, "", time.Second)
	assert.False(t, f.LocalEnabled())

	_, err := f.ForIdentifier(context.Background(), identifier.Local("llama3.1"), nil)
	kind, ok := FailureOf(err)
	require.True(t, ok)
	assert.Equal(t, FailureUnreachable, kind)
}

func TestFactoryForIdentifier(t *testing.T) {
	f := NewFactory(&stubCredentials{}, "127.0.0.1:11434", time.Second)

	node := &models.ClientNode{ID: 4, Hostname: "10.0.0.4", Port: 11434}
	adapter, err := f.ForIdentifier(context.Background(), identifier.Node(4, "llama3.1"), node)
	require.NoError(t, err)
	assert.Equal(t, "node", adapter.Kind())

	adapter, err = f.ForIdentifier(context.Background(), identifier.Local("llama3.1"), nil)
	require.NoError(t, err)
	assert.Equal(t, "local", adapter.Kind())

	adapter, err = f.ForIdentifier(context.Background(), identifier.Mock, nil)
	require.NoError(t, err)
	assert.Equal(t, "mock", adapter.Kind())
}

func TestFactoryNodeMissing(t *testing.T) {
	f := NewFactory(&stubCredentials{}, "", time.Second)

	_, err := f.ForIdentifier(context.Background(), identifier.Node(99, "llama3.1"), nil)
	kind, ok := FailureOf(err)
	require.True(t, ok)
	assert.Equal(t, FailureUnreachable, kind)
}
