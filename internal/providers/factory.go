package providers

import (
	"context"
	"fmt"
	"time"

	"model_gateway/internal/identifier"
	"model_gateway/internal/models"
	"model_gateway/internal/storage"
)

// CredentialSource yields decrypted provider credentials. Satisfied by
// storage.CredentialRepository.
type CredentialSource interface {
	GetByProvider(ctx context.Context, provider string) (*storage.DecryptedCredential, error)
}

// Factory builds the adapter for a resolved identifier. Cloud adapters
// are constructed per call so a rotated credential takes effect without
// a restart; the credential cache keeps this cheap.
type Factory struct {
	credentials    CredentialSource
	localAddr      string
	requestTimeout time.Duration
	mock           *MockAdapter
}

func NewFactory(credentials CredentialSource, localAddr string, requestTimeout time.Duration) *Factory {
	return &Factory{
		credentials:    credentials,
		localAddr:      localAddr,
		requestTimeout: requestTimeout,
		mock:           NewMockAdapter(),
	}
}

// CredentialFor exposes the credential lookup for callers that need
// the decrypted record itself, such as default-chain selection.
func (f *Factory) CredentialFor(ctx context.Context, provider string) (*storage.DecryptedCredential, error) {
	return f.credentials.GetByProvider(ctx, provider)
}

// LocalEnabled reports whether a co-located engine is configured.
func (f *Factory) LocalEnabled() bool {
	return f.localAddr != ""
}

// Mock returns the shared mock adapter.
func (f *Factory) Mock() *MockAdapter {
	return f.mock
}

// ForNode builds an adapter that targets one registered client node.
func (f *Factory) ForNode(node *models.ClientNode) *NodeAdapter {
	return NewNodeAdapter(node, f.requestTimeout)
}

// ForCloud builds a cloud adapter, failing with an auth error when no
// credential is stored for the provider. The router treats that like
// any other hop failure and moves down the chain.
func (f *Factory) ForCloud(ctx context.Context, provider string) (Adapter, error) {
	cred, err := f.credentials.GetByProvider(ctx, provider)
	if err != nil {
		return nil, Fail(provider, FailureAuth, fmt.Errorf("no usable credential: %w", err))
	}

	switch provider {
	case identifier.ProviderOpenAI:
		return NewOpenAIAdapter(cred.APIKey, f.requestTimeout), nil
	case identifier.ProviderAnthropic:
		return NewAnthropicAdapter(cred.APIKey, f.requestTimeout), nil
	default:
		return nil, Fail(provider, FailureAuth, fmt.Errorf("unknown provider %q", provider))
	}
}

// ForIdentifier resolves id to a concrete adapter. For node identifiers
// the caller supplies the node record (it already did the registry
// lookup and visibility check).
func (f *Factory) ForIdentifier(ctx context.Context, id identifier.Identifier, node *models.ClientNode) (Adapter, error) {
	switch id.Kind {
	case identifier.KindCloud:
		return f.ForCloud(ctx, id.Provider)
	case identifier.KindNode:
		if node == nil {
			return nil, Fail("node", FailureUnreachable, fmt.Errorf("node %d is not available", id.NodeID))
		}
		return f.ForNode(node), nil
	case identifier.KindLocal:
		if !f.LocalEnabled() {
			return nil, Fail("local", FailureUnreachable, fmt.Errorf("no local engine configured"))
		}
		return NewLocalAdapter(f.localAddr, f.requestTimeout), nil
	default:
		return f.mock, nil
	}
}
