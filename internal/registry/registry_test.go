package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"model_gateway/internal/identifier"
	"model_gateway/internal/models"
	"model_gateway/internal/storage"
)

type fakeNodeSource struct {
	nodes map[int64]*models.ClientNode
}

func (f *fakeNodeSource) GetByID(_ context.Context, id int64) (*models.ClientNode, error) {
	node, ok := f.nodes[id]
	if !ok {
		return nil, storage.ErrNodeNotFound
	}
	// Return a copy so attachHealth does not mutate the fixture.
	cp := *node
	return &cp, nil
}

func (f *fakeNodeSource) ListActive(_ context.Context) ([]*models.ClientNode, error) {
	var out []*models.ClientNode
	for _, node := range f.nodes {
		if node.IsActive {
			cp := *node
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeNodeSource) ListAll(_ context.Context) ([]*models.ClientNode, error) {
	var out []*models.ClientNode
	for _, node := range f.nodes {
		cp := *node
		out = append(out, &cp)
	}
	return out, nil
}

var (
	ownerID    = uuid.New()
	strangerID = uuid.New()
)

func testNodes() *fakeNodeSource {
	return &fakeNodeSource{nodes: map[int64]*models.ClientNode{
		1: {ID: 1, Name: "public-box", IsActive: true, IsPublic: true, OwnerID: ownerID, Hostname: "10.0.0.1", Port: 11434},
		2: {ID: 2, Name: "private-box", IsActive: true, IsPublic: false, OwnerID: ownerID, Hostname: "10.0.0.2", Port: 11434},
		3: {ID: 3, Name: "retired-box", IsActive: false, IsPublic: true, OwnerID: ownerID, Hostname: "10.0.0.3", Port: 11434},
	}}
}

func TestVisibleNode(t *testing.T) {
	r := New(testNodes())

	node, err := r.VisibleNode(context.Background(), 1, strangerID)
	require.NoError(t, err)
	assert.Equal(t, "public-box", node.Name)
	assert.Equal(t, models.NodeStatusUnknown, node.Status)

	_, err = r.VisibleNode(context.Background(), 2, strangerID)
	assert.ErrorIs(t, err, ErrNodeNotVisible)

	node, err = r.VisibleNode(context.Background(), 2, ownerID)
	require.NoError(t, err)
	assert.Equal(t, "private-box", node.Name)

	// Inactive is invisible even to the owner.
	_, err = r.VisibleNode(context.Background(), 3, ownerID)
	assert.ErrorIs(t, err, ErrNodeNotVisible)

	_, err = r.VisibleNode(context.Background(), 99, ownerID)
	assert.ErrorIs(t, err, storage.ErrNodeNotFound)
}

func TestListVisible(t *testing.T) {
	r := New(testNodes())

	visible, err := r.ListVisible(context.Background(), strangerID)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, int64(1), visible[0].ID)

	visible, err = r.ListVisible(context.Background(), ownerID)
	require.NoError(t, err)
	assert.Len(t, visible, 2)
}

func TestApplyProbeResultAttachesHealth(t *testing.T) {
	r := New(testNodes())

	checkedAt := time.Now()
	r.ApplyProbeResult(1, HealthSnapshot{
		Status:    models.NodeStatusOnline,
		LatencyMs: 42,
		Models:    []models.ModelInfo{{ID: "client:1:llama3.1"}},
		CheckedAt: checkedAt,
	})

	node, err := r.GetNode(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusOnline, node.Status)
	assert.Equal(t, int64(42), node.LatencyMs)
	require.Len(t, node.CachedModels, 1)
	require.NotNil(t, node.LastSeenAt)
	assert.WithinDuration(t, checkedAt, *node.LastSeenAt, time.Millisecond)
}

func TestRoutableNodeSkipsOffline(t *testing.T) {
	r := New(testNodes())
	r.ApplyProbeResult(1, HealthSnapshot{Status: models.NodeStatusOffline})

	_, err := r.RoutableNode(context.Background(), 1, strangerID)
	assert.ErrorIs(t, err, ErrNodeNotVisible)

	r.ApplyProbeResult(1, HealthSnapshot{Status: models.NodeStatusDegraded})
	node, err := r.RoutableNode(context.Background(), 1, strangerID)
	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusDegraded, node.Status)
}

func TestForget(t *testing.T) {
	r := New(testNodes())
	r.ApplyProbeResult(1, HealthSnapshot{Status: models.NodeStatusOnline})
	r.Forget(1)

	_, ok := r.Snapshot(1)
	assert.False(t, ok)
}

func TestConcurrentSnapshotAccess(t *testing.T) {
	r := New(testNodes())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int64) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.ApplyProbeResult(n%3+1, HealthSnapshot{Status: models.NodeStatusOnline, LatencyMs: int64(j)})
			}
		}(int64(i))
		go func(n int64) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Snapshot(n%3 + 1)
			}
		}(int64(i))
	}
	wg.Wait()
}

type fakeCredentialLister struct {
	creds []*models.ProviderCredential
}

func (f *fakeCredentialLister) List(_ context.Context) ([]*models.ProviderCredential, error) {
	return f.creds, nil
}

func mockDefault(_ context.Context) identifier.Identifier {
	return identifier.Mock
}

func TestCatalogAggregatesSources(t *testing.T) {
	r := New(testNodes())
	r.ApplyProbeResult(1, HealthSnapshot{
		Status: models.NodeStatusOnline,
		Models: []models.ModelInfo{{ID: "client:1:llama3.1", Provider: "node", NodeID: 1}},
	})
	r.ApplyProbeResult(2, HealthSnapshot{
		Status: models.NodeStatusOnline,
		Models: []models.ModelInfo{{ID: "client:2:phi3", Provider: "node", NodeID: 2}},
	})

	catalog := NewCatalog(r, &fakeCredentialLister{creds: []*models.ProviderCredential{
		{Provider: "openai", DefaultModel: "gpt-4o-mini"},
	}}, func(_ context.Context) identifier.Identifier {
		return identifier.Cloud("openai", "gpt-4o-mini")
	})

	// Stranger sees the credential entry and the public node only.
	listing, err := catalog.ListModels(context.Background(), strangerID)
	require.NoError(t, err)

	ids := make([]string, len(listing))
	for i, m := range listing {
		ids[i] = m.ID
	}
	assert.Equal(t, []string{"client:1:llama3.1", "openai:gpt-4o-mini"}, ids)

	for _, m := range listing {
		if m.ID == "openai:gpt-4o-mini" {
			assert.True(t, m.IsDefault)
		} else {
			assert.False(t, m.IsDefault)
		}
	}

	// Owner additionally sees the private node.
	listing, err = catalog.ListModels(context.Background(), ownerID)
	require.NoError(t, err)
	assert.Len(t, listing, 3)
}

func TestCatalogOfflineNodesExcluded(t *testing.T) {
	r := New(testNodes())
	r.ApplyProbeResult(1, HealthSnapshot{
		Status: models.NodeStatusOffline,
		Models: []models.ModelInfo{{ID: "client:1:llama3.1"}},
	})

	catalog := NewCatalog(r, &fakeCredentialLister{}, mockDefault)
	listing, err := catalog.ListModels(context.Background(), strangerID)
	require.NoError(t, err)

	// Nothing real available, so only the mock entry appears.
	require.Len(t, listing, 1)
	assert.Equal(t, identifier.Mock.String(), listing[0].ID)
	assert.True(t, listing[0].IsDefault)
}

func TestCatalogMockHiddenWhenRealModelsExist(t *testing.T) {
	r := New(testNodes())
	r.ApplyProbeResult(1, HealthSnapshot{
		Status: models.NodeStatusOnline,
		Models: []models.ModelInfo{{ID: "client:1:llama3.1"}},
	})

	catalog := NewCatalog(r, &fakeCredentialLister{}, mockDefault)
	listing, err := catalog.ListModels(context.Background(), strangerID)
	require.NoError(t, err)

	require.Len(t, listing, 1)
	assert.Equal(t, "client:1:llama3.1", listing[0].ID)
}
