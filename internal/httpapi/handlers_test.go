package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"model_gateway/internal/middleware"
	"model_gateway/internal/models"
	"model_gateway/internal/probe"
	"model_gateway/internal/providers"
	"model_gateway/internal/queue"
	"model_gateway/internal/ratelimit"
	"model_gateway/internal/registry"
	"model_gateway/internal/router"
	"model_gateway/internal/storage"
)

type fakeNodeSource struct {
	mu    sync.Mutex
	nodes []*models.ClientNode
}

func (f *fakeNodeSource) GetByID(_ context.Context, id int64) (*models.ClientNode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.nodes {
		if n.ID == id {
			copied := *n
			return &copied, nil
		}
	}
	return nil, storage.ErrNodeNotFound
}

func (f *fakeNodeSource) ListActive(ctx context.Context) ([]*models.ClientNode, error) {
	all, _ := f.ListAll(ctx)
	active := all[:0]
	for _, n := range all {
		if n.IsActive {
			active = append(active, n)
		}
	}
	return active, nil
}

func (f *fakeNodeSource) ListAll(_ context.Context) ([]*models.ClientNode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.ClientNode, 0, len(f.nodes))
	for _, n := range f.nodes {
		copied := *n
		out = append(out, &copied)
	}
	return out, nil
}

type fakeCredentials struct{}

func (fakeCredentials) GetByProvider(_ context.Context, _ string) (*storage.DecryptedCredential, error) {
	return nil, storage.ErrCredentialNotFound
}

func (fakeCredentials) List(_ context.Context) ([]*models.ProviderCredential, error) {
	return nil, nil
}

type fakeUsageInserter struct{}

func (fakeUsageInserter) InsertBatch(_ context.Context, _ []*models.UsageRecord) error {
	return nil
}

var testUser = &models.User{ID: uuid.New(), Email: "dev@example.com"}

// testDeps builds the handler dependency graph with in-memory fakes.
// Repositories backed by Postgres stay nil; handlers that need them are
// covered by the repository tests instead.
func testDeps(t *testing.T, nodes ...*models.ClientNode) *Dependencies {
	t.Helper()

	source := &fakeNodeSource{nodes: nodes}
	reg := registry.New(source)
	factory := providers.NewFactory(fakeCredentials{}, "", 2*time.Second)
	prober := probe.NewProber(reg, factory, source, time.Second, 4)
	routerSvc := router.New(reg, factory, nopSink{}, 0, time.Millisecond)
	catalog := registry.NewCatalog(reg, fakeCredentials{}, routerSvc.SystemDefault)

	queueCfg := queue.DefaultConfig("usage-test")
	worker := storage.NewUsageQueueWorker(
		queue.NewMemoryQueue(queueCfg), queue.NewMemoryDeadLetterQueue(),
		fakeUsageInserter{}, queueCfg)

	return &Dependencies{
		Registry:    reg,
		Factory:     factory,
		Catalog:     catalog,
		Prober:      prober,
		Router:      routerSvc,
		RateLimit:   ratelimit.NewNoopLimiter(),
		UsageWorker: worker,
	}
}

type nopSink struct{}

func (nopSink) Enqueue(_ context.Context, _ *models.UsageRecord) error { return nil }

// authedRequest builds a request with the user already on the context,
// the way the auth middleware would leave it.
func authedRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	ctx := context.WithValue(req.Context(), middleware.UserKey, testUser)
	return req.WithContext(ctx)
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, into any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rr.Body).Decode(into))
}

func TestChatRequiresPrompt(t *testing.T) {
	d := testDeps(t)
	rr := httptest.NewRecorder()
	d.handleChat(rr, authedRequest(http.MethodPost, "/v1/chat", `{"prompt":""}`))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestChatRequiresUser(t *testing.T) {
	d := testDeps(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"prompt":"hi"}`))
	d.handleChat(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestChatFallsBackToMock(t *testing.T) {
	d := testDeps(t)
	rr := httptest.NewRecorder()
	d.handleChat(rr, authedRequest(http.MethodPost, "/v1/chat", `{"prompt":"hello there"}`))

	require.Equal(t, http.StatusOK, rr.Code)

	var resp chatResponseBody
	decodeBody(t, rr, &resp)
	assert.NotEmpty(t, resp.Content)
	assert.NotEmpty(t, resp.RequestID)
	assert.False(t, resp.Routing.UsedFallback, "mock as system default is not a fallback")
}

// ollamaServer fakes the node wire protocol for one model.
func ollamaServer(t *testing.T, model, reply string) *models.ClientNode {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			fmt.Fprintf(w, `{"models":[{"name":%q}]}`, model)
		case "/api/chat":
			w.Header().Set("Content-Type", "application/x-ndjson")
			fmt.Fprintf(w, `{"model":%q,"message":{"role":"assistant","content":%q},"done":true,"prompt_eval_count":3,"eval_count":5}`+"\n", model, reply)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	return &models.ClientNode{
		ID:       1,
		Name:     "lab-box",
		Kind:     models.NodeKindRemote,
		Hostname: u.Hostname(),
		Port:     port,
		IsPublic: true,
		OwnerID:  testUser.ID,
		IsActive: true,
	}
}

func TestChatRoutesToNode(t *testing.T) {
	node := ollamaServer(t, "llama3", "node says hi")
	d := testDeps(t, node)
	d.Registry.ApplyProbeResult(node.ID, registry.HealthSnapshot{Status: models.NodeStatusOnline})

	rr := httptest.NewRecorder()
	d.handleChat(rr, authedRequest(http.MethodPost, "/v1/chat",
		`{"model":"client:1:llama3","prompt":"ping"}`))

	require.Equal(t, http.StatusOK, rr.Code)

	var resp chatResponseBody
	decodeBody(t, rr, &resp)
	assert.Equal(t, "node says hi", resp.Content)
	assert.Equal(t, "client:1:llama3", resp.Model)
	assert.False(t, resp.Routing.UsedFallback)
}

func TestChatStreamEmitsSSE(t *testing.T) {
	d := testDeps(t)
	rr := httptest.NewRecorder()
	d.handleChat(rr, authedRequest(http.MethodPost, "/v1/chat",
		`{"prompt":"stream me","stream":true}`))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))

	var events []string
	scanner := bufio.NewScanner(rr.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			events = append(events, strings.TrimPrefix(line, "data: "))
		}
	}
	require.GreaterOrEqual(t, len(events), 3, "expected routing event, chunks and terminator")

	var header struct {
		RequestID string               `json:"request_id"`
		Routing   router.RouteDecision `json:"routing"`
	}
	require.NoError(t, json.Unmarshal([]byte(events[0]), &header))
	assert.NotEmpty(t, header.RequestID)
	assert.Equal(t, "[DONE]", events[len(events)-1])
}

func TestEmbeddingsRequiresInput(t *testing.T) {
	d := testDeps(t)
	rr := httptest.NewRecorder()
	d.handleEmbeddings(rr, authedRequest(http.MethodPost, "/v1/embeddings", `{"input":""}`))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestEmbeddingsFromMock(t *testing.T) {
	d := testDeps(t)
	rr := httptest.NewRecorder()
	d.handleEmbeddings(rr, authedRequest(http.MethodPost, "/v1/embeddings",
		`{"model":"mock","input":"embed this"}`))

	require.Equal(t, http.StatusOK, rr.Code)

	var resp embeddingsResponseBody
	decodeBody(t, rr, &resp)
	assert.Equal(t, "mock:echo", resp.Model)
	assert.NotEmpty(t, resp.Embedding)
}

func TestListModelsMockOnlyWhenNothingConfigured(t *testing.T) {
	d := testDeps(t)
	rr := httptest.NewRecorder()
	d.handleListModels(rr, authedRequest(http.MethodGet, "/v1/models", ""))

	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Models []models.ModelInfo `json:"models"`
		Count  int                `json:"count"`
	}
	decodeBody(t, rr, &resp)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "mock:echo", resp.Models[0].ID)
}

func TestListVisibleNodes(t *testing.T) {
	public := &models.ClientNode{ID: 1, Name: "public-box", Hostname: "h", Port: 1, IsPublic: true, IsActive: true, OwnerID: uuid.New()}
	private := &models.ClientNode{ID: 2, Name: "private-box", Hostname: "h", Port: 1, IsActive: true, OwnerID: uuid.New()}
	d := testDeps(t, public, private)

	rr := httptest.NewRecorder()
	d.handleListVisibleNodes(rr, authedRequest(http.MethodGet, "/v1/nodes", ""))

	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Nodes []*models.ClientNode `json:"nodes"`
		Count int                  `json:"count"`
	}
	decodeBody(t, rr, &resp)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "public-box", resp.Nodes[0].Name)
}

func TestAdminListNodesIncludesInactive(t *testing.T) {
	active := &models.ClientNode{ID: 1, Name: "live", Hostname: "h", Port: 1, IsActive: true, OwnerID: uuid.New()}
	retired := &models.ClientNode{ID: 2, Name: "retired", Hostname: "h", Port: 1, IsActive: false, OwnerID: uuid.New()}
	d := testDeps(t, active, retired)

	rr := httptest.NewRecorder()
	d.handleAdminListNodes(rr, httptest.NewRequest(http.MethodGet, "/admin/nodes", nil))

	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Count int `json:"count"`
	}
	decodeBody(t, rr, &resp)
	assert.Equal(t, 2, resp.Count)
}

func TestAdminGetNodeNotFound(t *testing.T) {
	d := testDeps(t)
	req := httptest.NewRequest(http.MethodGet, "/admin/nodes/99", nil)
	req.SetPathValue("id", "99")
	rr := httptest.NewRecorder()
	d.handleAdminGetNode(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAdminGetNodeBadID(t *testing.T) {
	d := testDeps(t)
	req := httptest.NewRequest(http.MethodGet, "/admin/nodes/banana", nil)
	req.SetPathValue("id", "banana")
	rr := httptest.NewRecorder()
	d.handleAdminGetNode(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAdminProbeAllEmptyFleet(t *testing.T) {
	d := testDeps(t)
	rr := httptest.NewRecorder()
	d.handleAdminProbeAll(rr, httptest.NewRequest(http.MethodPost, "/admin/probe", nil))

	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Probed int `json:"probed"`
	}
	decodeBody(t, rr, &resp)
	assert.Equal(t, 0, resp.Probed)
}

func TestAdminDeadLetterListEmpty(t *testing.T) {
	d := testDeps(t)
	rr := httptest.NewRecorder()
	d.handleAdminListDeadLetters(rr, httptest.NewRequest(http.MethodGet, "/admin/dlq", nil))

	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Count int `json:"count"`
	}
	decodeBody(t, rr, &resp)
	assert.Equal(t, 0, resp.Count)
}

func TestAdminRetryDeadLetterMissing(t *testing.T) {
	d := testDeps(t)
	req := httptest.NewRequest(http.MethodPost, "/admin/dlq/nope/retry", nil)
	req.SetPathValue("id", "nope")
	rr := httptest.NewRecorder()
	d.handleAdminRetryDeadLetter(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
