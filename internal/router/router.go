// Package router walks the fallback chain for chat traffic. A chat
// request always produces a response: override target first, then the
// conversation default, then the system default, and finally the mock
// backend, which cannot fail.
package router

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"model_gateway/internal/identifier"
	"model_gateway/internal/logging"
	"model_gateway/internal/models"
	"model_gateway/internal/providers"
	"model_gateway/internal/registry"
)

// ChatRequest is one chat call after HTTP decoding.
type ChatRequest struct {
	RequestID uuid.UUID
	// Model is the per-request override identifier, raw form. May be
	// empty or unresolvable; both defer to the defaults.
	Model string
	// ConversationModel is the conversation's pinned identifier, raw
	// form. Same leniency as Model.
	ConversationModel string
	Prompt            string
	History           []providers.Message
	Params            providers.Params
}

// Attempt records one failed hop for diagnostics and the response
// metadata.
type Attempt struct {
	Identifier string                `json:"identifier"`
	Failure    providers.FailureKind `json:"failure"`
	Detail     string                `json:"detail,omitempty"`
}

// RouteDecision says where a request ended up and how it got there.
type RouteDecision struct {
	Requested    string    `json:"requested,omitempty"`
	Resolved     string    `json:"resolved"`
	UsedFallback bool      `json:"used_fallback"`
	Attempts     []Attempt `json:"attempts,omitempty"`
}

// Result is a completed non-streaming chat call.
type Result struct {
	Completion *providers.Completion
	Decision   RouteDecision
}

// UsageSink receives one usage record per completed request. Satisfied
// by storage.UsageQueueWorker.
type UsageSink interface {
	Enqueue(ctx context.Context, rec *models.UsageRecord) error
}

// Router resolves identifiers to adapters and serves requests with
// fallback.
type Router struct {
	registry     *registry.Registry
	factory      *providers.Factory
	usage        UsageSink
	retryPerHop  uint64
	retryBackoff time.Duration
}

func New(reg *registry.Registry, factory *providers.Factory, usage UsageSink, retryPerHop int, retryBackoff time.Duration) *Router {
	if retryPerHop < 0 {
		retryPerHop = 0
	}
	return &Router{
		registry:     reg,
		factory:      factory,
		usage:        usage,
		retryPerHop:  uint64(retryPerHop),
		retryBackoff: retryBackoff,
	}
}

// SystemDefault picks the deployment-wide default target: the first
// cloud provider with a stored credential and default model, else the
// local engine when it has served up a model list, else mock.
func (r *Router) SystemDefault(ctx context.Context) identifier.Identifier {
	for _, provider := range []string{identifier.ProviderOpenAI, identifier.ProviderAnthropic} {
		cred, err := r.factory.CredentialFor(ctx, provider)
		if err != nil {
			continue
		}
		if cred.DefaultModel != "" {
			return identifier.Cloud(provider, cred.DefaultModel)
		}
	}

	if r.factory.LocalEnabled() {
		if snap, ok := r.registry.Snapshot(registry.LocalNodeID); ok && len(snap.Models) > 0 {
			return identifier.Local(snap.Models[0].DisplayName)
		}
	}

	return identifier.Mock
}

// buildChain assembles the ordered, deduplicated fallback chain for one
// request. Unresolvable raw identifiers contribute nothing; the chain
// always ends with mock.
func (r *Router) buildChain(ctx context.Context, req ChatRequest) []identifier.Identifier {
	var chain []identifier.Identifier
	seen := make(map[string]bool)

	add := func(id identifier.Identifier) {
		key := id.String()
		if !seen[key] {
			seen[key] = true
			chain = append(chain, id)
		}
	}

	if id, ok := identifier.Resolve(req.Model); ok {
		add(id)
	}
	if id, ok := identifier.Resolve(req.ConversationModel); ok {
		add(id)
	}
	add(r.SystemDefault(ctx))
	add(identifier.Mock)

	return chain
}

// adapterFor resolves one hop to a live adapter. Node hops enforce
// visibility for the calling user; a hidden, missing, or offline node
// is reported as unreachable so the caller just moves on.
func (r *Router) adapterFor(ctx context.Context, id identifier.Identifier, user *models.User) (providers.Adapter, error) {
	var node *models.ClientNode
	if id.Kind == identifier.KindNode {
		var err error
		node, err = r.registry.RoutableNode(ctx, id.NodeID, user.ID)
		if err != nil {
			return nil, providers.Fail("node", providers.FailureUnreachable, err)
		}
	}
	return r.factory.ForIdentifier(ctx, id, node)
}

// tryHop runs one generate attempt with the per-hop retry budget.
// Failures that retrying cannot fix (auth, malformed responses) are
// not retried.
func (r *Router) tryHop(ctx context.Context, adapter providers.Adapter, req providers.GenerateRequest) (*providers.Completion, error) {
	op := func() (*providers.Completion, error) {
		resp, err := adapter.Generate(ctx, req)
		if err != nil {
			if kind, ok := providers.FailureOf(err); ok {
				switch kind {
				case providers.FailureAuth, providers.FailureInvalidResponse:
					return nil, backoff.Permanent(err)
				}
			}
			return nil, err
		}
		return resp, nil
	}

	return backoff.RetryWithData(op, backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.retryBackoff), r.retryPerHop), ctx))
}

func failureDetail(err error) (providers.FailureKind, string) {
	kind, ok := providers.FailureOf(err)
	if !ok {
		kind = providers.FailureInvalidResponse
	}
	return kind, err.Error()
}

// Generate serves a non-streaming chat request. The error return is
// reserved for context cancellation; every backend failure is absorbed
// by the chain and the mock terminal.
func (r *Router) Generate(ctx context.Context, req ChatRequest, user *models.User) (*Result, error) {
	chain := r.buildChain(ctx, req)
	decision := RouteDecision{Requested: req.Model}

	genReq := providers.GenerateRequest{
		Prompt:  req.Prompt,
		History: req.History,
		Params:  req.Params,
	}

	start := time.Now()
	for i, id := range chain {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		adapter, err := r.adapterFor(ctx, id, user)
		if err != nil {
			kind, detail := failureDetail(err)
			decision.Attempts = append(decision.Attempts, Attempt{Identifier: id.String(), Failure: kind, Detail: detail})
			continue
		}

		genReq.Model = id.Model
		resp, err := r.tryHop(ctx, adapter, genReq)
		if err != nil {
			kind, detail := failureDetail(err)
			decision.Attempts = append(decision.Attempts, Attempt{Identifier: id.String(), Failure: kind, Detail: detail})
			logging.Debugf("hop %s failed (%s), falling back", id.String(), kind)
			continue
		}

		decision.Resolved = id.String()
		decision.UsedFallback = i > 0
		r.recordUsage(ctx, req, user, decision, len(resp.Content), time.Since(start))
		return &Result{Completion: resp, Decision: decision}, nil
	}

	// Unreachable in practice: the chain ends with mock, which cannot
	// fail. Kept as a hard stop for the compiler's sake.
	return nil, ctx.Err()
}

func (r *Router) recordUsage(ctx context.Context, req ChatRequest, user *models.User, decision RouteDecision, responseLength int, elapsed time.Duration) {
	if r.usage == nil {
		return
	}
	rec := &models.UsageRecord{
		RequestID:      req.RequestID,
		CallerID:       user.ID,
		IdentifierUsed: decision.Resolved,
		UsedFallback:   decision.UsedFallback,
		PromptLength:   len(req.Prompt),
		ResponseLength: responseLength,
		LatencyMs:      elapsed.Milliseconds(),
	}
	if err := r.usage.Enqueue(ctx, rec); err != nil {
		// Accounting must never fail a served request.
		logging.Warningf("failed to enqueue usage record: %v", err)
	}
}
