package router

import (
	"context"
	"time"

	"model_gateway/internal/logging"
	"model_gateway/internal/models"
	"model_gateway/internal/providers"
)

// StreamResult carries a live chunk stream plus the routing decision
// made before the first chunk.
type StreamResult struct {
	Chunks   <-chan providers.Chunk
	Decision RouteDecision
}

// Stream serves a streaming chat request. Fallback applies only until
// a backend starts producing chunks; once streaming has begun a broken
// stream simply ends, it is not replayed elsewhere. Cancelling the
// context stops the underlying generation and closes the channel.
func (r *Router) Stream(ctx context.Context, req ChatRequest, user *models.User) (*StreamResult, error) {
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
		chunks, err := r.openStream(ctx, adapter, genReq)
		if err != nil {
			kind, detail := failureDetail(err)
			decision.Attempts = append(decision.Attempts, Attempt{Identifier: id.String(), Failure: kind, Detail: detail})
			logging.Debugf("stream hop %s failed (%s), falling back", id.String(), kind)
			continue
		}

		decision.Resolved = id.String()
		decision.UsedFallback = i > 0
		return &StreamResult{
			Chunks:   r.meterStream(ctx, chunks, req, user, decision, start),
			Decision: decision,
		}, nil
	}

	return nil, ctx.Err()
}

// openStream starts a chunk stream on the adapter, degrading to a
// one-shot generate for backends without native streaming.
func (r *Router) openStream(ctx context.Context, adapter providers.Adapter, req providers.GenerateRequest) (<-chan providers.Chunk, error) {
	if streamer, ok := adapter.(providers.Streamer); ok {
		return streamer.Stream(ctx, req)
	}

	resp, err := r.tryHop(ctx, adapter, req)
	if err != nil {
		return nil, err
	}

	out := make(chan providers.Chunk, 1)
	out <- providers.Chunk{Content: resp.Content, Done: true}
	close(out)
	return out, nil
}

// meterStream relays chunks while accumulating response length, then
// emits the usage record when the stream ends for any reason,
// cancellation included.
func (r *Router) meterStream(ctx context.Context, in <-chan providers.Chunk, req ChatRequest, user *models.User, decision RouteDecision, start time.Time) <-chan providers.Chunk {
	out := make(chan providers.Chunk)
	go func() {
		defer close(out)

		responseLength := 0
		defer func() {
			// Enqueue with a fresh context: the request context is
			// typically already cancelled when a stream ends early.
			recordCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			r.recordUsage(recordCtx, req, user, decision, responseLength, time.Since(start))
		}()

		for chunk := range in {
			responseLength += len(chunk.Content)
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
