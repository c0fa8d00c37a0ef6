// Package probe measures node health and refreshes the registry's
// snapshots. Probing is read-only against the nodes themselves: a probe
// asks the engine for its model list and records how it answered.
package probe

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"model_gateway/internal/identifier"
	"model_gateway/internal/logging"
	"model_gateway/internal/models"
	"model_gateway/internal/providers"
	"model_gateway/internal/registry"
)

// NodeLister yields the nodes worth probing. Satisfied by
// storage.NodeRepository.
type NodeLister interface {
	ListActive(ctx context.Context) ([]*models.ClientNode, error)
}

// Prober runs health checks against registered nodes and the local
// engine. Probes are idempotent; running one twice in a row leaves the
// registry in the same state apart from timestamps.
type Prober struct {
	registry    *registry.Registry
	factory     *providers.Factory
	nodes       NodeLister
	timeout     time.Duration
	concurrency int
}

func NewProber(reg *registry.Registry, factory *providers.Factory, nodes NodeLister, timeout time.Duration, concurrency int) *Prober {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Prober{
		registry:    reg,
		factory:     factory,
		nodes:       nodes,
		timeout:     timeout,
		concurrency: concurrency,
	}
}

// probeAdapter measures one backend and classifies the outcome.
// Timeouts and connection failures mean offline: the node cannot be
// relied on for traffic. A backend that did answer but returned
// something unusable is degraded. Either way the previous model list
// is kept so listings do not flap while the node recovers.
func (p *Prober) probeAdapter(ctx context.Context, adapter providers.Adapter, prev registry.HealthSnapshot) registry.HealthSnapshot {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	tags, err := adapter.ListModels(probeCtx)

	snap := registry.HealthSnapshot{
		LatencyMs: time.Since(start).Milliseconds(),
		CheckedAt: time.Now(),
	}

	if err == nil {
		snap.Status = models.NodeStatusOnline
		snap.Models = tags
		return snap
	}

	snap.Models = prev.Models
	kind, _ := providers.FailureOf(err)
	switch kind {
	case providers.FailureUnreachable, providers.FailureTimeout:
		snap.Status = models.NodeStatusOffline
		// The failed probe's elapsed time measures nothing about the
		// node; keep the last real latency for display.
		snap.LatencyMs = prev.LatencyMs
	default:
		snap.Status = models.NodeStatusDegraded
	}
	return snap
}

// ProbeNode probes one registered node and applies the result. The
// returned snapshot is what the registry now holds.
func (p *Prober) ProbeNode(ctx context.Context, node *models.ClientNode) registry.HealthSnapshot {
	prev, _ := p.registry.Snapshot(node.ID)
	snap := p.probeAdapter(ctx, p.factory.ForNode(node), prev)
	p.registry.ApplyProbeResult(node.ID, snap)

	logging.Debugf("probed node %d (%s): %s in %dms, %d models",
		node.ID, node.Name, snap.Status, snap.LatencyMs, len(snap.Models))
	return snap
}

// ProbeLocal probes the co-located engine, when one is configured.
func (p *Prober) ProbeLocal(ctx context.Context) (registry.HealthSnapshot, bool) {
	if !p.factory.LocalEnabled() {
		return registry.HealthSnapshot{}, false
	}

	prev, _ := p.registry.Snapshot(registry.LocalNodeID)
	adapter, err := p.factory.ForIdentifier(ctx, identifier.Local(""), nil)
	if err != nil {
		return registry.HealthSnapshot{}, false
	}

	snap := p.probeAdapter(ctx, adapter, prev)
	p.registry.ApplyProbeResult(registry.LocalNodeID, snap)
	logging.Debugf("probed local engine: %s in %dms", snap.Status, snap.LatencyMs)
	return snap, true
}

// ProbeAll refreshes every active node plus the local engine, bounded
// by the configured concurrency. Results are applied as each probe
// completes rather than at the end, so a slow node does not hold back
// the others. Returns the number of nodes probed.
func (p *Prober) ProbeAll(ctx context.Context) (int, error) {
	nodes, err := p.nodes.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, node := range nodes {
		node := node
		g.Go(func() error {
			p.ProbeNode(gctx, node)
			return nil
		})
	}
	g.Go(func() error {
		p.ProbeLocal(gctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		return len(nodes), err
	}
	return len(nodes), nil
}

// Run probes on a fixed interval until the context is cancelled. An
// initial sweep runs immediately so the gateway does not start blind.
func (p *Prober) Run(ctx context.Context, interval time.Duration) {
	if _, err := p.ProbeAll(ctx); err != nil {
		logging.Warningf("initial probe sweep failed: %v", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.ProbeAll(ctx); err != nil {
				logging.Warningf("probe sweep failed: %v", err)
			}
		}
	}
}
