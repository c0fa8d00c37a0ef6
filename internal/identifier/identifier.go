package identifier

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind enumerates the closed set of routable backend variants.
type Kind string

const (
	KindCloud Kind = "cloud"
	KindNode  Kind = "node"
	KindLocal Kind = "local"
	KindMock  Kind = "mock"
)

// Known cloud provider names. An identifier prefix outside this set is
// treated as unresolved, never as an error.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Mock is the terminal identifier of every fallback chain.
var Mock = Identifier{Kind: KindMock, Model: "echo"}

// Identifier is a parsed model identifier. Exactly one variant applies:
//   - KindCloud: Provider + Model ("openai:gpt-4o-mini")
//   - KindNode:  NodeID + Model ("client:7:llama3.1")
//   - KindLocal: Model ("local:llama3.1")
//   - KindMock:  Model ("mock:echo")
type Identifier struct {
	Kind     Kind
	Provider string
	NodeID   int64
	Model    string
}

// String renders the canonical, externally stable identifier form. Every
// listed model uses this form so callers can copy and target it directly.
func (id Identifier) String() string {
	switch id.Kind {
	case KindCloud:
		return id.Provider + ":" + id.Model
	case KindNode:
		return fmt.Sprintf("client:%d:%s", id.NodeID, id.Model)
	case KindLocal:
		return "local:" + id.Model
	default:
		return "mock:" + id.Model
	}
}

// Cloud builds a cloud-provider identifier.
func Cloud(provider, model string) Identifier {
	return Identifier{Kind: KindCloud, Provider: provider, Model: model}
}

// Node builds a node-addressed identifier.
func Node(nodeID int64, model string) Identifier {
	return Identifier{Kind: KindNode, NodeID: nodeID, Model: model}
}

// Local builds an identifier for the loopback inference engine.
func Local(model string) Identifier {
	return Identifier{Kind: KindLocal, Model: model}
}

// IsKnownProvider reports whether name is a supported cloud provider.
func IsKnownProvider(name string) bool {
	switch name {
	case ProviderOpenAI, ProviderAnthropic:
		return true
	}
	return false
}

// Resolve parses a raw model identifier string. It is total: it never
// returns an error. ok is false when the input is empty, has an unknown
// prefix, or is malformed; such input defers to the caller's default
// chain instead of failing the request.
//
// Grammar (longest-prefix, only the first one or two colons significant):
//
//	client:<numericNodeID>:<model>
//	<knownProvider>:<model>   (model may itself contain colons)
//	local:<model>
//	mock[:<model>]
func Resolve(raw string) (Identifier, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identifier{}, false
	}

	if raw == "mock" {
		return Mock, true
	}

	prefix, rest, found := strings.Cut(raw, ":")
	if !found || rest == "" {
		return Identifier{}, false
	}

	switch prefix {
	case "client":
		nodePart, model, found := strings.Cut(rest, ":")
		if !found || model == "" {
			return Identifier{}, false
		}
		nodeID, err := strconv.ParseInt(nodePart, 10, 64)
		if err != nil || nodeID <= 0 {
			return Identifier{}, false
		}
		return Node(nodeID, model), true
	case "local":
		return Local(rest), true
	case "mock":
		return Identifier{Kind: KindMock, Model: rest}, true
	default:
		if IsKnownProvider(prefix) {
			return Cloud(prefix, rest), true
		}
		return Identifier{}, false
	}
}
