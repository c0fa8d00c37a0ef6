package identifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveCloud(t *testing.T) {
	id, ok := Resolve("openai:gpt-4o-mini")
	assert.True(t, ok)
	assert.Equal(t, KindCloud, id.Kind)
	assert.Equal(t, "openai", id.Provider)
	assert.Equal(t, "gpt-4o-mini", id.Model)
}

func TestResolveCloudModelWithColons(t *testing.T) {
	// Only the first colon splits provider from model; versioned tags keep
	// their own colons.
	id, ok := Resolve("anthropic:claude-sonnet:latest")
	assert.True(t, ok)
	assert.Equal(t, KindCloud, id.Kind)
	assert.Equal(t, "anthropic", id.Provider)
	assert.Equal(t, "claude-sonnet:latest", id.Model)
}

func TestResolveNode(t *testing.T) {
	id, ok := Resolve("client:7:llama3.1")
	assert.True(t, ok)
	assert.Equal(t, KindNode, id.Kind)
	assert.Equal(t, int64(7), id.NodeID)
	assert.Equal(t, "llama3.1", id.Model)
	assert.Equal(t, "client:7:llama3.1", id.String())
}

func TestResolveLocal(t *testing.T) {
	id, ok := Resolve("local:llama3.1")
	assert.True(t, ok)
	assert.Equal(t, KindLocal, id.Kind)
	assert.Equal(t, "llama3.1", id.Model)
}

func TestResolveMock(t *testing.T) {
	id, ok := Resolve("mock")
	assert.True(t, ok)
	assert.Equal(t, Mock, id)

	id, ok = Resolve("mock:echo")
	assert.True(t, ok)
	assert.Equal(t, "mock:echo", id.String())
}

func TestResolveUnresolved(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"gpt-4o-mini",           // no prefix
		"invalid:bad:id",        // unknown provider
		"client:abc:llama3.1",   // non-numeric node id
		"client:7",              // missing model
		"client:7:",             // empty model
		"client:-3:llama3.1",    // negative node id
		"openai:",               // empty model
		"huggingface:bert-base", // provider outside the known set
	}

	for _, raw := range cases {
		_, ok := Resolve(raw)
		assert.False(t, ok, "expected %q to be unresolved", raw)
	}
}

func TestStringRoundTrip(t *testing.T) {
	for _, raw := range []string{"openai:gpt-4o-mini", "client:9:llama3.1", "local:phi3", "mock:echo"} {
		id, ok := Resolve(raw)
		assert.True(t, ok)
		assert.Equal(t, raw, id.String())
	}
}
