package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubExecutor satisfies Executor with a canned availability answer, so
// registry tests never touch real binaries.
type stubExecutor struct {
	agentType string
	available bool
}

func (s *stubExecutor) AgentType() string { return s.agentType }
func (s *stubExecutor) Execute(string, Options) (ExecutionResult, error) {
	return ExecutionResult{AgentType: s.agentType}, nil
}
func (s *stubExecutor) CheckAvailable() (bool, string) {
	if s.available {
		return true, "stub 1.0"
	}
	return false, "stub not installed"
}
func (s *stubExecutor) BuildCommand(prompt string, _ Options, _ bool) []string {
	return []string{s.agentType, prompt}
}

func stubRegistry(conversationalInstalled, alternateInstalled bool) *Registry {
	r := NewRegistry()
	r.Register(conversationalAgentType, func(string) Executor {
		return &stubExecutor{agentType: conversationalAgentType, available: conversationalInstalled}
	})
	r.Register(alternateCodingAgentType, func(string) Executor {
		return &stubExecutor{agentType: alternateCodingAgentType, available: alternateInstalled}
	})
	return r
}

func TestRegistry_BuiltinsRegistered(t *testing.T) {
	r := NewRegistry()
	assert.ElementsMatch(t, []string{conversationalAgentType, alternateCodingAgentType}, r.AgentTypes())
}

func TestRegistry_CreateKnownType(t *testing.T) {
	r := NewRegistry()
	exec, err := r.Create(conversationalAgentType, "/tmp/work")
	require.NoError(t, err)
	assert.Equal(t, conversationalAgentType, exec.AgentType())
}

func TestRegistry_CreateUnknownTypeFails(t *testing.T) {
	r := NewRegistry()
	_, err := r.Create("no-such-agent", ".")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no-such-agent")
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	r := NewRegistry()
	r.Register(conversationalAgentType, func(string) Executor {
		return &stubExecutor{agentType: "replaced"}
	})
	exec, err := r.Create(conversationalAgentType, ".")
	require.NoError(t, err)
	assert.Equal(t, "replaced", exec.AgentType())
}

func TestDetectInstalled(t *testing.T) {
	r := stubRegistry(true, false)
	installed := r.DetectInstalled()
	assert.True(t, installed[conversationalAgentType])
	assert.False(t, installed[alternateCodingAgentType])
}

func TestAutoConfigureAgents_BothInstalledEnablesDebate(t *testing.T) {
	primary, secondary, debate := stubRegistry(true, true).AutoConfigureAgents()
	assert.Equal(t, conversationalAgentType, primary)
	assert.Equal(t, alternateCodingAgentType, secondary)
	assert.True(t, debate)
}

func TestAutoConfigureAgents_SingleAgentNoDebate(t *testing.T) {
	primary, secondary, debate := stubRegistry(true, false).AutoConfigureAgents()
	assert.Equal(t, conversationalAgentType, primary)
	assert.Empty(t, secondary)
	assert.False(t, debate)

	primary, secondary, debate = stubRegistry(false, true).AutoConfigureAgents()
	assert.Equal(t, alternateCodingAgentType, primary)
	assert.Empty(t, secondary)
	assert.False(t, debate)
}

func TestAutoConfigureAgents_NothingInstalledFallsBackToDefault(t *testing.T) {
	primary, secondary, debate := stubRegistry(false, false).AutoConfigureAgents()
	assert.Equal(t, conversationalAgentType, primary)
	assert.Empty(t, secondary)
	assert.False(t, debate)
}
