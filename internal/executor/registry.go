package executor

import "fmt"

// Constructor builds an Executor rooted at workingDir.
type Constructor func(workingDir string) Executor

// Registry maps an agent type name to its Constructor.
type Registry struct {
	constructors map[string]Constructor
}

// NewRegistry returns a Registry pre-populated with the two built-in
// executor types.
func NewRegistry() *Registry {
	r := &Registry{constructors: make(map[string]Constructor)}
	r.Register(conversationalAgentType, func(workingDir string) Executor {
		return NewConversationalExecutor(workingDir)
	})
	r.Register(alternateCodingAgentType, func(workingDir string) Executor {
		return NewAlternateCodingExecutor(workingDir)
	})
	return r
}

// Register adds or replaces the constructor for agentType.
func (r *Registry) Register(agentType string, ctor Constructor) {
	r.constructors[agentType] = ctor
}

// Create instantiates the executor registered for agentType.
func (r *Registry) Create(agentType, workingDir string) (Executor, error) {
	ctor, ok := r.constructors[agentType]
	if !ok {
		return nil, fmt.Errorf("unknown agent type %q (available: %v)", agentType, r.AgentTypes())
	}
	return ctor(workingDir), nil
}

// AgentTypes lists every registered agent type.
func (r *Registry) AgentTypes() []string {
	types := make([]string, 0, len(r.constructors))
	for t := range r.constructors {
		types = append(types, t)
	}
	return types
}

// DetectInstalled probes every registered agent type's CLI and reports
// which are runnable. Construction failures count as not installed.
func (r *Registry) DetectInstalled() map[string]bool {
	installed := make(map[string]bool, len(r.constructors))
	for agentType, ctor := range r.constructors {
		func() {
			defer func() {
				if recover() != nil {
					installed[agentType] = false
				}
			}()
			exec := ctor(".")
			ok, _ := exec.CheckAvailable()
			installed[agentType] = ok
		}()
	}
	return installed
}

// AutoConfigureAgents inspects DetectInstalled and returns
// (primary, secondary, debateEnabled):
//   - both installed:       (conversational, alternate, true)
//   - only conversational:  (conversational, "", false)
//   - only alternate:       (alternate, "", false)
//   - neither:              (conversational, "", false) — a nominal
//     default that will fail at runtime.
//
// Preference order for the primary agent when both are available is
// conversational over alternate.
func (r *Registry) AutoConfigureAgents() (primary, secondary string, debateEnabled bool) {
	installed := r.DetectInstalled()

	conversationalAvailable := installed[conversationalAgentType]
	alternateAvailable := installed[alternateCodingAgentType]

	switch {
	case conversationalAvailable && alternateAvailable:
		return conversationalAgentType, alternateCodingAgentType, true
	case conversationalAvailable:
		return conversationalAgentType, "", false
	case alternateAvailable:
		return alternateCodingAgentType, "", false
	default:
		return conversationalAgentType, "", false
	}
}
