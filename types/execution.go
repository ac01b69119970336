package types

import (
	"sync"

	"github.com/google/uuid"
)

// ExecContext carries the identity and accumulated state of one logical
// workflow run as it passes through a chain of primitives.
//
// Identity fields (workflow ID, correlation ID) are immutable once set.
// Metadata and State may be mutated by any primitive in the chain; every
// parallel branch must receive an independent Fork so branches never share
// a State map.
type ExecContext struct {
	workflowID    string
	sessionID     string
	correlationID string

	mu      sync.RWMutex
	traceID string
	spanID  string
	// metadata 保持插入顺序，键唯一
	metaKeys []string
	meta     map[string]any
	state    map[string]any
}

// ExecOption configures a new ExecContext.
type ExecOption func(*ExecContext)

// WithSessionID groups related workflow runs under one session.
func WithSessionID(id string) ExecOption {
	return func(ec *ExecContext) { ec.sessionID = id }
}

// WithCorrelationID sets the per-external-request correlation ID.
func WithCorrelationID(id string) ExecOption {
	return func(ec *ExecContext) { ec.correlationID = id }
}

// WithWorkflowID overrides the generated workflow ID.
func WithWorkflowID(id string) ExecOption {
	return func(ec *ExecContext) { ec.workflowID = id }
}

// NewExecContext creates the root context of a workflow invocation.
// Workflow and trace IDs are generated when not provided.
func NewExecContext(opts ...ExecOption) *ExecContext {
	ec := &ExecContext{
		meta:  make(map[string]any),
		state: make(map[string]any),
	}
	for _, opt := range opts {
		opt(ec)
	}
	if ec.workflowID == "" {
		ec.workflowID = uuid.NewString()
	}
	ec.traceID = uuid.NewString()
	ec.spanID = uuid.NewString()
	return ec
}

// WorkflowID returns the stable workflow identifier.
func (ec *ExecContext) WorkflowID() string { return ec.workflowID }

// SessionID returns the optional session identifier.
func (ec *ExecContext) SessionID() string { return ec.sessionID }

// CorrelationID returns the per-request correlation identifier.
func (ec *ExecContext) CorrelationID() string { return ec.correlationID }

// TraceID returns the current trace identifier.
func (ec *ExecContext) TraceID() string {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return ec.traceID
}

// SpanID returns the current span identifier.
func (ec *ExecContext) SpanID() string {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return ec.spanID
}

// SetSpan updates the trace lineage. Called by the instrumentation wrapper
// so forked children produce child spans under the same trace.
func (ec *ExecContext) SetSpan(traceID, spanID string) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if traceID != "" {
		ec.traceID = traceID
	}
	ec.spanID = spanID
}

// SetMetadata stores a metadata entry, preserving first-insertion order.
func (ec *ExecContext) SetMetadata(key string, value any) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if _, ok := ec.meta[key]; !ok {
		ec.metaKeys = append(ec.metaKeys, key)
	}
	ec.meta[key] = value
}

// Metadata returns the metadata entry for key.
func (ec *ExecContext) Metadata(key string) (any, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	v, ok := ec.meta[key]
	return v, ok
}

// MetadataKeys returns all metadata keys in insertion order.
func (ec *ExecContext) MetadataKeys() []string {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	keys := make([]string, len(ec.metaKeys))
	copy(keys, ec.metaKeys)
	return keys
}

// SetState stores a primitive-to-primitive handoff value.
func (ec *ExecContext) SetState(key string, value any) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.state[key] = value
}

// State returns the handoff value for key.
func (ec *ExecContext) State(key string) (any, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	v, ok := ec.state[key]
	return v, ok
}

// Fork creates a child context for one parallel branch: same identity and
// trace ID, fresh span ID, copied metadata, and an isolated state map so
// concurrent branches never race on shared state.
func (ec *ExecContext) Fork() *ExecContext {
	ec.mu.RLock()
	defer ec.mu.RUnlock()

	child := &ExecContext{
		workflowID:    ec.workflowID,
		sessionID:     ec.sessionID,
		correlationID: ec.correlationID,
		traceID:       ec.traceID,
		spanID:        uuid.NewString(),
		metaKeys:      make([]string, len(ec.metaKeys)),
		meta:          make(map[string]any, len(ec.meta)),
		state:         make(map[string]any),
	}
	copy(child.metaKeys, ec.metaKeys)
	for k, v := range ec.meta {
		child.meta[k] = v
	}
	return child
}
