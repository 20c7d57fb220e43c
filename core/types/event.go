package types

// Event is a typed payload emitted by native engines during state
// transitions. Attributes hold stringified values so downstream consumers
// (RPC, indexers, audit logs) never depend on engine-internal types.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
