package types

// Event is the generic projection of a typed event: a type tag plus string
// attributes, the shape exported to indexers.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
