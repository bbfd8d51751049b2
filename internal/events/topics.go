package events

// Topic constants for domain events emitted by the storefront.
const (
	TopicOrderPlaced = "order.placed"
	TopicOrderShared = "order.shared"
)

// DefaultTopics returns the canonical list of topics forwarded to the broker.
func DefaultTopics() []string {
	return []string{TopicOrderPlaced, TopicOrderShared}
}
