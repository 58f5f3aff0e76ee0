// Package cache documents the redis key layout shared between the gateway
// and the worker. Nothing mutates the cache outside of these keys.
package cache

import (
	"fmt"
	"time"
)

const (
	// ContentIDTTL bounds how long a platform-side file id is reused.
	ContentIDTTL = 600 * time.Second
	// InterestLockTTL bounds the at-most-one-builder lock for duplicate
	// ready events.
	InterestLockTTL = 500 * time.Second
	// CleanupCounterTTL bounds the gateway's disk-cleanup event counter.
	CleanupCounterTTL = 24 * time.Hour

	// CleanupCounterKey counts gateway events between disk cleanups.
	CleanupCounterKey = "cleanup_event_counter"

	// StartTimeField holds the ingress unix time inside CorrelationKey.
	StartTimeField = "start_time"
)

// CorrelationKey is the per-chain hash carrying start_time.
func CorrelationKey(correlationID string) string {
	return "correlation_id:" + correlationID
}

// PersistenceKey addresses a message recorded under a named slot of a chain,
// e.g. the optimistic reply.
func PersistenceKey(correlationID, slot string) string {
	return fmt.Sprintf("correlation_id:%s:%s", correlationID, slot)
}

// ContentKey maps a staged object hash to the platform-side file id.
func ContentKey(kind, objectHash string) string {
	return fmt.Sprintf("%s_content:%s", kind, objectHash)
}

// InterestLockKey is the NX-only lock coalescing duplicate ready events for
// one staged object.
func InterestLockKey(kind, objectHash string) string {
	return fmt.Sprintf("ongoing_%s_content:%s", kind, objectHash)
}

// GracedChatKey authorizes a chat beyond the admin while present.
func GracedChatKey(chatID int64) string {
	return fmt.Sprintf("graced_chat:%d", chatID)
}
