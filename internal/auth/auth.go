// Package auth gates chat traffic: the configured admin always passes, other
// users pass only while their chat holds an access grant.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/baechuer/media-pirate/internal/cache"
)

// GrantValue is what a graced chat key holds while the grant is live.
const GrantValue = "access_granted"

type Authenticator struct {
	client   *redis.Client
	adminID  int64
	graceTTL time.Duration
}

func NewAuthenticator(client *redis.Client, adminID int64, graceTTL time.Duration) *Authenticator {
	return &Authenticator{client: client, adminID: adminID, graceTTL: graceTTL}
}

func (a *Authenticator) IsAdmin(userID int64) bool {
	return userID == a.adminID
}

// IsAllowed reports whether the user may use the system from the given chat:
// admin, or the chat holds an access grant.
func (a *Authenticator) IsAllowed(ctx context.Context, userID, chatID int64) (bool, error) {
	if a.IsAdmin(userID) {
		return true, nil
	}
	n, err := a.client.Exists(ctx, cache.GracedChatKey(chatID)).Result()
	if err != nil {
		return false, fmt.Errorf("grant lookup: %w", err)
	}
	return n == 1, nil
}

// Grace grants the chat access for the grace TTL (one week by default).
func (a *Authenticator) Grace(ctx context.Context, chatID int64) error {
	if err := a.client.Set(ctx, cache.GracedChatKey(chatID), GrantValue, a.graceTTL).Err(); err != nil {
		return fmt.Errorf("grace chat %d: %w", chatID, err)
	}
	return nil
}

// Smite revokes the chat's grant. Revoking an absent grant is a no-op.
func (a *Authenticator) Smite(ctx context.Context, chatID int64) error {
	if err := a.client.Del(ctx, cache.GracedChatKey(chatID)).Err(); err != nil {
		return fmt.Errorf("smite chat %d: %w", chatID, err)
	}
	return nil
}
