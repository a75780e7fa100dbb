package redis

import "strings"

// keyNamespace prefixes every key this service writes.
const keyNamespace = "rf"

// keyspace builds the namespaced keys. It is embedded in Client so callers
// that only hold a store interface can still build keys.
type keyspace struct{}

func (keyspace) IdempotencyKey(scope, id string) string {
	return joinKey("idempotency", scope, id)
}

func (keyspace) RateLimitKey(scope string) string {
	return joinKey("rate_limit", scope)
}

// LockKey names a cron job's distributed lock.
func (keyspace) LockKey(name string) string {
	return joinKey("lock", name)
}

// AccessSessionKey marks one access token id as live.
func (keyspace) AccessSessionKey(accessID string) string {
	return joinKey("session", "access", accessID)
}

// UserRevocationKey holds the instant before which a user's sessions are void.
func (keyspace) UserRevocationKey(userID string) string {
	return joinKey("session", "revoked", userID)
}

// joinKey drops blank parts so a missing scope never yields "a::b".
func joinKey(parts ...string) string {
	out := make([]string, 1, len(parts)+1)
	out[0] = keyNamespace
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return strings.Join(out, ":")
}
