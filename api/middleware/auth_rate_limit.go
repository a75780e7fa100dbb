package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/remitflow-backend/api/responses"
	pkgerrors "github.com/angelmondragon/remitflow-backend/pkg/errors"
	"github.com/angelmondragon/remitflow-backend/pkg/logger"
)

// maxCredentialBody caps how much of a login body is buffered to find the username.
const maxCredentialBody = 16 << 10

// RateLimitStore counts hits per key inside a fixed window.
type RateLimitStore interface {
	IncrWithTTL(ctx context.Context, key string, window time.Duration) (int64, error)
	RateLimitKey(scope string) string
}

// AuthRateLimitPolicy bounds attempts per client IP and per username within
// one window. A zero limit disables that dimension.
type AuthRateLimitPolicy struct {
	name          string
	window        time.Duration
	ipLimit       int
	usernameLimit int
}

func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, usernameLimit int) AuthRateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "auth"
	}
	return AuthRateLimitPolicy{name: name, window: window, ipLimit: ipLimit, usernameLimit: usernameLimit}
}

func (p AuthRateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.usernameLimit > 0)
}

// bucket is one counter a request is charged against.
type bucket struct {
	dimension string
	subject   string
	limit     int
}

// AuthRateLimit rejects credential attempts over the policy with 429 and a
// Retry-After of one window. Usernames are hashed before they reach Redis.
func AuthRateLimit(policy AuthRateLimitPolicy, store RateLimitStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			buckets, err := bucketsFor(policy, r)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			for _, b := range buckets {
				key := store.RateLimitKey(strings.Join([]string{policy.name, b.dimension, b.subject}, ":"))
				count, err := store.IncrWithTTL(r.Context(), key, policy.window)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if count > int64(b.limit) {
					rejectOverLimit(r.Context(), logg, w, policy, b, count)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bucketsFor(policy AuthRateLimitPolicy, r *http.Request) ([]bucket, error) {
	var out []bucket
	if ip := clientIP(r); policy.ipLimit > 0 && ip != "" {
		out = append(out, bucket{dimension: "ip", subject: ip, limit: policy.ipLimit})
	}
	if policy.usernameLimit <= 0 || r.Body == nil {
		return out, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCredentialBody))
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	var creds struct {
		Username string `json:"username"`
	}
	if json.Unmarshal(body, &creds) != nil {
		return out, nil
	}
	if username := strings.ToLower(strings.TrimSpace(creds.Username)); username != "" {
		sum := sha256.Sum256([]byte(username))
		out = append(out, bucket{dimension: "user", subject: hex.EncodeToString(sum[:]), limit: policy.usernameLimit})
	}
	return out, nil
}

func rejectOverLimit(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy AuthRateLimitPolicy, b bucket, count int64) {
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"policy":         policy.name,
			"dimension":      b.dimension,
			"subject":        b.subject,
			"attempts":       count,
			"limit":          b.limit,
			"window_seconds": int(policy.window.Seconds()),
		}), "auth.rate_limit.blocked")
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(policy.window.Round(time.Second).Seconds())))
	responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
}
