package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/thalibox/marketplace-backend/api/responses"
	pkgerrors "github.com/thalibox/marketplace-backend/pkg/errors"
	"github.com/thalibox/marketplace-backend/pkg/logger"
)

const (
	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour

	// pendingIdempotencyTTL bounds how long a crashed request blocks its key.
	pendingIdempotencyTTL = 2 * time.Minute

	idempotencyHeader = "Idempotency-Key"
)

type idempotencyRule struct {
	method   string
	pattern  string
	ttl      time.Duration
	required bool
}

// Patterns use "*" for one path segment and a trailing "**" for any tail.
// First match wins. Money-moving routes demand a key.
var idempotencyRules = []idempotencyRule{
	{http.MethodPost, "/api/v1/orders", criticalIdempotencyTTL, true},
	{http.MethodPost, "/api/v1/payments/stripe/confirm", criticalIdempotencyTTL, true},
	{http.MethodPost, "/api/v1/payments/razorpay/verify", criticalIdempotencyTTL, true},
	{http.MethodPost, "/api/v1/admin/settlements/*/process", criticalIdempotencyTTL, true},
	{http.MethodPost, "/api/v1/admin/orders/*/refund", criticalIdempotencyTTL, true},
	{http.MethodPost, "/api/v1/auth/register", defaultIdempotencyTTL, false},
	{http.MethodPost, "/api/v1/payments/**", defaultIdempotencyTTL, false},
	{http.MethodPost, "/api/v1/orders/**", defaultIdempotencyTTL, false},
	{http.MethodPatch, "/api/v1/seller/orders/*/status", defaultIdempotencyTTL, false},
	{http.MethodPost, "/api/v1/admin/**", defaultIdempotencyTTL, false},
	{http.MethodPut, "/api/v1/admin/**", defaultIdempotencyTTL, false},
}

// IdempotencyStore persists replayable responses. *redis.Client satisfies it.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DelIfEquals(ctx context.Context, key, value string) (bool, error)
	IdempotencyKey(scope, id string) string
}

type idempotencyRecord struct {
	Pending     bool   `json:"pending,omitempty"`
	RequestHash string `json:"request_hash"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        string `json:"body,omitempty"`
}

// Idempotency replays the stored response for a repeated Idempotency-Key.
// The key is reserved before the handler runs so concurrent duplicates get a
// conflict instead of a second execution. Server errors release the key so
// the client may retry with it.
func Idempotency(store IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			rule, ok := matchRule(r.Method, r.URL.Path)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}

			id := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if id == "" {
				if rule.required {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			hash := hashBody(body)
			key := store.IdempotencyKey(UserIDFromContext(ctx)+"|"+r.Method+"|"+r.URL.Path, id)
			pending := encodeRecord(idempotencyRecord{Pending: true, RequestHash: hash})

			reserved, err := store.SetNX(ctx, key, pending, pendingIdempotencyTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !reserved {
				replayExisting(ctx, store, logg, w, key, hash)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			// Detached so a client disconnect does not strand the reservation.
			saveCtx := context.WithoutCancel(ctx)
			status := capture.statusOrOK()
			if status >= http.StatusInternalServerError {
				if _, err := store.DelIfEquals(saveCtx, key, pending); err != nil {
					logError(saveCtx, logg, "release idempotency key", err)
				}
				return
			}

			done := encodeRecord(idempotencyRecord{
				RequestHash: hash,
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        base64.StdEncoding.EncodeToString(capture.body.Bytes()),
			})
			if err := store.Set(saveCtx, key, done, rule.ttl); err != nil {
				logError(saveCtx, logg, "persist idempotency record", err)
			}
		})
	}
}

func replayExisting(ctx context.Context, store IdempotencyStore, logg *logger.Logger, w http.ResponseWriter, key, hash string) {
	stored, err := store.Get(ctx, key)
	switch {
	case errors.Is(err, redis.Nil):
		// Released between SetNX and Get; the earlier attempt failed.
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this idempotency key is being retried, try again"))
		return
	case err != nil:
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency record"))
		return
	}

	var record idempotencyRecord
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	if record.RequestHash != hash {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
		return
	}
	if record.Pending {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this idempotency key is still in progress"))
		return
	}

	body, err := base64.StdEncoding.DecodeString(record.Body)
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode stored response"))
		return
	}
	if record.ContentType != "" {
		w.Header().Set("Content-Type", record.ContentType)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(record.Status)
	_, _ = w.Write(body)
}

func encodeRecord(record idempotencyRecord) string {
	// Plain struct of strings and ints; Marshal cannot fail.
	raw, _ := json.Marshal(record)
	return string(raw)
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// matchRule runs against the concrete path. Route patterns are incomplete
// while a subrouter's middleware runs.
func matchRule(method, path string) (idempotencyRule, bool) {
	for _, rule := range idempotencyRules {
		if rule.method == method && matchPath(rule.pattern, path) {
			return rule, true
		}
	}
	return idempotencyRule{}, false
}

func matchPath(pattern, path string) bool {
	if path == "" {
		return false
	}
	want := strings.Split(strings.Trim(pattern, "/"), "/")
	got := strings.Split(strings.Trim(path, "/"), "/")
	for i, seg := range want {
		if seg == "**" {
			return len(got) > i
		}
		if i >= len(got) || (seg != "*" && seg != got[i]) || got[i] == "" {
			return false
		}
	}
	return len(got) == len(want)
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseCapture) statusOrOK() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
