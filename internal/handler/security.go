package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/user"
)

// HeaderAPIKey carries the administrator API key.
const HeaderAPIKey = "api_key"

// HeaderUserID carries the signed-in user's ID. Requests without it are
// guests.
const HeaderUserID = "X-User-ID"

var errUnauthorized = errors.New("unauthorized")

// HashAPIKey returns the hex HMAC-SHA256 of key under pepper, the form in
// which keys are stored.
func HashAPIKey(pepper []byte, key string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// authenticate looks up key by its HMAC and compares the stored hash in
// constant time.
func (h *Handler) authenticate(ctx context.Context, key string) (*auth.APIKeyInfo, error) {
	if key == "" {
		return nil, errUnauthorized
	}
	mac := hmac.New(sha256.New, h.pepper)
	mac.Write([]byte(key))
	hash := mac.Sum(nil)

	info, err := h.apikeys.FindByHash(ctx, hex.EncodeToString(hash))
	if err != nil {
		if !errors.Is(err, auth.ErrKeyNotFound) {
			zctx.From(ctx).Error("API key lookup failed", zap.Error(err))
		}
		return nil, errUnauthorized
	}
	stored, err := hex.DecodeString(info.KeyHash)
	if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
		return nil, errUnauthorized
	}
	return info, nil
}

// requireScope guards admin routes behind an API key carrying scope.
func (h *Handler) requireScope(scope string) func(http.HandlerFunc) http.Handler {
	return func(next http.HandlerFunc) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, err := h.authenticate(r.Context(), r.Header.Get(HeaderAPIKey))
			if err != nil {
				apiError{Status: http.StatusUnauthorized, Message: "unauthorized"}.write(w)
				return
			}
			if !info.HasScope(scope) {
				apiError{Status: http.StatusForbidden, Message: "forbidden"}.write(w)
				return
			}
			ctx := zctx.With(r.Context(), zap.String("api_key", info.Name))
			next(w, r.WithContext(ctx))
		})
	}
}

// keyScope reports whether the request carries an API key with scope. No
// key yields false; a key that does not authenticate is errUnauthorized.
func (h *Handler) keyScope(r *http.Request, scope string) (bool, error) {
	key := r.Header.Get(HeaderAPIKey)
	if key == "" {
		return false, nil
	}
	info, err := h.authenticate(r.Context(), key)
	if err != nil {
		return false, err
	}
	return info.HasScope(scope), nil
}

// withUser resolves the X-User-ID header into the request's user session.
// An unknown user is rejected; no header means a guest.
func (h *Handler) withUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := user.Resolve(r.Context(), h.users, r.Header.Get(HeaderUserID))
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				apiError{Status: http.StatusUnauthorized, Message: "unknown user"}.write(w)
				return
			}
			h.fail(w, r, err)
			return
		}
		ctx := user.WithSession(r.Context(), sess)
		if !sess.Guest() {
			ctx = zctx.With(ctx, zap.String("user_id", sess.UserID))
		}
		next(w, r.WithContext(ctx))
	}
}
