package idempotency

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const (
	// HeaderKey carries the client supplied idempotency key.
	HeaderKey = "Idempotency-Key"
	// HeaderHit is set on replayed responses.
	HeaderHit = "X-Idempotency-Hit"

	maxKeyLength  = 255
	maxBodyBytes  = 1 << 20
	codeKeyReused = "IDEMPOTENCY_KEY_REUSED"
)

// Middleware replays the stored response for a repeated (caller, key) pair.
// Requests without the header pass through. Responses with a 5xx status are
// not stored so the client can retry them. Reusing a key with a different
// body is rejected with 422. Redis errors disable replay for the request
// instead of failing it.
func Middleware(store *Store, caller func(*http.Request) string, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(HeaderKey))
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxKeyLength {
				writeError(w, r, http.StatusBadRequest, "INVALID_IDEMPOTENCY_KEY", "idempotency key is too long")
				return
			}

			hash, err := hashBody(w, r)
			if err != nil {
				writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "failed to read request body")
				return
			}

			ctx := r.Context()
			storeKey := Key(caller(r), key)

			stored, err := store.Get(ctx, storeKey)
			if err != nil {
				logger.Warn("idempotency lookup failed, serving request without replay", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if stored != nil {
				replay(w, r, stored, hash)
				return
			}

			acquired, err := store.Acquire(ctx, storeKey)
			if err != nil {
				logger.Warn("idempotency lock failed, serving request without replay", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !acquired {
				writeError(w, r, http.StatusConflict, "REQUEST_IN_PROGRESS", "a request with this idempotency key is in progress")
				return
			}
			// The handler may finish after the client goes away; the lock must still be released.
			saveCtx := context.WithoutCancel(ctx)
			defer func() {
				if err := store.Release(saveCtx, storeKey); err != nil {
					logger.Warn("failed to release idempotency lock", zap.Error(err))
				}
			}()

			// A request holding the same key may have finished between the lookup
			// and the lock.
			stored, err = store.Get(ctx, storeKey)
			if err != nil {
				logger.Warn("idempotency lookup failed, serving request without replay", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if stored != nil {
				replay(w, r, stored, hash)
				return
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			var body bytes.Buffer
			ww.Tee(&body)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status >= http.StatusInternalServerError {
				return
			}

			resp := &Response{
				Status:      status,
				ContentType: ww.Header().Get("Content-Type"),
				Body:        body.Bytes(),
				RequestHash: hash,
			}
			if err := store.Save(saveCtx, storeKey, resp); err != nil {
				logger.Warn("failed to store idempotent response", zap.Error(err))
			}
		})
	}
}

// hashBody fingerprints the request body and rewinds it for the next handler.
func hashBody(w http.ResponseWriter, r *http.Request) (string, error) {
	if r.Body == nil {
		return "", nil
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return "", err
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))

	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

func replay(w http.ResponseWriter, r *http.Request, resp *Response, hash string) {
	if resp.RequestHash != "" && resp.RequestHash != hash {
		writeError(w, r, http.StatusUnprocessableEntity, codeKeyReused, "idempotency key was already used with a different request")
		return
	}
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.Header().Set(HeaderHit, "true")
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    code,
		"message": message,
		"id":      middleware.GetReqID(r.Context()),
	})
}
