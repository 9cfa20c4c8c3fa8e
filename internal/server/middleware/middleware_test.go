package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func validToken(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	return signToken(t, testSecret, jwt.MapClaims{
		"uid":  userID.String(),
		"role": "member",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
}

// captureUser is a terminal handler that records the user seen in context.
func captureUser(got *uuid.UUID, ok *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got, *ok = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuth(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	t.Run("valid_token", func(t *testing.T) {
		t.Parallel()

		var got uuid.UUID
		var ok bool
		handler := Auth(testSecret)(captureUser(&got, &ok))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+validToken(t, userID))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, ok)
		assert.Equal(t, userID, got)
	})

	t.Run("missing_header", func(t *testing.T) {
		t.Parallel()

		handler := Auth(testSecret)(captureUser(new(uuid.UUID), new(bool)))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong_secret", func(t *testing.T) {
		t.Parallel()

		handler := Auth(testSecret)(captureUser(new(uuid.UUID), new(bool)))

		tok := signToken(t, "another-secret-another-secret-ab", jwt.MapClaims{
			"uid": userID.String(),
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired_token", func(t *testing.T) {
		t.Parallel()

		handler := Auth(testSecret)(captureUser(new(uuid.UUID), new(bool)))

		tok := signToken(t, testSecret, jwt.MapClaims{
			"uid": userID.String(),
			"exp": time.Now().Add(-time.Hour).Unix(),
		})
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unsigned_algorithm_rejected", func(t *testing.T) {
		t.Parallel()

		handler := Auth(testSecret)(captureUser(new(uuid.UUID), new(bool)))

		tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
			"uid": userID.String(),
			"exp": time.Now().Add(time.Hour).Unix(),
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("nil_uuid_rejected", func(t *testing.T) {
		t.Parallel()

		handler := Auth(testSecret)(captureUser(new(uuid.UUID), new(bool)))

		tok := signToken(t, testSecret, jwt.MapClaims{
			"uid": uuid.Nil.String(),
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage_uid_rejected", func(t *testing.T) {
		t.Parallel()

		handler := Auth(testSecret)(captureUser(new(uuid.UUID), new(bool)))

		tok := signToken(t, testSecret, jwt.MapClaims{
			"uid": "not-a-uuid",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireUser(t *testing.T) {
	t.Parallel()

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("user_present", func(t *testing.T) {
		t.Parallel()

		handler := RequireUser()(next)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		ctx := context.WithValue(req.Context(), ContextKeyUserID, uuid.New())
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req.WithContext(ctx))

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("no_user", func(t *testing.T) {
		t.Parallel()

		handler := RequireUser()(next)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("nil_user", func(t *testing.T) {
		t.Parallel()

		handler := RequireUser()(next)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		ctx := context.WithValue(req.Context(), ContextKeyUserID, uuid.Nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req.WithContext(ctx))

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	doRequest := func(handler http.Handler, userID uuid.UUID) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		ctx := context.WithValue(req.Context(), ContextKeyUserID, userID)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req.WithContext(ctx))
		return rec.Code
	}

	t.Run("burst_then_limited", func(t *testing.T) {
		t.Parallel()

		handler := RateLimit(context.Background(), 1, 2)(next)
		userID := uuid.New()

		assert.Equal(t, http.StatusOK, doRequest(handler, userID))
		assert.Equal(t, http.StatusOK, doRequest(handler, userID))
		assert.Equal(t, http.StatusTooManyRequests, doRequest(handler, userID))
	})

	t.Run("limits_are_per_user", func(t *testing.T) {
		t.Parallel()

		handler := RateLimit(context.Background(), 1, 1)(next)

		first := uuid.New()
		second := uuid.New()

		assert.Equal(t, http.StatusOK, doRequest(handler, first))
		assert.Equal(t, http.StatusTooManyRequests, doRequest(handler, first))
		assert.Equal(t, http.StatusOK, doRequest(handler, second), "one user's burst must not starve another")
	})

	t.Run("anonymous_requests_skip_limiting", func(t *testing.T) {
		t.Parallel()

		handler := RateLimit(context.Background(), 1, 1)(next)

		for i := 0; i < 5; i++ {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
		}
	})
}
