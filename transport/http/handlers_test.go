package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/gatekeeper/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier struct {
	nonce     string
	err       error
	verifyErr error
	linkErr   error
	got       core.SignatureSubmission
}

func (s *stubVerifier) Challenge(ctx context.Context, userID int64) (string, error) {
	return s.nonce, s.err
}

func (s *stubVerifier) VerifyLink(ctx context.Context, sub core.SignatureSubmission) (core.VerifyResult, error) {
	s.got = sub
	if s.verifyErr != nil {
		return core.VerifyResult{}, s.verifyErr
	}
	return core.VerifyResult{
		UserID:     sub.UserID,
		Wallet:     sub.Wallet,
		InviteLink: "https://t.me/+abc",
		ExpiresAt:  time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}, nil
}

func (s *stubVerifier) ResolveLink(ctx context.Context, token string) (int64, string, error) {
	if s.linkErr != nil {
		return 0, "", s.linkErr
	}
	return 42, s.nonce, nil
}

func newTestRouter(v Verifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return SetupRouter(v, "https://gate.example", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func do(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func TestChallengeHandler(t *testing.T) {
	r := newTestRouter(&stubVerifier{nonce: "abcd"})

	w, body := do(t, r, http.MethodGet, "/challenge/42", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abcd", body["challenge"])

	w, _ = do(t, r, http.MethodGet, "/challenge/notanumber", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	r = newTestRouter(&stubVerifier{err: errors.New("redis down")})
	w, _ = do(t, r, http.MethodGet, "/challenge/42", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestVerifyHandler_Success(t *testing.T) {
	v := &stubVerifier{}
	r := newTestRouter(v)

	w, body := do(t, r, http.MethodPost, "/verify", `{"userId":42,"walletAddress":"0xabc","signature":"0xsig"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "https://t.me/+abc", body["inviteLink"])
	assert.Equal(t, core.SignatureSubmission{UserID: 42, ChatID: 42, Wallet: "0xabc", Signature: "0xsig"}, v.got)
}

func TestVerifyHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid address", core.ErrInvalidAddress, http.StatusBadRequest},
		{"invalid input", core.ErrInvalidInput, http.StatusBadRequest},
		{"missing challenge", core.ErrChallengeMissing, http.StatusBadRequest},
		{"invalid signature", core.ErrInvalidSignature, http.StatusBadRequest},
		{"insufficient balance", core.ErrInsufficientBalance, http.StatusForbidden},
		{"oracle failure", errors.Join(core.ErrOracleFailure, errors.New("timeout")), http.StatusInternalServerError},
		{"registry failure", core.ErrRegistryFailure, http.StatusInternalServerError},
		{"issuance failure", core.ErrIssuanceFailure, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(&stubVerifier{verifyErr: tt.err})
			w, body := do(t, r, http.MethodPost, "/verify", `{"userId":42,"walletAddress":"0xabc","signature":"0xsig"}`)
			assert.Equal(t, tt.want, w.Code)
			assert.Equal(t, false, body["success"])
		})
	}
}

func TestVerifyHandler_BadRequestBody(t *testing.T) {
	r := newTestRouter(&stubVerifier{})

	w, _ := do(t, r, http.MethodPost, "/verify", `{"userId":42}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, http.MethodPost, "/verify", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLinkHandler(t *testing.T) {
	r := newTestRouter(&stubVerifier{nonce: "abcd"})
	w, body := do(t, r, http.MethodGet, "/link/sometoken", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(42), body["userId"])
	assert.Equal(t, "abcd", body["challenge"])

	r = newTestRouter(&stubVerifier{linkErr: core.ErrTokenExpired})
	w, _ = do(t, r, http.MethodGet, "/link/sometoken", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	r = newTestRouter(&stubVerifier{linkErr: core.ErrInvalidToken})
	w, _ = do(t, r, http.MethodGet, "/link/sometoken", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(&stubVerifier{})

	req := httptest.NewRequest(http.MethodOptions, "/verify", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://gate.example", w.Header().Get("Access-Control-Allow-Origin"))
}
