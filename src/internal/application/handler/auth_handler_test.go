package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/hackit-taiwan/database-service/src/internal/infrastructure/security"
)

func TestSignatureHelper(t *testing.T) {
	const secret = "helper-secret"
	h := NewAuthHandler(secret)

	w := httptest.NewRecorder()
	h.Signature(w, httptest.NewRequest(http.MethodGet, "/auth/signature?method=GET&path=/users/abc", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}

	// The minted headers verify against the same secret.
	ts, err := strconv.ParseInt(body.Data[security.TimestampHeader], 10, 64)
	if err != nil {
		t.Fatalf("timestamp header %q: %v", body.Data[security.TimestampHeader], err)
	}
	ok := security.VerifySignature(secret, http.MethodGet, "/users/abc", ts,
		body.Data[security.SignatureHeader], 300*time.Second, time.Now())
	if !ok {
		t.Error("minted signature did not verify")
	}
}

func TestSignatureHelperValidation(t *testing.T) {
	h := NewAuthHandler("helper-secret")

	w := httptest.NewRecorder()
	h.Signature(w, httptest.NewRequest(http.MethodGet, "/auth/signature?method=GET", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing path status = %d, want 400", w.Code)
	}
}
