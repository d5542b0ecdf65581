package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCaptchaVerifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		ok := r.PostForm.Get("secret") == "s" && r.PostForm.Get("response") == "good"
		_ = json.NewEncoder(w).Encode(map[string]any{"success": ok, "error-codes": []string{"invalid-input-response"}})
	}))
	defer srv.Close()

	v := NewCaptchaVerifier("s", srv.URL)
	if err := v.Verify(context.Background(), "good", "1.2.3.4"); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if err := v.Verify(context.Background(), "bad", ""); err == nil {
		t.Fatalf("expected failure")
	}
	if err := v.Verify(context.Background(), "", ""); err == nil {
		t.Fatalf("empty token must fail when enabled")
	}
	if err := NewCaptchaVerifier("", srv.URL).Verify(context.Background(), "", ""); err != nil {
		t.Fatalf("disabled verifier should pass, got %v", err)
	}
}
