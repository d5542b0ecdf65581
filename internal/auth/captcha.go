package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrCaptchaFailed = errors.New("captcha verification failed")

// CaptchaVerifier checks tokens against an hCaptcha/Turnstile style
// siteverify endpoint. An empty secret disables verification.
type CaptchaVerifier struct {
	Secret    string
	VerifyURL string
	Client    *http.Client
}

func NewCaptchaVerifier(secret, verifyURL string) *CaptchaVerifier {
	return &CaptchaVerifier{
		Secret:    secret,
		VerifyURL: verifyURL,
		Client:    &http.Client{Timeout: 5 * time.Second},
	}
}

func (v *CaptchaVerifier) Enabled() bool { return v != nil && v.Secret != "" }

func (v *CaptchaVerifier) Verify(ctx context.Context, token, remoteIP string) error {
	if !v.Enabled() {
		return nil
	}
	if strings.TrimSpace(token) == "" {
		return ErrCaptchaFailed
	}
	form := url.Values{"secret": {v.Secret}, "response": {token}}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.VerifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("captcha request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := v.Client.Do(req)
	if err != nil {
		return fmt.Errorf("captcha request: %w", err)
	}
	defer resp.Body.Close()
	var out struct {
		Success bool     `json:"success"`
		Codes   []string `json:"error-codes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("captcha response: %w", err)
	}
	if !out.Success {
		return fmt.Errorf("%w: %s", ErrCaptchaFailed, strings.Join(out.Codes, ","))
	}
	return nil
}
