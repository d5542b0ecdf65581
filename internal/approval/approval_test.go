package approval

import (
	"context"
	"errors"
	"testing"
	"time"

	"contractdesk/internal/models"
	"contractdesk/internal/testutil"
)

func pendingContract(t *testing.T, s *Store) models.Contract {
	t.Helper()
	c := models.Contract{
		OwnerID:           "11111111-1111-1111-1111-111111111111",
		ReferenceNumber:   "CT-20240101-" + time.Now().Format("150405"),
		FirstPartyNameEN:  "Acme",
		SecondPartyNameEN: "Bob",
		Status:            models.StatusPending,
	}
	if err := s.DB.Create(&c).Error; err != nil {
		t.Fatalf("create contract: %v", err)
	}
	return c
}

func TestGenerateHashesOnly(t *testing.T) {
	t.Parallel()
	raw, hash, err := Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(hash) != 64 || hash == raw || Hash(raw) != hash {
		t.Fatalf("unexpected hash %q for %q", hash, raw)
	}
	other, _, _ := Generate()
	if other == raw {
		t.Fatalf("tokens must differ")
	}
}

func TestRedeemIsSingleUse(t *testing.T) {
	s := NewStore(testutil.NewDB(t), time.Hour)
	ctx := context.Background()
	c := pendingContract(t, s)
	raw, tok, err := s.Issue(ctx, c.ID, " Party@Example.com ", c.OwnerID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if tok.PartyEmail != "party@example.com" {
		t.Fatalf("email = %q", tok.PartyEmail)
	}
	var stored models.ApprovalToken
	if err := s.DB.First(&stored, "id = ?", tok.ID).Error; err != nil || stored.TokenHash == raw {
		t.Fatalf("raw token must not be stored: %v", err)
	}

	if _, _, err := s.Redeem(ctx, raw, "maybe", ""); !errors.Is(err, ErrInvalidDecision) {
		t.Fatalf("bad decision: %v", err)
	}
	_, got, err := s.Redeem(ctx, raw, DecisionApprove, "ok")
	if err != nil || got.Status != models.StatusApproved {
		t.Fatalf("redeem = %q, %v", got.Status, err)
	}
	if _, _, err := s.Redeem(ctx, raw, DecisionApprove, ""); !errors.Is(err, ErrTokenUsed) {
		t.Fatalf("second redeem: %v", err)
	}
	var reloaded models.Contract
	if err := s.DB.First(&reloaded, "id = ?", c.ID).Error; err != nil || reloaded.Status != models.StatusApproved {
		t.Fatalf("contract status = %q, %v", reloaded.Status, err)
	}
}

func TestRedeemRejectsExpiredAndUnknown(t *testing.T) {
	s := NewStore(testutil.NewDB(t), time.Hour)
	ctx := context.Background()
	c := pendingContract(t, s)
	raw, _, err := s.Issue(ctx, c.ID, "p@example.com", c.OwnerID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, _, err := s.Redeem(ctx, raw, DecisionReject, "late"); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expired: %v", err)
	}
	if _, _, err := s.Lookup(ctx, "not-a-token"); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("unknown: %v", err)
	}
}

func TestRedeemRequiresPendingContract(t *testing.T) {
	s := NewStore(testutil.NewDB(t), time.Hour)
	ctx := context.Background()
	c := pendingContract(t, s)
	raw, _, _ := s.Issue(ctx, c.ID, "p@example.com", c.OwnerID)
	if err := s.DB.Model(&models.Contract{}).Where("id = ?", c.ID).Update("status", models.StatusDraft).Error; err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, _, err := s.Redeem(ctx, raw, DecisionApprove, ""); !errors.Is(err, ErrNotPending) {
		t.Fatalf("draft contract: %v", err)
	}
	if _, _, err := s.Lookup(ctx, raw); err != nil {
		t.Fatalf("token must stay usable after a refused redemption: %v", err)
	}
}

func TestRevokeEndsOutstandingLinks(t *testing.T) {
	s := NewStore(testutil.NewDB(t), time.Hour)
	ctx := context.Background()
	c := pendingContract(t, s)
	first, _, err := s.Issue(ctx, c.ID, "a@example.com", c.OwnerID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	second, _, err := s.Issue(ctx, c.ID, "b@example.com", c.OwnerID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	n, err := s.Revoke(s.DB.WithContext(ctx), c.ID)
	if err != nil || n != 2 {
		t.Fatalf("revoke = %d, %v", n, err)
	}
	for _, raw := range []string{first, second} {
		if _, _, err := s.Lookup(ctx, raw); !errors.Is(err, ErrTokenRevoked) {
			t.Fatalf("lookup after revoke: %v", err)
		}
		if _, _, err := s.Redeem(ctx, raw, DecisionApprove, ""); !errors.Is(err, ErrTokenRevoked) {
			t.Fatalf("redeem after revoke: %v", err)
		}
	}
	if n, err := s.Revoke(s.DB, c.ID); err != nil || n != 0 {
		t.Fatalf("second revoke = %d, %v", n, err)
	}
}

func TestRedeemRevokesSiblingLinks(t *testing.T) {
	s := NewStore(testutil.NewDB(t), time.Hour)
	ctx := context.Background()
	c := pendingContract(t, s)
	used, _, err := s.Issue(ctx, c.ID, "a@example.com", c.OwnerID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	sibling, _, err := s.Issue(ctx, c.ID, "b@example.com", c.OwnerID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, _, err := s.Redeem(ctx, used, DecisionReject, "dates wrong"); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if _, _, err := s.Lookup(ctx, used); !errors.Is(err, ErrTokenUsed) {
		t.Fatalf("redeemed token: %v", err)
	}
	if _, _, err := s.Lookup(ctx, sibling); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("sibling token: %v", err)
	}
}
