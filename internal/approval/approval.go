// Package approval issues single-use links that let an external party
// approve or reject a contract without an account.
package approval

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"contractdesk/internal/models"

	"gorm.io/gorm"
)

const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
	DecisionRevoked = "revoked"
)

var (
	ErrTokenNotFound   = errors.New("approval token not found")
	ErrTokenUsed       = errors.New("approval token already used")
	ErrTokenRevoked    = errors.New("approval token revoked")
	ErrTokenExpired    = errors.New("approval token expired")
	ErrInvalidDecision = errors.New("decision must be approve or reject")
	ErrNotPending      = errors.New("contract is not awaiting approval")
)

// Generate returns a random URL-safe token and the hash to persist.
func Generate() (raw, hash string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("token entropy: %w", err)
	}
	raw = base64.RawURLEncoding.EncodeToString(b)
	return raw, Hash(raw), nil
}

func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

type Store struct {
	DB  *gorm.DB
	TTL time.Duration
	now func() time.Time
}

func NewStore(db *gorm.DB, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &Store{DB: db, TTL: ttl, now: time.Now}
}

// Issue creates a token for the contract. The raw token is returned once and
// never stored.
func (s *Store) Issue(ctx context.Context, contractID, partyEmail, createdBy string) (string, models.ApprovalToken, error) {
	raw, hash, err := Generate()
	if err != nil {
		return "", models.ApprovalToken{}, err
	}
	now := s.now()
	tok := models.ApprovalToken{
		ContractID: contractID,
		TokenHash:  hash,
		PartyEmail: strings.ToLower(strings.TrimSpace(partyEmail)),
		CreatedBy:  createdBy,
		ExpiresAt:  now.Add(s.TTL),
		CreatedAt:  now,
	}
	if err := s.DB.WithContext(ctx).Create(&tok).Error; err != nil {
		return "", models.ApprovalToken{}, fmt.Errorf("store approval token: %w", err)
	}
	return raw, tok, nil
}

// Lookup resolves a raw token to its row and contract, enforcing single use
// and expiry.
func (s *Store) Lookup(ctx context.Context, raw string) (models.ApprovalToken, models.Contract, error) {
	var tok models.ApprovalToken
	if raw == "" {
		return tok, models.Contract{}, ErrTokenNotFound
	}
	if err := s.DB.WithContext(ctx).First(&tok, "token_hash = ?", Hash(raw)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tok, models.Contract{}, ErrTokenNotFound
		}
		return tok, models.Contract{}, err
	}
	if tok.UsedAt != nil {
		if tok.Decision == DecisionRevoked {
			return tok, models.Contract{}, ErrTokenRevoked
		}
		return tok, models.Contract{}, ErrTokenUsed
	}
	if !s.now().Before(tok.ExpiresAt) {
		return tok, models.Contract{}, ErrTokenExpired
	}
	var c models.Contract
	if err := s.DB.WithContext(ctx).First(&c, "id = ?", tok.ContractID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tok, c, ErrTokenNotFound
		}
		return tok, c, err
	}
	return tok, c, nil
}

// Redeem records the decision and moves the contract out of pending. The
// token is claimed with a conditional update so concurrent redemptions
// cannot both succeed.
func (s *Store) Redeem(ctx context.Context, raw, decision, comment string) (models.ApprovalToken, models.Contract, error) {
	status := ""
	switch decision {
	case DecisionApprove:
		status = models.StatusApproved
	case DecisionReject:
		status = models.StatusRejected
	default:
		return models.ApprovalToken{}, models.Contract{}, ErrInvalidDecision
	}
	tok, c, err := s.Lookup(ctx, raw)
	if err != nil {
		return tok, c, err
	}
	if c.Status != models.StatusPending {
		return tok, c, ErrNotPending
	}
	now := s.now()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ApprovalToken{}).
			Where("id = ? AND used_at IS NULL", tok.ID).
			Updates(map[string]any{"used_at": now, "decision": decision, "comment": comment})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrTokenUsed
		}
		updates := map[string]any{"status": status, "reviewed_at": now, "updated_at": now}
		if status == models.StatusRejected {
			updates["rejection_reason"] = comment
		}
		res = tx.Model(&models.Contract{}).
			Where("id = ? AND status = ?", c.ID, models.StatusPending).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotPending
		}
		_, err := s.Revoke(tx, c.ID)
		return err
	})
	if err != nil {
		return tok, c, err
	}
	tok.UsedAt, tok.Decision, tok.Comment = &now, decision, comment
	c.Status, c.ReviewedAt = status, &now
	if status == models.StatusRejected {
		c.RejectionReason = comment
	}
	return tok, c, nil
}

// Revoke closes every unused token of the contract so a link only ever
// decides the revision it was issued for. db may be an open transaction.
func (s *Store) Revoke(db *gorm.DB, contractID string) (int64, error) {
	res := db.Model(&models.ApprovalToken{}).
		Where("contract_id = ? AND used_at IS NULL", contractID).
		Updates(map[string]any{"used_at": s.now(), "decision": DecisionRevoked})
	if res.Error != nil {
		return 0, fmt.Errorf("revoke approval tokens: %w", res.Error)
	}
	return res.RowsAffected, nil
}
