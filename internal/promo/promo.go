// Package promo applies and removes promo codes on a session. Validation is
// server-authoritative: the promo backend decides validity and the discount
// amount, and this service only records the accepted outcome. A backend
// outage rejects the code without touching the session.
package promo

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-segar/internal/obs"
	"github.com/noah-isme/backend-segar/internal/session"
)

// Rejection sentinels, matched against the backend's reason codes.
var (
	ErrInvalid        = errors.New("promo code is not valid")
	ErrExpired        = errors.New("promo code has expired")
	ErrMinOrderNotMet = errors.New("cart does not meet the promo minimum order")
	ErrAlreadyApplied = errors.New("a promo code is already applied")
	ErrUnavailable    = errors.New("promo service unavailable")
)

// Validation is the backend's verdict on a code for a specific cart.
type Validation struct {
	Valid          bool   `json:"valid"`
	Reason         string `json:"reason"`
	DiscountAmount int64  `json:"discountAmount"`
}

// Backend is the authoritative promo collaborator.
type Backend interface {
	Validate(ctx context.Context, code, sessionID string, subtotal int64, productIDs []string) (Validation, error)
	Release(ctx context.Context, code, sessionID string) error
}

// Service applies backend verdicts to sessions.
type Service struct {
	Backend Backend
	Log     zerolog.Logger
}

// Apply validates a code against the current cart and records it on the
// session. Exactly one code may be active; applying over an existing one is
// rejected locally without a backend round trip.
func (s *Service) Apply(ctx context.Context, sess *session.Session, code string, subtotal int64) (session.AppliedPromo, error) {
	if s == nil || s.Backend == nil {
		return session.AppliedPromo{}, errors.New("promo service not configured")
	}
	if code == "" {
		countApply("invalid")
		return session.AppliedPromo{}, ErrInvalid
	}
	if sess.Promo != nil {
		countApply("already_applied")
		return session.AppliedPromo{}, fmt.Errorf("code %s is active: %w", sess.Promo.Code, ErrAlreadyApplied)
	}

	verdict, err := s.Backend.Validate(ctx, code, sess.ID, subtotal, sess.ProductIDs())
	if err != nil {
		countApply("unavailable")
		s.Log.Warn().Err(err).Str("code", code).Msg("promo backend unreachable, rejecting code")
		return session.AppliedPromo{}, fmt.Errorf("validate %s: %w", code, ErrUnavailable)
	}
	if !verdict.Valid {
		countApply(rejectionLabel(verdict.Reason))
		return session.AppliedPromo{}, rejectionError(verdict.Reason)
	}

	applied := session.AppliedPromo{Code: code, DiscountAmount: verdict.DiscountAmount}
	sess.Promo = &applied
	sess.Bump()
	countApply("ok")
	return applied, nil
}

// Remove clears the active code. The backend release is best-effort: the
// session always returns to its pre-promo pricing even when the release
// call fails.
func (s *Service) Remove(ctx context.Context, sess *session.Session) {
	if sess.Promo == nil {
		return
	}
	code := sess.Promo.Code
	if s != nil && s.Backend != nil {
		if err := s.Backend.Release(ctx, code, sess.ID); err != nil {
			s.Log.Warn().Err(err).Str("code", code).Msg("promo release failed, clearing locally anyway")
		}
	}
	sess.Promo = nil
	sess.Bump()
}

func rejectionError(reason string) error {
	switch reason {
	case "expired":
		return ErrExpired
	case "min_order_not_met":
		return ErrMinOrderNotMet
	default:
		return ErrInvalid
	}
}

func rejectionLabel(reason string) string {
	switch reason {
	case "expired", "min_order_not_met":
		return reason
	default:
		return "invalid"
	}
}

func countApply(result string) {
	if obs.PromoApplyTotal != nil {
		obs.PromoApplyTotal.WithLabelValues(result).Inc()
	}
}
