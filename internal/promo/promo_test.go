package promo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-segar/internal/session"
)

type stubBackend struct {
	verdict      Validation
	validateErr  error
	releaseErr   error
	releaseCalls int
}

func (s *stubBackend) Validate(context.Context, string, string, int64, []string) (Validation, error) {
	if s.validateErr != nil {
		return Validation{}, s.validateErr
	}
	return s.verdict, nil
}

func (s *stubBackend) Release(context.Context, string, string) error {
	s.releaseCalls++
	return s.releaseErr
}

func newService(backend Backend) *Service {
	return &Service{Backend: backend, Log: zerolog.Nop()}
}

func newSession() *session.Session {
	return session.New("", time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
}

func TestApplyRecordsServerDiscount(t *testing.T) {
	backend := &stubBackend{verdict: Validation{Valid: true, DiscountAmount: 5000}}
	sess := newSession()

	applied, err := newService(backend).Apply(context.Background(), sess, "SAVE10", 50000)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if applied.Code != "SAVE10" || applied.DiscountAmount != 5000 {
		t.Fatalf("unexpected applied promo %+v", applied)
	}
	if sess.Promo == nil || sess.Promo.DiscountAmount != 5000 {
		t.Fatalf("session must carry the promo, got %+v", sess.Promo)
	}
}

func TestApplySecondCodeRejectedLocally(t *testing.T) {
	backend := &stubBackend{verdict: Validation{Valid: true, DiscountAmount: 5000}}
	svc := newService(backend)
	sess := newSession()

	if _, err := svc.Apply(context.Background(), sess, "SAVE10", 50000); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	_, err := svc.Apply(context.Background(), sess, "OTHER", 50000)
	if !errors.Is(err, ErrAlreadyApplied) {
		t.Fatalf("expected ErrAlreadyApplied, got %v", err)
	}
}

func TestApplyMapsBackendRejections(t *testing.T) {
	cases := []struct {
		reason string
		want   error
	}{
		{"expired", ErrExpired},
		{"min_order_not_met", ErrMinOrderNotMet},
		{"unknown_code", ErrInvalid},
	}
	for _, tc := range cases {
		backend := &stubBackend{verdict: Validation{Valid: false, Reason: tc.reason}}
		sess := newSession()
		_, err := newService(backend).Apply(context.Background(), sess, "X", 1000)
		if !errors.Is(err, tc.want) {
			t.Fatalf("reason %q: expected %v, got %v", tc.reason, tc.want, err)
		}
		if sess.Promo != nil {
			t.Fatalf("reason %q: rejection must not mutate the session", tc.reason)
		}
	}
}

func TestApplyBackendOutageRejectsWithoutMutation(t *testing.T) {
	backend := &stubBackend{validateErr: errors.New("connection refused")}
	sess := newSession()
	rev := sess.Revision

	_, err := newService(backend).Apply(context.Background(), sess, "SAVE10", 50000)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if sess.Promo != nil || sess.Revision != rev {
		t.Fatal("an outage must leave the session untouched")
	}
}

func TestRemoveClearsEvenWhenReleaseFails(t *testing.T) {
	backend := &stubBackend{verdict: Validation{Valid: true, DiscountAmount: 1000}, releaseErr: errors.New("timeout")}
	svc := newService(backend)
	sess := newSession()

	if _, err := svc.Apply(context.Background(), sess, "SAVE10", 50000); err != nil {
		t.Fatalf("apply: %v", err)
	}
	svc.Remove(context.Background(), sess)
	if sess.Promo != nil {
		t.Fatal("remove must clear the promo even when the release call fails")
	}
	if backend.releaseCalls != 1 {
		t.Fatalf("expected one release attempt, got %d", backend.releaseCalls)
	}
}

func TestRemoveWithoutPromoIsNoOp(t *testing.T) {
	backend := &stubBackend{}
	sess := newSession()
	rev := sess.Revision

	newService(backend).Remove(context.Background(), sess)
	if backend.releaseCalls != 0 || sess.Revision != rev {
		t.Fatal("removing a missing promo must be a no-op")
	}
}
