package waitlist

import (
	"context"
	"errors"
	"testing"
	"time"

	"maison-commerce/internal/clock"
	"maison-commerce/internal/domain"
)

type stubDropRepo struct {
	drop      *domain.LimitedDrop
	err       error
	lastEmail string
	entry     *domain.WaitlistEntry
}

func (s *stubDropRepo) GetByCollectionKey(_ context.Context, _ string) (*domain.LimitedDrop, error) {
	return s.drop, s.err
}

func (s *stubDropRepo) AddWaitlistEntry(_ context.Context, dropID, email, locale string) (*domain.WaitlistEntry, error) {
	s.lastEmail = email
	if s.entry != nil {
		return s.entry, nil
	}
	return &domain.WaitlistEntry{ID: "w1", DropID: dropID, Email: email, Locale: locale}, nil
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestStatusReportsWindow(t *testing.T) {
	ends := testNow.Add(time.Hour)
	repo := &stubDropRepo{drop: &domain.LimitedDrop{ID: "d1", StartsAt: testNow.Add(-time.Hour), EndsAt: &ends, WaitlistOpen: true}}
	svc := New(repo, clock.NewFixed(testNow))

	status, err := svc.Status(context.Background(), "capsule-noir")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.Active {
		t.Fatal("expected drop active inside window")
	}
}

func TestStatusUnknownCollection(t *testing.T) {
	svc := New(&stubDropRepo{err: domain.ErrNotFound}, clock.NewFixed(testNow))
	_, err := svc.Status(context.Background(), "nope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestJoinNormalizesEmail(t *testing.T) {
	repo := &stubDropRepo{drop: &domain.LimitedDrop{ID: "d1", StartsAt: testNow, WaitlistOpen: true}}
	svc := New(repo, clock.NewFixed(testNow))

	entry, err := svc.Join(context.Background(), "capsule-noir", "  Claire@Example.FR ", "fr")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.lastEmail != "claire@example.fr" {
		t.Fatalf("expected lowercased trimmed email, got %q", repo.lastEmail)
	}
	if entry.Email != "claire@example.fr" {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestJoinRejectsBadEmail(t *testing.T) {
	svc := New(&stubDropRepo{drop: &domain.LimitedDrop{ID: "d1", WaitlistOpen: true}}, clock.NewFixed(testNow))
	if _, err := svc.Join(context.Background(), "capsule-noir", "not-an-email", "fr"); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestJoinClosedWaitlist(t *testing.T) {
	svc := New(&stubDropRepo{drop: &domain.LimitedDrop{ID: "d1", WaitlistOpen: false}}, clock.NewFixed(testNow))
	_, err := svc.Join(context.Background(), "capsule-noir", "a@b.fr", "fr")
	if !errors.Is(err, domain.ErrWaitlistClosed) {
		t.Fatalf("expected ErrWaitlistClosed, got %v", err)
	}
}
