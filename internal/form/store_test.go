package form

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/shaheenweb/portal/internal/observability"
	"github.com/shaheenweb/portal/model"
)

func TestSessionStore_CreateAndGet(t *testing.T) {
	store := NewSessionStore(time.Minute, nil)
	wiz := NewWizard(testSchema())

	sess := store.Create("doc-1", wiz, &FocusRecorder{})
	if sess.ID == "" {
		t.Fatal("session has no id")
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}

	got, err := store.Get(sess.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.FormID != "doc-1" {
		t.Errorf("FormID = %q", got.FormID)
	}
	if got.Wizard != wiz {
		t.Error("Get returned a different wizard")
	}
}

func TestSessionStore_GetUnknown(t *testing.T) {
	store := NewSessionStore(time.Minute, nil)

	_, err := store.Get("nope")
	envErr, ok := err.(*model.ErrorEnvelope)
	if !ok {
		t.Fatalf("error type = %T", err)
	}
	if envErr.Code != model.ErrSessionNotFound {
		t.Errorf("code = %s, want %s", envErr.Code, model.ErrSessionNotFound)
	}
}

func TestSessionStore_GetExpired(t *testing.T) {
	store := NewSessionStore(time.Minute, nil)
	sess := store.Create("doc-1", NewWizard(testSchema()), nil)

	sess.ExpiresAt = time.Now().UTC().Add(-time.Second)

	if _, err := store.Get(sess.ID); err == nil {
		t.Fatal("expected SESSION_NOT_FOUND for expired session")
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d, want expired session evicted", store.Len())
	}
}

func TestSessionStore_GetRefreshesExpiry(t *testing.T) {
	store := NewSessionStore(time.Minute, nil)
	sess := store.Create("doc-1", NewWizard(testSchema()), nil)
	before := sess.ExpiresAt

	time.Sleep(5 * time.Millisecond)
	got, err := store.Get(sess.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !got.ExpiresAt.After(before) {
		t.Error("expiry not refreshed on access")
	}
}

func TestSessionStore_Delete(t *testing.T) {
	store := NewSessionStore(time.Minute, nil)
	sess := store.Create("doc-1", NewWizard(testSchema()), nil)

	store.Delete(sess.ID)
	if store.Len() != 0 {
		t.Errorf("Len() = %d after delete", store.Len())
	}
}

func TestSessionStore_Sweep(t *testing.T) {
	store := NewSessionStore(time.Minute, nil)
	live := store.Create("doc-1", NewWizard(testSchema()), nil)
	dead := store.Create("doc-2", NewWizard(testSchema()), nil)
	dead.ExpiresAt = time.Now().UTC().Add(-time.Second)

	store.sweep()

	if store.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", store.Len())
	}
	if _, err := store.Get(live.ID); err != nil {
		t.Errorf("live session swept: %v", err)
	}
}

func TestSessionStore_SessionCountMetrics(t *testing.T) {
	metrics := observability.InitMetrics(prometheus.NewRegistry())
	store := NewSessionStore(time.Minute, metrics)

	deleted := store.Create("doc-1", NewWizard(testSchema()), nil)
	expired := store.Create("doc-2", NewWizard(testSchema()), nil)

	if got := testutil.ToFloat64(metrics.SessionsStartedTotal); got != 2 {
		t.Errorf("sessions started = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.SessionsActive); got != 2 {
		t.Errorf("active gauge = %v, want 2", got)
	}

	store.Delete(deleted.ID)
	store.Delete(deleted.ID) // second delete must not double-decrement

	expired.ExpiresAt = time.Now().UTC().Add(-time.Second)
	store.sweep()

	if got := testutil.ToFloat64(metrics.SessionsExpiredTotal); got != 1 {
		t.Errorf("sessions expired = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.SessionsActive); got != 0 {
		t.Errorf("active gauge = %v, want 0 once all sessions are gone", got)
	}
}

func TestSessionStore_ExpiredGetCountsAsExpiry(t *testing.T) {
	metrics := observability.InitMetrics(prometheus.NewRegistry())
	store := NewSessionStore(time.Minute, metrics)

	sess := store.Create("doc-1", NewWizard(testSchema()), nil)
	sess.ExpiresAt = time.Now().UTC().Add(-time.Second)

	if _, err := store.Get(sess.ID); err == nil {
		t.Fatal("expected expired session to be rejected")
	}
	if got := testutil.ToFloat64(metrics.SessionsExpiredTotal); got != 1 {
		t.Errorf("sessions expired = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.SessionsActive); got != 0 {
		t.Errorf("active gauge = %v, want 0", got)
	}
}
