package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hireboard/hireboard/app/models"
)

func seedActiveEntitlement(env *testEnv, customerID uint, planID string, quota int) *models.Entitlement {
	now := time.Now().UTC()
	ent := &models.Entitlement{
		CustomerID:  customerID,
		PlanID:      planID,
		Status:      models.EntitlementStatusActive,
		Quota:       quota,
		LastResetAt: &now,
	}
	env.ents.mu.Lock()
	created := env.ents.add(ent)
	env.ents.mu.Unlock()
	return created
}

func TestTryConsumeWithoutEntitlement(t *testing.T) {
	env := newTestEnv()

	_, err := env.svc.TryConsume(context.Background(), 1, 0)
	if !errors.Is(err, ErrNoActiveEntitlement) {
		t.Fatalf("err = %v, want ErrNoActiveEntitlement", err)
	}
}

func TestTryConsumeUntilExhausted(t *testing.T) {
	env := newTestEnv()
	seedActiveEntitlement(env, 1, "growth", 10)

	for i := 1; i <= 10; i++ {
		res, err := env.svc.TryConsume(context.Background(), 1, 0)
		if err != nil {
			t.Fatalf("consume %d: %v", i, err)
		}
		if res.Used != i || res.Remaining != 10-i {
			t.Errorf("consume %d: used=%d remaining=%d", i, res.Used, res.Remaining)
		}
	}

	_, err := env.svc.TryConsume(context.Background(), 1, 0)
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("11th consume err = %v, want ErrQuotaExceeded", err)
	}
}

func TestTryConsumeUnlimited(t *testing.T) {
	env := newTestEnv()
	seedActiveEntitlement(env, 1, "unlimited", models.QuotaUnlimited)

	for i := 1; i <= 50; i++ {
		res, err := env.svc.TryConsume(context.Background(), 1, 0)
		if err != nil {
			t.Fatalf("consume %d: %v", i, err)
		}
		if res.Remaining != models.QuotaUnlimited {
			t.Fatalf("unlimited plan reported remaining=%d", res.Remaining)
		}
	}
}

func TestTryConsumeConcurrentNeverOversells(t *testing.T) {
	env := newTestEnv()
	seedActiveEntitlement(env, 1, "growth", 10)

	const attempts = 40
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.TryConsume(context.Background(), 1, 0)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrQuotaExceeded):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 10 {
		t.Fatalf("%d consumes succeeded on a quota of 10", succeeded)
	}

	ent, _ := env.ents.GetActiveByCustomer(1)
	if ent.Used != 10 {
		t.Fatalf("used = %d, want exactly 10", ent.Used)
	}
}

func TestTryConsumeAnnotatesJob(t *testing.T) {
	env := newTestEnv()
	ent := seedActiveEntitlement(env, 1, "starter", 3)

	if _, err := env.svc.TryConsume(context.Background(), 1, 99); err != nil {
		t.Fatal(err)
	}
	if env.jobs.annotations[99] != ent.ID {
		t.Errorf("job 99 annotated with %d, want %d", env.jobs.annotations[99], ent.ID)
	}
}

func TestTryConsumeSurvivesAnnotationFailure(t *testing.T) {
	env := newTestEnv()
	seedActiveEntitlement(env, 1, "starter", 3)
	env.jobs.annotateErr = fmt.Errorf("job table unavailable")

	res, err := env.svc.TryConsume(context.Background(), 1, 99)
	if err != nil {
		t.Fatalf("annotation failure must not fail the consume: %v", err)
	}
	if res.Used != 1 {
		t.Errorf("quota charge must stand, used = %d", res.Used)
	}
}

func TestSummaryServedFromCache(t *testing.T) {
	env := newTestEnv()
	seedActiveEntitlement(env, 1, "growth", 10)

	first, err := env.svc.Summary(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if first.Remaining != 10 {
		t.Errorf("remaining = %d, want 10", first.Remaining)
	}

	// Mutate the row behind the cache's back; the summary must still be
	// the cached snapshot.
	if _, _, err := env.ents.ConsumeQuota(first.EntitlementID); err != nil {
		t.Fatal(err)
	}
	second, err := env.svc.Summary(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if second.Used != first.Used {
		t.Error("expected the cached summary to be served")
	}
}

func TestConsumeInvalidatesSummary(t *testing.T) {
	env := newTestEnv()
	seedActiveEntitlement(env, 1, "growth", 10)

	if _, err := env.svc.Summary(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.TryConsume(context.Background(), 1, 0); err != nil {
		t.Fatal(err)
	}

	sum, err := env.svc.Summary(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Used != 1 {
		t.Errorf("summary used = %d after consume, want 1", sum.Used)
	}
}

func TestSummaryWithoutEntitlement(t *testing.T) {
	env := newTestEnv()

	_, err := env.svc.Summary(context.Background(), 5)
	if !errors.Is(err, ErrNoActiveEntitlement) {
		t.Fatalf("err = %v, want ErrNoActiveEntitlement", err)
	}
}
