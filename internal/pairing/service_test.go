package pairing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nextlevelbuilder/clawgate/internal/store"
	"github.com/nextlevelbuilder/clawgate/internal/store/file"
)

func newTestService(t *testing.T, ttl, debounce time.Duration) *Service {
	t.Helper()
	st, err := file.NewPairingStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewPairingStore: %v", err)
	}
	return New(st, ttl, debounce)
}

func TestUpsertIdempotent(t *testing.T) {
	svc := newTestService(t, 0, 0)
	ctx := context.Background()

	code, created, err := svc.Upsert(ctx, "telegram", "12345", map[string]string{"name": "Alice"})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if !created {
		t.Error("first Upsert should create")
	}
	if len(code) != codeLength {
		t.Errorf("code %q has length %d, want %d", code, len(code), codeLength)
	}
	for _, r := range code {
		if !strings.ContainsRune(codeAlphabet, r) {
			t.Errorf("code %q contains %q outside the alphabet", code, r)
		}
	}

	again, created, err := svc.Upsert(ctx, "telegram", "12345", nil)
	if err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	if created {
		t.Error("second Upsert should not create")
	}
	if again != code {
		t.Errorf("second Upsert returned %q, want the original code %q", again, code)
	}

	// A different subject gets its own request.
	other, created, err := svc.Upsert(ctx, "telegram", "67890", nil)
	if err != nil {
		t.Fatalf("Upsert other subject: %v", err)
	}
	if !created || other == code {
		t.Errorf("other subject: created=%v code=%q, want a fresh code", created, other)
	}
}

func TestUpsertConcurrentFirstContact(t *testing.T) {
	svc := newTestService(t, 0, 0)
	ctx := context.Background()

	// Burst delivery: several copies of a sender's first message race
	// through Upsert. Exactly one may create, and every caller must see
	// the same code.
	const workers = 8
	const subjects = 50

	var wg sync.WaitGroup
	createdBy := make([][]string, workers)
	codesBy := make([]map[string]string, workers)
	for w := 0; w < workers; w++ {
		codesBy[w] = make(map[string]string)
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < subjects; i++ {
				subject := fmt.Sprintf("u%d", i)
				code, created, err := svc.Upsert(ctx, "telegram", subject, nil)
				if err != nil {
					t.Errorf("Upsert(%s): %v", subject, err)
					return
				}
				if created {
					createdBy[w] = append(createdBy[w], subject)
				}
				codesBy[w][subject] = code
			}
		}(w)
	}
	wg.Wait()

	createdCount := make(map[string]int)
	for w := 0; w < workers; w++ {
		for _, subject := range createdBy[w] {
			createdCount[subject]++
		}
	}
	for i := 0; i < subjects; i++ {
		subject := fmt.Sprintf("u%d", i)
		if createdCount[subject] != 1 {
			t.Errorf("subject %s: created=true %d times, want 1", subject, createdCount[subject])
		}
		code := codesBy[0][subject]
		for w := 1; w < workers; w++ {
			if codesBy[w][subject] != code {
				t.Errorf("subject %s: worker %d saw code %q, worker 0 saw %q", subject, w, codesBy[w][subject], code)
			}
		}
	}

	pending, err := svc.List(ctx, "telegram")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(pending) != subjects {
		t.Errorf("stored %d requests, want %d", len(pending), subjects)
	}
}

func TestCreateRequestRejectsDuplicateSubject(t *testing.T) {
	st, err := file.NewPairingStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewPairingStore: %v", err)
	}
	ctx := context.Background()

	first := store.PairingRequest{ID: "a", Channel: "telegram", Subject: "12345", Code: "AAAA2222", CreatedAt: time.Now()}
	if err := st.CreateRequest(ctx, first); err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	dup := store.PairingRequest{ID: "b", Channel: "telegram", Subject: "12345", Code: "BBBB3333", CreatedAt: time.Now()}
	if err := st.CreateRequest(ctx, dup); !errors.Is(err, store.ErrRequestExists) {
		t.Errorf("duplicate CreateRequest err = %v, want ErrRequestExists", err)
	}

	reqs, _ := st.ListRequests(ctx, "telegram")
	if len(reqs) != 1 || reqs[0].Code != "AAAA2222" {
		t.Errorf("stored requests = %+v, want only the first", reqs)
	}
}

func TestUpsertReplacesExpired(t *testing.T) {
	svc := newTestService(t, time.Millisecond, 0)
	ctx := context.Background()

	code, _, err := svc.Upsert(ctx, "telegram", "12345", nil)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	fresh, created, err := svc.Upsert(ctx, "telegram", "12345", nil)
	if err != nil {
		t.Fatalf("Upsert after expiry: %v", err)
	}
	if !created {
		t.Error("expired request should be replaced with created=true")
	}
	if fresh == code {
		t.Error("replacement should carry a new code")
	}
}

func TestApprove(t *testing.T) {
	svc := newTestService(t, 0, 0)
	ctx := context.Background()

	code, _, err := svc.Upsert(ctx, "telegram", "12345", map[string]string{"name": "Alice"})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	req, err := svc.Approve(ctx, code)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if req.Channel != "telegram" || req.Subject != "12345" {
		t.Errorf("approved request = %+v", req)
	}

	allowed, err := svc.AllowFrom(ctx, "telegram")
	if err != nil {
		t.Fatalf("AllowFrom: %v", err)
	}
	if len(allowed) != 1 || allowed[0] != "12345" {
		t.Errorf("AllowFrom = %v, want [12345]", allowed)
	}

	// The request is consumed; the pending list is empty and the code dead.
	pending, err := svc.List(ctx, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after approve = %v, want none", pending)
	}
	if _, err := svc.Approve(ctx, code); err == nil {
		t.Error("re-approving a consumed code should fail")
	}
}

func TestApproveUnknownCode(t *testing.T) {
	svc := newTestService(t, 0, 0)
	if _, err := svc.Approve(context.Background(), "NOPE1234"); err == nil {
		t.Error("unknown code should fail")
	}
}

func TestApproveExpiredCode(t *testing.T) {
	svc := newTestService(t, time.Millisecond, 0)
	ctx := context.Background()

	code, _, err := svc.Upsert(ctx, "telegram", "12345", nil)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := svc.Approve(ctx, code); err == nil {
		t.Error("expired code should fail")
	}
	pending, _ := svc.List(ctx, "")
	if len(pending) != 0 {
		t.Errorf("expired request should be removed on failed approve, got %v", pending)
	}
}

func TestRevoke(t *testing.T) {
	svc := newTestService(t, 0, 0)
	ctx := context.Background()

	code, _, _ := svc.Upsert(ctx, "telegram", "12345", nil)
	if _, err := svc.Approve(ctx, code); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if err := svc.Revoke(ctx, "telegram", "12345"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	allowed, _ := svc.AllowFrom(ctx, "telegram")
	if len(allowed) != 0 {
		t.Errorf("AllowFrom after revoke = %v, want empty", allowed)
	}
}

func TestSweepExpired(t *testing.T) {
	svc := newTestService(t, time.Millisecond, 0)
	ctx := context.Background()

	svc.Upsert(ctx, "telegram", "111", nil)
	svc.Upsert(ctx, "telegram", "222", nil)
	time.Sleep(5 * time.Millisecond)

	n, err := svc.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if n != 2 {
		t.Errorf("swept %d requests, want 2", n)
	}
	pending, _ := svc.List(ctx, "telegram")
	if len(pending) != 0 {
		t.Errorf("pending after sweep = %v, want none", pending)
	}
}

func TestShouldNotifyDebounce(t *testing.T) {
	svc := newTestService(t, 0, time.Hour)

	if !svc.ShouldNotify("telegram", "12345") {
		t.Error("first notice should pass")
	}
	if svc.ShouldNotify("telegram", "12345") {
		t.Error("second notice inside the window should be suppressed")
	}
	if !svc.ShouldNotify("telegram", "67890") {
		t.Error("debounce is per subject")
	}
	if !svc.ShouldNotify("discord", "12345") {
		t.Error("debounce is per channel")
	}
}

func TestShouldNotifyDisabled(t *testing.T) {
	svc := newTestService(t, 0, 0)
	if !svc.ShouldNotify("telegram", "12345") || !svc.ShouldNotify("telegram", "12345") {
		t.Error("zero debounce should never suppress")
	}
}

func TestStatePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	st, err := file.NewPairingStore(dir)
	if err != nil {
		t.Fatalf("NewPairingStore: %v", err)
	}
	svc := New(st, 0, 0)
	ctx := context.Background()

	code, _, err := svc.Upsert(ctx, "telegram", "12345", nil)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	reopened, err := file.NewPairingStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	svc2 := New(reopened, 0, 0)
	if _, err := svc2.Approve(ctx, code); err != nil {
		t.Fatalf("Approve after reopen: %v", err)
	}
	allowed, _ := svc2.AllowFrom(ctx, "telegram")
	if len(allowed) != 1 || allowed[0] != "12345" {
		t.Errorf("AllowFrom after reopen = %v, want [12345]", allowed)
	}
}

var _ store.PairingStore = (*file.PairingStore)(nil)
