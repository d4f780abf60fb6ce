package bridge

import (
	"errors"
	"testing"
	"time"

	"wordbridge/pkg/router"
)

func TestCallbackRegisterAndComplete(t *testing.T) {
	table := NewCallbackTable(0, 0)

	var delivered []router.Response
	var deliveredIDs []string
	id, err := table.Register(func(id string, resp router.Response) {
		deliveredIDs = append(deliveredIDs, id)
		delivered = append(delivered, resp)
	})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if id == "" {
		t.Fatal("Register returned an empty id")
	}

	if !table.Complete(id, router.OK("done")) {
		t.Fatal("Complete missed a live entry")
	}
	if len(delivered) != 1 || delivered[0].Data != "done" {
		t.Fatalf("delivered = %+v", delivered)
	}
	if len(deliveredIDs) != 1 || deliveredIDs[0] != id {
		t.Fatalf("delivered ids = %v, want [%s]", deliveredIDs, id)
	}

	// An entry is single-use.
	if table.Complete(id, router.OK("again")) {
		t.Fatal("Complete fired a consumed entry")
	}
	if table.Len() != 0 {
		t.Fatalf("Len = %d, want 0", table.Len())
	}
}

func TestCallbackIDsAreUnique(t *testing.T) {
	table := NewCallbackTable(0, 0)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id, err := table.Register(func(string, router.Response) {})
		if err != nil {
			t.Fatalf("Register error: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate correlation id %q", id)
		}
		seen[id] = true
	}
}

func TestCallbackTableBounded(t *testing.T) {
	table := NewCallbackTable(2, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := table.Register(func(string, router.Response) {}); err != nil {
			t.Fatalf("Register %d error: %v", i, err)
		}
	}

	if _, err := table.Register(func(string, router.Response) {}); !errors.Is(err, ErrTooManyPending) {
		t.Fatalf("Register error = %v, want ErrTooManyPending", err)
	}
}

func TestCallbackExpiry(t *testing.T) {
	table := NewCallbackTable(2, time.Second)

	current := time.Unix(5000, 0)
	table.now = func() time.Time { return current }

	fired := false
	id, err := table.Register(func(string, router.Response) { fired = true })
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}

	current = current.Add(2 * time.Second)

	// Expired entries neither fire nor count against the bound.
	if table.Complete(id, router.OK(nil)) {
		t.Fatal("Complete fired an expired entry")
	}
	if fired {
		t.Fatal("expired callback delivered")
	}
	if table.Len() != 0 {
		t.Fatalf("Len = %d, want 0 after expiry", table.Len())
	}

	for i := 0; i < 2; i++ {
		if _, err := table.Register(func(string, router.Response) {}); err != nil {
			t.Fatalf("Register after expiry error: %v", err)
		}
	}
}
