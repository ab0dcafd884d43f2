package nfc

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"
)

// ============================================================================
// Property-Based Tests for Registry Invariants
// ============================================================================

// TestProperty_FanOutOrderAndIdentity checks that every registration is
// called exactly once per event, in registration order, with the same pointer.
func TestProperty_FanOutOrderAndIdentity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		registry, _, events := newTestRegistry()
		rec := &recorder{}

		n := rapid.IntRange(0, 20).Draw(t, "n")
		want := make([]string, 0, n)
		for i := 0; i < n; i++ {
			name := fmt.Sprintf("l%d", i)
			registry.AddListener(rec.listener(name))
			want = append(want, name)
		}

		payload := tagDiscovery(rapid.StringMatching(`[0-9A-F]{8}`).Draw(t, "uid"))
		events.Fire(EventDiscovered, payload)

		got := rec.names()
		if len(got) != len(want) {
			t.Fatalf("expected %d calls, got %d", len(want), len(got))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("call %d: expected %s, got %s", i, want[i], got[i])
			}
			if rec.calls[i].d != payload {
				t.Fatalf("call %d: payload identity not preserved", i)
			}
		}
	})
}

// TestProperty_InitializationIsIdempotent checks the provider is contacted
// exactly once however many listeners are added.
func TestProperty_InitializationIsIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		registry, provider, events := newTestRegistry()

		n := rapid.IntRange(1, 30).Draw(t, "n")
		for i := 0; i < n; i++ {
			if rapid.Bool().Draw(t, fmt.Sprintf("explicit-%d", i)) {
				registry.EnsureInitialized()
			}
			registry.AddListener(func(*Discovery) {})
		}

		if c := provider.CallCount("GetStartUpNfcData"); c != 1 {
			t.Fatalf("startup query issued %d times", c)
		}
		if c := events.CallCount(EventDiscovered); c != 1 {
			t.Fatalf("event subscription issued %d times", c)
		}
	})
}

// TestProperty_LIFOModel checks add/remove sequences against a slice model.
func TestProperty_LIFOModel(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		registry, _, events := newTestRegistry()
		rec := &recorder{}
		var model []string

		ops := rapid.SliceOfN(rapid.Bool(), 0, 40).Draw(t, "ops")
		for i, add := range ops {
			if add {
				name := fmt.Sprintf("l%d", i)
				registry.AddListener(rec.listener(name))
				model = append(model, name)
			} else {
				registry.RemoveLastListener()
				if len(model) > 0 {
					model = model[:len(model)-1]
				}
			}
		}

		if registry.Len() != len(model) {
			t.Fatalf("expected %d listeners, got %d", len(model), registry.Len())
		}

		events.Fire(EventDiscovered, tagDiscovery("01"))
		got := rec.names()
		if len(got) != len(model) {
			t.Fatalf("expected calls %v, got %v", model, got)
		}
		for i := range model {
			if got[i] != model[i] {
				t.Fatalf("expected calls %v, got %v", model, got)
			}
		}
	})
}

// TestProperty_DuplicatesAreNotCollapsed checks a listener registered k
// times is called k times per event.
func TestProperty_DuplicatesAreNotCollapsed(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		registry, _, events := newTestRegistry()
		count := 0
		l := func(*Discovery) { count++ }

		k := rapid.IntRange(1, 10).Draw(t, "k")
		for i := 0; i < k; i++ {
			registry.AddListener(l)
		}
		events.Fire(EventDiscovered, tagDiscovery("01"))

		if count != k {
			t.Fatalf("expected %d calls, got %d", k, count)
		}
	})
}
