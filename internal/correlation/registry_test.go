package correlation

import "testing"

func TestAllocateResolveRoundTrip(t *testing.T) {
	r := NewRegistry(1)
	key := Key{Kind: KindMarketData, Security: "AAPL@NASDAQ#265598"}

	id := r.Allocate(key)
	got, ok := r.Resolve(id)
	if !ok || got != key {
		t.Fatalf("Resolve(%d) = %v, %v", id, got, ok)
	}
	gotID, ok := r.Lookup(key)
	if !ok || gotID != id {
		t.Fatalf("Lookup = %d, %v", gotID, ok)
	}
}

func TestIDsAreMonotonic(t *testing.T) {
	r := NewRegistry(10)
	a := r.Allocate(Key{Kind: KindMarketData, Security: "A"})
	b := r.Allocate(Key{Kind: KindMarketData, Security: "B"})
	c := r.Allocate(Key{Kind: KindMarketData, Security: "C"})
	if !(a < b && b < c) {
		t.Fatalf("ids not monotonic: %d %d %d", a, b, c)
	}
}

func TestDiscriminatorSeparatesSubscriptions(t *testing.T) {
	r := NewRegistry(1)
	oneMin := r.Allocate(Key{Kind: KindHistory, Security: "ES@GLOBEX#1", Discriminator: "1 min"})
	fiveMin := r.Allocate(Key{Kind: KindHistory, Security: "ES@GLOBEX#1", Discriminator: "5 mins"})
	if oneMin == fiveMin {
		t.Fatalf("expected distinct ids for distinct bar sizes")
	}
}

func TestDoubleAllocatePanics(t *testing.T) {
	r := NewRegistry(1)
	key := Key{Kind: KindDepth, Security: "MSFT@SMART#0"}
	r.Allocate(key)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate allocate")
		}
	}()
	r.Allocate(key)
}

func TestReleaseUnknownKeyPanics(t *testing.T) {
	r := NewRegistry(1)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on release of unknown key")
		}
	}()
	r.Release(Key{Kind: KindDepth, Security: "never-subscribed"})
}

func TestReleaseReturnsIDAndFreesKey(t *testing.T) {
	r := NewRegistry(1)
	key := Key{Kind: KindMarketData, Security: "IBM@NYSE#8314"}
	id := r.Allocate(key)

	if got := r.Release(key); got != id {
		t.Fatalf("Release = %d, want %d", got, id)
	}
	if _, ok := r.Resolve(id); ok {
		t.Fatalf("id still resolvable after release")
	}
	// A fresh allocate after release is legal and yields a new id.
	if again := r.Allocate(key); again == id {
		t.Fatalf("id reused after release")
	}
}

func TestDropIsIdempotent(t *testing.T) {
	r := NewRegistry(1)
	key := Key{Kind: KindHistory, Security: "ACME@NYSE#42", Discriminator: "1 min"}
	id := r.Allocate(key)
	r.Drop(id)
	r.Drop(id)
	if _, ok := r.Lookup(key); ok {
		t.Fatalf("key still live after drop")
	}
}

func TestResetClearsKeysButBurnsIDs(t *testing.T) {
	r := NewRegistry(1)
	key := Key{Kind: KindMarketData, Security: "ACME@NYSE#42"}
	id := r.Allocate(key)

	r.Reset()
	if _, ok := r.Lookup(key); ok {
		t.Fatalf("key still live after reset")
	}
	if _, ok := r.Resolve(id); ok {
		t.Fatalf("id still resolvable after reset")
	}
	// Re-allocating after reset is legal and never reuses a burned id.
	if again := r.Allocate(key); again <= id {
		t.Fatalf("Allocate after reset = %d, want > %d", again, id)
	}
}
