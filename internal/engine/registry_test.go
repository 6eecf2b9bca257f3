package engine

import (
	"sync"
	"testing"

	"github.com/forgemo/market-game/internal/ledger"
	"github.com/forgemo/market-game/internal/store"
)

func newTestRegistry() *Registry {
	return NewRegistry(ledger.New(), store.NewOrderStore(), store.NewTradeStore(), 0)
}

func TestRegistry_GetOrCreate_SameInstance(t *testing.T) {
	r := newTestRegistry()
	defer r.StopAll()

	a := r.GetOrCreate("gold")
	b := r.GetOrCreate("gold")
	if a != b {
		t.Fatal("expected the same engine instance for the same asset")
	}
	if a == r.GetOrCreate("silver") {
		t.Fatal("expected distinct engines for distinct assets")
	}
}

func TestRegistry_GetOrCreate_Concurrent(t *testing.T) {
	r := newTestRegistry()
	defer r.StopAll()

	const goroutines = 20
	engines := make([]*Engine, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			engines[i] = r.GetOrCreate("gold")
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		if engines[i] != engines[0] {
			t.Fatal("concurrent GetOrCreate returned different instances")
		}
	}
}

func TestRegistry_Get_MissingReturnsNil(t *testing.T) {
	r := newTestRegistry()
	if r.Get("gold") != nil {
		t.Fatal("expected nil for an asset with no engine")
	}
}

func TestRegistry_List_SortedByAsset(t *testing.T) {
	r := newTestRegistry()
	defer r.StopAll()

	r.GetOrCreate("silver")
	r.GetOrCreate("gold")
	r.GetOrCreate("copper")

	engines := r.List()
	if len(engines) != 3 {
		t.Fatalf("expected 3 engines, got %d", len(engines))
	}
	want := []string{"copper", "gold", "silver"}
	for i, e := range engines {
		if e.AssetID() != want[i] {
			t.Errorf("expected %s at index %d, got %s", want[i], i, e.AssetID())
		}
	}
}
