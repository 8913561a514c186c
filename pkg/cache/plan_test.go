package cache

import (
	"context"
	"testing"
	"time"

	"redistrict/pkg/domain"
)

type planValue struct {
	Labels map[string]string `json:"labels"`
	Sweeps int               `json:"sweeps"`
}

type planParams struct {
	K int `json:"k"`
}

func TestPlanCache_RoundTrip(t *testing.T) {
	mem := NewMemoryCache(nil)
	defer mem.Close()

	pc := NewPlanCache[planValue](mem, "", 0)
	ctx := context.Background()
	g := buildGraph(t, nil)

	key, err := pc.Key(g, planParams{K: 2})
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	if key.GraphHash != GraphHash(g) {
		t.Errorf("unexpected graph hash %s", key.GraphHash)
	}
	if key.Key != DefaultKeyPrefix+key.GraphHash+":"+key.ParamsHash {
		t.Errorf("unexpected key %s", key.Key)
	}

	if _, ok, err := pc.Get(ctx, key); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	value := planValue{Labels: map[string]string{"a": "1", "b": "1", "c": "2"}, Sweeps: 3}
	if err := pc.Set(ctx, key, value, 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := pc.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.Value.Sweeps != 3 || got.Value.Labels["c"] != "2" {
		t.Errorf("unexpected cached value %+v", got.Value)
	}
	if got.GraphHash != key.GraphHash || got.ParamsHash != key.ParamsHash {
		t.Errorf("hashes not stored: %+v", got)
	}
	if got.ComputedAt.IsZero() {
		t.Error("expected ComputedAt to be set")
	}

	_, ttl, _ := mem.GetWithTTL(ctx, key.Key)
	if ttl <= 0 || ttl > time.Hour {
		t.Errorf("expected default ttl of 1h, got %v", ttl)
	}
}

func TestPlanCache_ParamsChangeKey(t *testing.T) {
	mem := NewMemoryCache(nil)
	defer mem.Close()

	pc := NewPlanCache[planValue](mem, "", 0)
	g := buildGraph(t, nil)

	k2, _ := pc.Key(g, planParams{K: 2})
	k3, _ := pc.Key(g, planParams{K: 3})

	if k2.Key == k3.Key {
		t.Error("different params must yield different keys")
	}
	if k2.GraphHash != k3.GraphHash {
		t.Error("graph hash must not depend on params")
	}
}

func TestPlanCache_CorruptEntry(t *testing.T) {
	mem := NewMemoryCache(nil)
	defer mem.Close()

	pc := NewPlanCache[planValue](mem, "", 0)
	ctx := context.Background()

	key, _ := pc.Key(buildGraph(t, nil), planParams{K: 2})
	_ = mem.Set(ctx, key.Key, []byte("{not json"), 0)

	if _, ok, err := pc.Get(ctx, key); err != nil || ok {
		t.Fatalf("expected miss for corrupt entry, got ok=%v err=%v", ok, err)
	}
	if exists, _ := mem.Exists(ctx, key.Key); exists {
		t.Error("expected corrupt entry to be deleted")
	}
}

func TestPlanCache_Invalidate(t *testing.T) {
	mem := NewMemoryCache(nil)
	defer mem.Close()

	pc := NewPlanCache[planValue](mem, "test:", time.Minute)
	ctx := context.Background()

	g1 := buildGraph(t, nil)
	g2 := buildGraph(t, func(u []*domain.GeoUnit, _ []*domain.Edge) { u[0].Population = 11 })

	for _, g := range []*domain.Graph{g1, g2} {
		for _, k := range []int{2, 3} {
			key, _ := pc.Key(g, planParams{K: k})
			if err := pc.Set(ctx, key, planValue{Sweeps: k}, 0); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
		}
	}

	n, err := pc.Invalidate(ctx, g1)
	if err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 entries invalidated, got %d", n)
	}

	key, _ := pc.Key(g2, planParams{K: 2})
	if _, ok, _ := pc.Get(ctx, key); !ok {
		t.Error("entries of other graph must survive")
	}

	n, _ = pc.InvalidateAll(ctx)
	if n != 2 {
		t.Errorf("expected 2 remaining entries invalidated, got %d", n)
	}
	if mem.Len() != 0 {
		t.Errorf("expected empty cache, got %d", mem.Len())
	}
}

func TestPlanCache_Stats(t *testing.T) {
	mem := NewMemoryCache(nil)
	defer mem.Close()

	pc := NewPlanCache[planValue](mem, "", 0)
	ctx := context.Background()
	g := buildGraph(t, nil)

	for k := 1; k <= 2; k++ {
		key, err := pc.Key(g, planParams{K: k})
		if err != nil {
			t.Fatalf("Key() error = %v", err)
		}
		if err := pc.Set(ctx, key, planValue{Sweeps: k}, 0); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}
	if err := mem.Set(ctx, "other:key", []byte("x"), 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	st, err := pc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if st.Entries != 2 {
		t.Errorf("expected 2 plan entries, got %d", st.Entries)
	}
	if st.TotalKeys != 3 {
		t.Errorf("expected 3 keys total, got %d", st.TotalKeys)
	}
	if st.Prefix != DefaultKeyPrefix || st.Backend != BackendMemory {
		t.Errorf("unexpected stats %+v", st)
	}
}
