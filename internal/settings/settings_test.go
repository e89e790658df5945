package settings

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestDefaultsAreValid(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestSetUnknownAndReadOnly(t *testing.T) {
	st, err := NewStore(Defaults())
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Set("NOPE", 1.0); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
	if err := st.Set("TOTAL_TRADES_OPEN", 3.0); !errors.Is(err, ErrReadOnlyKey) {
		t.Fatalf("expected ErrReadOnlyKey, got %v", err)
	}
	if st.Snapshot().TotalTradesOpen != 0 {
		t.Fatalf("read-only key changed")
	}
}

func TestSetCoercesJSONValues(t *testing.T) {
	st, _ := NewStore(Defaults())
	if err := st.Set("LEVERAGE", 20.0); err != nil {
		t.Fatal(err)
	}
	if err := st.Set("DRY_RUN", "true"); err != nil {
		t.Fatal(err)
	}
	if err := st.Set("sortby", "PRICE"); err != nil {
		t.Fatal(err)
	}
	s := st.Snapshot()
	if s.Leverage != 20 || !s.DryRun || s.SortBy != SortByPrice {
		t.Fatalf("unexpected settings: %+v", s)
	}
}

func TestSetRejectsInvalidAndKeepsPrevious(t *testing.T) {
	st, _ := NewStore(Defaults())
	cases := []struct {
		key string
		val any
	}{
		{"LEVERAGE", 12.5},
		{"LEVERAGE", 0.0},
		{"TYPE", "ISOLATED"},
		{"SORTBY", "marketcap"},
		{"MAX_PORTFOLIO_RISK", 1.5},
		{"SL", "abc"},
		{"TP", 1.0},
		{"TP", -0.1},
	}
	for _, tc := range cases {
		if err := st.Set(tc.key, tc.val); !errors.Is(err, ErrInvalidValue) {
			t.Errorf("%s=%v: expected ErrInvalidValue, got %v", tc.key, tc.val, err)
		}
	}
	if st.Snapshot() != Defaults() {
		t.Fatalf("store mutated by rejected writes")
	}
}

func TestMapHasEveryKey(t *testing.T) {
	st, _ := NewStore(Defaults())
	st.SetOpenTrades(4)
	m := st.Map()
	for _, k := range Keys() {
		if _, ok := m[k]; !ok {
			t.Errorf("missing key %s", k)
		}
	}
	if m["TOTAL_TRADES_OPEN"] != 4 {
		t.Fatalf("TOTAL_TRADES_OPEN = %v", m["TOTAL_TRADES_OPEN"])
	}
	if m["LEVERAGE"] != 40 || m["TYPE"] != "CROSSED" {
		t.Fatalf("unexpected defaults in map: %v", m)
	}
}

func TestLoadYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	body := "LEVERAGE: 10\nPAIRS_TO_PROCESS: 3\nTOTAL_TRADES_OPEN: 7\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	st, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	s := st.Snapshot()
	if s.Leverage != 10 || s.PairsToProcess != 3 {
		t.Fatalf("yaml not applied: %+v", s)
	}
	if s.TotalTradesOpen != 0 {
		t.Fatalf("open-trade counter must not be seeded from file")
	}
	if s.MaxTrades != 8 {
		t.Fatalf("defaults lost: %+v", s)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	st, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if st.Snapshot() != Defaults() {
		t.Fatalf("expected defaults")
	}
}

func TestConcurrentAccess(t *testing.T) {
	st, _ := NewStore(Defaults())
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = st.Set("PAIRS_TO_PROCESS", float64(i))
		}(i)
		go func() {
			defer wg.Done()
			_ = st.Map()
		}()
	}
	wg.Wait()
}
