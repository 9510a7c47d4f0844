package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/predyx/predyx/internal/engine"
)

func validConfig() engine.Config {
	return engine.Config{
		Question:       "Will it rain tomorrow?",
		Category:       "weather",
		ResolutionDate: time.Now().Add(24 * time.Hour),
		Oracle:         "0xoracle",
		FeeBps:         200,
	}
}

func TestCreateAssignsIDsAndAddresses(t *testing.T) {
	r := New()

	e1, err := r.Create("0xalice", validConfig(), 1000*engine.UnitScale)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	cfg2 := validConfig()
	cfg2.Question = "Will ETH flip BTC?"
	e2, err := r.Create("0xbob", cfg2, 500*engine.UnitScale)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if e1.ID != 1 || e2.ID != 2 {
		t.Errorf("ids = %d, %d, want 1, 2", e1.ID, e2.ID)
	}
	if e1.Address == e2.Address {
		t.Errorf("addresses collide: %s", e1.Address)
	}
	if len(e1.Address) != 42 || e1.Address[:2] != "0x" {
		t.Errorf("address %q is not a 20-byte hex address", e1.Address)
	}

	// Pool is seeded 50/50 before the entry is visible.
	yes, no := e1.Market.Pools()
	if yes != 500*engine.UnitScale || no != 500*engine.UnitScale {
		t.Errorf("pools = %d/%d, want seeded 50/50", yes, no)
	}

	if r.Count() != 2 {
		t.Errorf("Count = %d, want 2", r.Count())
	}
	got := r.List()
	if len(got) != 2 || got[0] != e1 || got[1] != e2 {
		t.Errorf("List returned entries out of creation order")
	}
	if e, err := r.Get(e2.Address); err != nil || e != e2 {
		t.Errorf("Get(%s) = %v, %v", e2.Address, e, err)
	}
	if _, err := r.Get("0x0000000000000000000000000000000000000000"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get unknown err = %v, want ErrNotFound", err)
	}
}

func TestCreateValidation(t *testing.T) {
	r := New()

	cfg := validConfig()
	cfg.ResolutionDate = time.Now().Add(-time.Hour)
	if _, err := r.Create("0xalice", cfg, 1000*engine.UnitScale); !errors.Is(err, ErrPastResolution) {
		t.Errorf("past resolution err = %v, want ErrPastResolution", err)
	}

	cfg = validConfig()
	cfg.FeeBps = 1001
	if _, err := r.Create("0xalice", cfg, 1000*engine.UnitScale); !errors.Is(err, ErrInvalidFee) {
		t.Errorf("fee 1001 err = %v, want ErrInvalidFee", err)
	}

	cfg = validConfig()
	cfg.Question = ""
	if _, err := r.Create("0xalice", cfg, 1000*engine.UnitScale); !errors.Is(err, ErrEmptyQuestion) {
		t.Errorf("empty question err = %v, want ErrEmptyQuestion", err)
	}

	if _, err := r.Create("0xalice", validConfig(), 0); !errors.Is(err, engine.ErrInvalidAmount) {
		t.Errorf("zero liquidity err = %v, want engine.ErrInvalidAmount", err)
	}

	if r.Count() != 0 {
		t.Errorf("failed creations were recorded: Count = %d", r.Count())
	}
}

func TestDeriveAddressDeterministic(t *testing.T) {
	a := deriveAddress(7, "same question")
	b := deriveAddress(7, "same question")
	c := deriveAddress(8, "same question")
	if a != b {
		t.Errorf("address not deterministic: %s != %s", a, b)
	}
	if a == c {
		t.Errorf("different ids produced the same address: %s", a)
	}
}
