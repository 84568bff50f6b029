package catalog

import (
	"math/rand/v2"
	"testing"

	"github.com/rmon-protocol/rmon-go/pkg/wire"
)

func TestMenuHasEightEntriesInOrder(t *testing.T) {
	menu := Menu()

	if menu.Type != "command_menu" {
		t.Errorf("Type = %q", menu.Type)
	}
	want := []string{"info", "battery", "location", "photo", "network", "storage", "apps", "disconnect"}
	if len(menu.Commands) != len(want) {
		t.Fatalf("got %d commands, want %d", len(menu.Commands), len(want))
	}
	for i, id := range want {
		if menu.Commands[i].ID != id {
			t.Errorf("command %d: ID = %q, want %q", i, menu.Commands[i].ID, id)
		}
		if menu.Commands[i].Name == "" || menu.Commands[i].Description == "" {
			t.Errorf("command %q has empty name or description", id)
		}
	}
}

func TestLookup(t *testing.T) {
	tests := []struct {
		id         string
		found      bool
		executable bool
	}{
		{"battery", true, true},
		{"photo", true, true},
		{"disconnect", true, false},
		{"explode", false, false},
		{"", false, false},
		{"Battery", false, false},
	}
	for _, tt := range tests {
		d, ok := Lookup(tt.id)
		if ok != tt.found {
			t.Errorf("Lookup(%q) found = %v, want %v", tt.id, ok, tt.found)
			continue
		}
		if ok && d.Executable() != tt.executable {
			t.Errorf("Lookup(%q).Executable() = %v, want %v", tt.id, d.Executable(), tt.executable)
		}
	}
}

func TestAllReturnsCopy(t *testing.T) {
	all := All()
	all[0].ID = "mutated"
	if Menu().Commands[0].ID != "info" {
		t.Error("All() exposed the internal catalog")
	}
}

func TestRandomPolicyCoversSet(t *testing.T) {
	p := NewRandomPolicy(Suggestions, rand.New(rand.NewPCG(1, 2)))

	seen := map[wire.NextCommand]int{}
	for i := 0; i < 300; i++ {
		seen[p.Next()]++
	}
	if len(seen) != len(Suggestions) {
		t.Errorf("saw %d distinct suggestions, want %d", len(seen), len(Suggestions))
	}
	for _, s := range Suggestions {
		if seen[s] == 0 {
			t.Errorf("suggestion %+v never chosen", s)
		}
	}
}

func TestRoundRobinPolicy(t *testing.T) {
	p := NewRoundRobinPolicy(Suggestions)
	for i := 0; i < 2*len(Suggestions); i++ {
		if got := p.Next(); got != Suggestions[i%len(Suggestions)] {
			t.Errorf("step %d: got %+v", i, got)
		}
	}
}

func TestNewPolicy(t *testing.T) {
	for _, name := range []string{"", PolicyRandom, PolicyRoundRobin, PolicyNone} {
		if _, err := NewPolicy(name); err != nil {
			t.Errorf("NewPolicy(%q) failed: %v", name, err)
		}
	}
	if _, err := NewPolicy("chaos"); err == nil {
		t.Error("expected error for unknown policy")
	}

	p, _ := NewPolicy(PolicyNone)
	if p.Next() != (wire.NextCommand{}) {
		t.Error("none policy should return an empty command")
	}
}
