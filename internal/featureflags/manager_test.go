package featureflags

import "testing"

func TestEnabled_BooleanValues(t *testing.T) {
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	if !m.Enabled("a", 1) || !m.Enabled("c", 1) || !m.Enabled("e", 1) {
		t.Fatal("expected enabled boolean values to evaluate true")
	}
	if m.Enabled("b", 1) || m.Enabled("d", 1) || m.Enabled("f", 1) {
		t.Fatal("expected disabled boolean values to evaluate false")
	}
	if m.Enabled("unknown", 1) {
		t.Fatal("unconfigured flags without a default must be off")
	}
}

func TestEnabled_PercentageValues(t *testing.T) {
	m := NewManager("thumbnails=100%,realtime=0%,search_indexing=25%")

	if !m.Enabled(FlagThumbnails, 1) {
		t.Fatal("100% rollout should always be enabled")
	}
	if m.Enabled(FlagRealtime, 1) {
		t.Fatal("0% rollout should always be disabled")
	}

	first := m.Enabled(FlagSearchIndexing, 42)
	for range 5 {
		if got := m.Enabled(FlagSearchIndexing, 42); got != first {
			t.Fatal("rollout evaluation must be deterministic per user")
		}
	}

	if m.Enabled(FlagSearchIndexing, 0) {
		t.Fatal("percentage rollout requires non-zero userID")
	}
}

func TestDefaults(t *testing.T) {
	m := NewManager("")
	for _, flag := range []string{FlagRealtime, FlagSearchIndexing, FlagThumbnails} {
		if !m.Enabled(flag, 0) {
			t.Fatalf("%s should default to on", flag)
		}
	}

	m = NewManager("THUMBNAILS = off")
	if m.Enabled(FlagThumbnails, 7) {
		t.Fatal("configured value must override the default")
	}
}

func TestParseAndSnapshot(t *testing.T) {
	m := NewManager(" bad ,x=on, y = 20% ,z=off ")

	raw := m.Raw()
	if len(raw) != 6 {
		t.Fatalf("expected 3 parsed flags plus 3 defaults, got %d", len(raw))
	}
	if raw["x"] != "on" || raw["y"] != "20%" || raw["z"] != "off" {
		t.Fatalf("unexpected raw flags: %#v", raw)
	}

	raw["x"] = "off"
	if !m.Enabled("x", 1) {
		t.Fatal("Raw must return a copy")
	}

	snap := m.Snapshot(123)
	if len(snap) != 6 {
		t.Fatalf("expected snapshot size 6, got %d", len(snap))
	}
}

func TestNilManager(t *testing.T) {
	var m *Manager
	if m.Enabled(FlagRealtime, 1) {
		t.Fatal("nil manager must report every flag off")
	}
	if len(m.Raw()) != 0 || len(m.Snapshot(1)) != 0 {
		t.Fatal("nil manager must have no flags")
	}
}
