package execution

import (
	"testing"
	"time"
)

func TestCooldownAddAndContains(t *testing.T) {
	m := NewCooldownManager()
	now := time.Now().UTC()

	cd, changed := m.Add("AAPL", time.Hour, "exit", "test")
	if !changed {
		t.Fatal("expected first add to take effect")
	}
	if cd.Reason != "exit" || cd.Source != "test" {
		t.Errorf("unexpected cooldown record: %+v", cd)
	}
	if !m.Contains("AAPL", now) {
		t.Error("expected active cooldown")
	}
	if m.Contains("AAPL", now.Add(2*time.Hour)) {
		t.Error("expected cooldown to lapse after expiry")
	}
	if m.Contains("MSFT", now) {
		t.Error("unexpected cooldown for untouched ticker")
	}
}

func TestCooldownExtendOnly(t *testing.T) {
	m := NewCooldownManager()

	first, _ := m.Add("TSLA", 3*time.Hour, "exit", "engine")

	// A shorter re-add must not truncate the active cooldown.
	second, changed := m.Add("TSLA", time.Hour, "exit", "engine")
	if changed {
		t.Error("expected shorter re-add to be a no-op")
	}
	if !second.Until.Equal(first.Until) {
		t.Errorf("cooldown truncated: %v -> %v", first.Until, second.Until)
	}

	// A longer re-add extends.
	third, changed := m.Add("TSLA", 6*time.Hour, "repeated_rejections", "engine")
	if !changed {
		t.Error("expected longer re-add to extend")
	}
	if !third.Until.After(first.Until) {
		t.Errorf("cooldown not extended: %v -> %v", first.Until, third.Until)
	}
	if third.Reason != "repeated_rejections" {
		t.Errorf("expected extension to update reason, got %s", third.Reason)
	}
}

func TestCooldownDefaultDuration(t *testing.T) {
	m := NewCooldownManager()
	before := time.Now().UTC()
	cd, _ := m.Add("NVDA", 0, "exit", "engine")

	gap := cd.Until.Sub(before)
	if gap < DefaultCooldown-time.Minute || gap > DefaultCooldown+time.Minute {
		t.Errorf("expected ~%v default duration, got %v", DefaultCooldown, gap)
	}
}

func TestCooldownAllActiveAndPrune(t *testing.T) {
	m := NewCooldownManager()
	m.Add("AAA", time.Hour, "exit", "engine")
	m.Add("BBB", time.Millisecond, "exit", "engine")

	later := time.Now().UTC().Add(time.Minute)
	active := m.AllActive(later)
	if _, ok := active["AAA"]; !ok {
		t.Error("expected AAA active")
	}
	if _, ok := active["BBB"]; ok {
		t.Error("expected BBB expired")
	}

	if n := m.Prune(later); n != 1 {
		t.Errorf("expected 1 pruned, got %d", n)
	}
	if m.Count() != 1 {
		t.Errorf("expected 1 remaining, got %d", m.Count())
	}
}

func TestCooldownSnapshotRestore(t *testing.T) {
	m := NewCooldownManager()
	m.Add("AAA", time.Hour, "exit", "engine")
	m.Add("BBB", 2*time.Hour, "repeated_rejections", "engine")

	snap := m.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 snapshot entries, got %d", len(snap))
	}

	restored := NewCooldownManager()
	restored.Restore(snap)
	now := time.Now().UTC()
	if !restored.Contains("AAA", now) || !restored.Contains("BBB", now) {
		t.Error("expected restored cooldowns to be active")
	}
}
