package cache

import (
	"testing"
	"time"
)

func TestRefreshPolicy_NeverRefreshedAlwaysDue(t *testing.T) {
	for _, maxAge := range []time.Duration{0, -time.Second, time.Minute} {
		p := NewRefreshPolicy(maxAge)
		if !p.ShouldRefresh() {
			t.Errorf("maxAge=%v: ShouldRefresh() before first mark = false", maxAge)
		}
		if !p.LastRefresh().IsZero() {
			t.Errorf("maxAge=%v: LastRefresh() = %v, want zero", maxAge, p.LastRefresh())
		}
	}
}

func TestRefreshPolicy_ZeroMaxAgeRefreshesOnce(t *testing.T) {
	clock := newFakeClock()
	p := NewRefreshPolicy(0, WithPolicyClock(clock.Now))

	trues := 0
	for i := 0; i < 5; i++ {
		if p.ShouldRefresh() {
			trues++
			p.MarkRefreshed()
		}
		clock.Advance(1000 * time.Hour)
	}

	if trues != 1 {
		t.Errorf("ShouldRefresh() true %d times, want exactly 1", trues)
	}
}

func TestRefreshPolicy_ZeroMaxAgeTrueOnceWithoutMark(t *testing.T) {
	p := NewRefreshPolicy(0)

	if !p.ShouldRefresh() {
		t.Fatal("first ShouldRefresh() = false")
	}
	for i := 0; i < 3; i++ {
		if p.ShouldRefresh() {
			t.Fatalf("ShouldRefresh() call %d = true, want false", i+2)
		}
	}
}

func TestRefreshPolicy_PositiveMaxAgeDueUntilMarked(t *testing.T) {
	p := NewRefreshPolicy(time.Minute)

	if !p.ShouldRefresh() || !p.ShouldRefresh() {
		t.Fatal("ShouldRefresh() before first mark = false")
	}
	p.MarkRefreshed()
	if p.ShouldRefresh() {
		t.Error("ShouldRefresh() right after mark = true")
	}
}

func TestRefreshPolicy_StrictBoundary(t *testing.T) {
	clock := newFakeClock()
	p := NewRefreshPolicy(time.Minute, WithPolicyClock(clock.Now))
	p.MarkRefreshed()

	clock.Advance(time.Minute - time.Nanosecond)
	if p.ShouldRefresh() {
		t.Error("ShouldRefresh() before t+d = true")
	}

	clock.Advance(time.Nanosecond)
	if p.ShouldRefresh() {
		t.Error("ShouldRefresh() at exactly t+d = true, want false")
	}

	clock.Advance(time.Nanosecond)
	if !p.ShouldRefresh() {
		t.Error("ShouldRefresh() strictly after t+d = false")
	}
}

func TestRefreshPolicy_MarkRestartsWindow(t *testing.T) {
	clock := newFakeClock()
	p := NewRefreshPolicy(time.Minute, WithPolicyClock(clock.Now))
	p.MarkRefreshed()

	clock.Advance(2 * time.Minute)
	p.MarkRefreshed()

	if p.ShouldRefresh() {
		t.Error("ShouldRefresh() right after MarkRefreshed = true")
	}
	if got := p.LastRefresh(); !got.Equal(clock.Now()) {
		t.Errorf("LastRefresh() = %v, want %v", got, clock.Now())
	}
}

func TestRefreshPolicy_MarkNeverMovesBackwards(t *testing.T) {
	clock := newFakeClock()
	p := NewRefreshPolicy(time.Minute, WithPolicyClock(clock.Now))
	p.MarkRefreshed()
	first := p.LastRefresh()

	clock.Advance(-time.Hour)
	p.MarkRefreshed()

	if got := p.LastRefresh(); !got.Equal(first) {
		t.Errorf("LastRefresh() = %v, want %v", got, first)
	}
}

func TestRefreshPolicy_MaxAge(t *testing.T) {
	if got := NewRefreshPolicy(5 * time.Second).MaxAge(); got != 5*time.Second {
		t.Errorf("MaxAge() = %v, want 5s", got)
	}
}
