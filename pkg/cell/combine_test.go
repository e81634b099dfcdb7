package cell

import (
	"strconv"
	"testing"
)

func TestCombine2Scenario(t *testing.T) {
	a := New(1)
	b := New(2)
	sum := Combine2(a, b, func(x, y int) int { return x + y })

	if sum.Get() != 3 {
		t.Fatalf("initial = %d, want 3", sum.Get())
	}
	a.SetValue(10)
	if sum.Get() != 12 {
		t.Fatalf("after a=10: %d, want 12", sum.Get())
	}
	b.SetValue(5)
	if sum.Get() != 15 {
		t.Fatalf("after b=5: %d, want 15", sum.Get())
	}
}

func TestCombineRecomputesOncePerSourceChange(t *testing.T) {
	a := New(1)
	b := New("x")

	computes := 0
	c := Combine2(a, b, func(n int, s string) string {
		computes++
		return s + strconv.Itoa(n)
	})
	computes = 0

	notified := 0
	c.Subscribe(func(string) { notified++ })

	a.SetValue(2)
	b.SetValue("y")

	if computes != 2 || notified != 2 {
		t.Fatalf("computes = %d notified = %d, want 2 and 2", computes, notified)
	}
	if c.Get() != "y2" {
		t.Fatalf("Get() = %q", c.Get())
	}
}

func TestCombineUnchangedResultDoesNotNotify(t *testing.T) {
	a := New(1)
	b := New(-1)
	sign := Combine2(a, b, func(x, y int) bool { return x+y >= 0 })

	calls := 0
	sign.Subscribe(func(bool) { calls++ })

	a.SetValue(2)
	if calls != 0 {
		t.Fatalf("calls = %d, want 0", calls)
	}
	b.SetValue(-10)
	if calls != 1 || sign.Get() {
		t.Fatalf("calls = %d sign = %v", calls, sign.Get())
	}
}

func TestCombine3AndDerivedSource(t *testing.T) {
	a := New(1)
	b := New(2.5)
	name := New(profile{Name: "n"})
	initial := Derive(name, func(p profile) string { return p.Name[:1] })

	c := Combine3(a, b, initial, func(x int, y float64, s string) string {
		return s + ":" + strconv.FormatFloat(float64(x)+y, 'f', 1, 64)
	})
	if c.Get() != "n:3.5" {
		t.Fatalf("initial = %q", c.Get())
	}

	name.SetValue(profile{Name: "zed"})
	if c.Get() != "z:3.5" {
		t.Fatalf("after derived change = %q", c.Get())
	}
}

func TestCombineN(t *testing.T) {
	a, b, c := New(1), New(2), New(3)
	total := CombineN([]Source[int]{a, b, c}, func(vs []int) int {
		sum := 0
		for _, v := range vs {
			sum += v
		}
		return sum
	})

	if total.Get() != 6 {
		t.Fatalf("initial = %d", total.Get())
	}
	c.SetValue(30)
	if total.Get() != 33 {
		t.Fatalf("after c=30: %d", total.Get())
	}
}

func TestCombineDisposeReleasesAllSources(t *testing.T) {
	a, b := New(1), New(2)
	sum := Combine2(a, b, func(x, y int) int { return x + y })

	if a.Listeners() != 1 || b.Listeners() != 1 {
		t.Fatal("combine should subscribe to each source once")
	}
	sum.Dispose()
	sum.Dispose()
	if a.Listeners() != 0 || b.Listeners() != 0 {
		t.Fatal("Dispose left subscriptions behind")
	}

	a.SetValue(100)
	if sum.Get() != 3 {
		t.Fatalf("disposed combined = %d, want 3", sum.Get())
	}
}
