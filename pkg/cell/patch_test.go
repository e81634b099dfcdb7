package cell

import (
	"errors"
	"testing"

	merr "github.com/vango-dev/microscope/internal/errors"
)

type settings struct {
	Theme    string
	FontSize int
	Tags     []string
	secret   string
}

func TestPatchStruct(t *testing.T) {
	c := New(settings{Theme: "light", FontSize: 12, secret: "s"})

	var labels []string
	c.Use(func(prev, next settings, _ *Cell[settings], label string) settings {
		labels = append(labels, label)
		return next
	})

	if err := c.Patch(map[string]any{"Theme": "dark"}, "theme"); err != nil {
		t.Fatalf("Patch error: %v", err)
	}

	got := c.Get()
	if got.Theme != "dark" || got.FontSize != 12 || got.secret != "s" {
		t.Fatalf("Get() = %+v", got)
	}
	if len(labels) != 1 || labels[0] != "theme" {
		t.Errorf("labels = %v", labels)
	}
}

func TestPatchFunc(t *testing.T) {
	c := New(settings{FontSize: 12})
	err := c.PatchFunc(func(prev settings) map[string]any {
		return map[string]any{"FontSize": prev.FontSize + 2, "Tags": nil}
	})
	if err != nil {
		t.Fatalf("PatchFunc error: %v", err)
	}
	if c.Get().FontSize != 14 {
		t.Fatalf("FontSize = %d, want 14", c.Get().FontSize)
	}
}

func TestPatchEmptyStructIsNoop(t *testing.T) {
	c := New(settings{Theme: "light"})
	calls := 0
	c.Subscribe(func(settings) { calls++ })

	if err := c.Patch(map[string]any{}); err != nil {
		t.Fatalf("Patch error: %v", err)
	}
	if calls != 0 {
		t.Fatalf("empty patch notified %d times", calls)
	}
}

func TestPatchPointerCopies(t *testing.T) {
	orig := &settings{Theme: "light"}
	c := New(orig)

	if err := c.Patch(map[string]any{"Theme": "dark"}); err != nil {
		t.Fatalf("Patch error: %v", err)
	}
	if orig.Theme != "light" {
		t.Fatal("Patch modified the previous pointee")
	}
	if c.Get() == orig || c.Get().Theme != "dark" {
		t.Fatalf("Get() = %+v", c.Get())
	}
}

func TestPatchMap(t *testing.T) {
	prev := map[string]int{"a": 1, "b": 2}
	c := New(prev)

	if err := c.Patch(map[string]any{"b": 20, "c": 3}); err != nil {
		t.Fatalf("Patch error: %v", err)
	}
	got := c.Get()
	if got["a"] != 1 || got["b"] != 20 || got["c"] != 3 {
		t.Fatalf("Get() = %v", got)
	}
	if prev["b"] != 2 {
		t.Fatal("Patch modified the previous map")
	}
}

func TestPatchAnyHoldingStruct(t *testing.T) {
	c := New[any](settings{Theme: "light"})
	if err := c.Patch(map[string]any{"Theme": "dark"}); err != nil {
		t.Fatalf("Patch error: %v", err)
	}
	if c.Get().(settings).Theme != "dark" {
		t.Fatalf("Get() = %+v", c.Get())
	}
}

func TestPatchPrimitiveFails(t *testing.T) {
	c := New(0, Named("count"))
	calls := 0
	c.Subscribe(func(int) { calls++ })

	err := c.Patch(map[string]any{})
	if err == nil {
		t.Fatal("Patch on int cell should fail")
	}
	if !errors.Is(err, ErrNotObject) {
		t.Errorf("error %v does not match ErrNotObject", err)
	}
	var se *merr.Error
	if !errors.As(err, &se) || se.Category != merr.CategoryMisuse {
		t.Errorf("error %v is not a misuse *errors.Error", err)
	}
	if c.Get() != 0 || calls != 0 {
		t.Fatal("failed Patch changed the cell")
	}
}

func TestPatchNilPointerFails(t *testing.T) {
	c := New[*settings](nil)
	if err := c.Patch(map[string]any{"Theme": "x"}); !errors.Is(err, ErrNotObject) {
		t.Fatalf("err = %v, want ErrNotObject", err)
	}
}

func TestPatchUnknownOrMistypedField(t *testing.T) {
	c := New(settings{Theme: "light"})

	for _, partial := range []map[string]any{
		{"Missing": 1},
		{"secret": "x"},
		{"FontSize": "large"},
	} {
		err := c.Patch(partial)
		if !errors.Is(err, ErrUnknownField) {
			t.Errorf("Patch(%v) err = %v, want ErrUnknownField", partial, err)
		}
	}
	if c.Get().Theme != "light" {
		t.Fatal("failed Patch changed the cell")
	}
}
