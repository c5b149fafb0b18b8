package hook_test

import (
	"reflect"
	"testing"

	"github.com/dshills/safehook/internal/hook"
)

func greet(name string) string { return "hello " + name }

// registered in the default directory during package initialization
var pkgGreet = hook.Define("hook_test.greet", greet)

// TestDefaultDirectory verifies package-level definitions are visible to Lookup.
func TestDefaultDirectory(t *testing.T) {
	rec, ok := hook.Lookup("hook_test.greet")
	if !ok {
		t.Fatal("expected hook_test.greet to be registered")
	}
	if rec != pkgGreet.Record() {
		t.Error("expected lookup and call site to share a record")
	}
	if rec.Name() != "hook_test.greet" {
		t.Errorf("expected name hook_test.greet, got %q", rec.Name())
	}

	found := false
	for _, name := range hook.Names() {
		if name == "hook_test.greet" {
			found = true
		}
	}
	if !found {
		t.Error("expected hook_test.greet in Names()")
	}
}

// TestLookupMiss verifies unknown names yield nothing.
func TestLookupMiss(t *testing.T) {
	d := hook.NewDirectory()
	hook.DefineIn(d, "add", addImpl)

	for _, name := range []string{"", "Add", "ad", "add ", "*"} {
		if rec, ok := d.Lookup(name); ok || rec != nil {
			t.Errorf("expected miss for %q", name)
		}
	}
}

// TestLookupRoundTrip verifies name and entry survive registration.
func TestLookupRoundTrip(t *testing.T) {
	d := hook.NewDirectory()
	fns := map[string]func(addArgs) int64{
		"add": addImpl,
		"sub": func(a addArgs) int64 { return a.Left - a.Right },
		"mul": func(a addArgs) int64 { return a.Left * a.Right },
	}
	for name, fn := range fns {
		hook.DefineIn(d, name, fn)
	}

	for name, fn := range fns {
		rec, ok := d.Lookup(name)
		if !ok {
			t.Fatalf("expected %s to be registered", name)
		}
		if rec.Name() != name {
			t.Errorf("expected name %q, got %q", name, rec.Name())
		}
		if rec.OriginalEntry() != reflect.ValueOf(fn).Pointer() {
			t.Errorf("%s: original entry mismatch", name)
		}
	}
	if d.Len() != 3 {
		t.Errorf("expected 3 registrations, got %d", d.Len())
	}
}

// TestDuplicateName verifies the first registration wins.
func TestDuplicateName(t *testing.T) {
	d := hook.NewDirectory()
	first := hook.DefineIn(d, "add", addImpl)
	second := hook.DefineIn(d, "add", func(a addArgs) int64 { return 0 })

	rec, _ := d.Lookup("add")
	if rec != first.Record() {
		t.Error("expected lookup to return the first registration")
	}
	if rec == second.Record() {
		t.Error("expected second registration to have its own record")
	}

	names := d.Names()
	if len(names) != 2 || names[0] != "add" || names[1] != "add" {
		t.Errorf("expected both registrations listed, got %v", names)
	}
	if len(d.Records()) != 1 {
		t.Errorf("expected one reachable record, got %d", len(d.Records()))
	}

	// The unreachable record still works through its call site.
	second.Attach(hook.Func[addArgs, int64](func(a addArgs, next func(addArgs) int64) int64 {
		return 7
	}), 0)
	if got := second.Call(addArgs{1, 2}); got != 7 {
		t.Errorf("expected 7, got %d", got)
	}
	if got := first.Call(addArgs{1, 2}); got != 3 {
		t.Errorf("expected 3, got %d", got)
	}
}

// TestLazyRecord verifies records are built once, by call or by lookup.
func TestLazyRecord(t *testing.T) {
	d := hook.NewDirectory()
	h := hook.DefineIn(d, "add", addImpl)

	byLookup, _ := d.Lookup("add")
	if byLookup != h.Record() {
		t.Error("expected lookup to build the same record the call site uses")
	}

	h2 := hook.DefineIn(d, "sub", func(a addArgs) int64 { return a.Left - a.Right })
	if got := h2.Call(addArgs{5, 3}); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
	byLookup2, _ := d.Lookup("sub")
	if byLookup2 != h2.Record() {
		t.Error("expected call and lookup to share the record")
	}
}

// TestRegisterEager verifies Register returns a reachable record.
func TestRegisterEager(t *testing.T) {
	d := hook.NewDirectory()
	rec := hook.Register(d, "add", addImpl)

	got, ok := d.Lookup("add")
	if !ok || got != rec {
		t.Error("expected Register's record to be returned by Lookup")
	}
}

// TestMust verifies Must panics on a miss.
func TestMust(t *testing.T) {
	d := hook.NewDirectory()
	hook.DefineIn(d, "add", addImpl)

	if d.Must("add").Name() != "add" {
		t.Error("expected Must to find add")
	}

	defer func() {
		if recover() == nil {
			t.Error("expected Must to panic on a miss")
		}
	}()
	d.Must("missing")
}

// TestFastPathCall verifies the unhooked path calls the original directly.
func TestFastPathCall(t *testing.T) {
	d := hook.NewDirectory()
	calls := 0
	h := hook.DefineIn(d, "count", func(n int) int {
		calls++
		return n * 2
	})

	if got := h.Call(21); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
	if calls != 1 {
		t.Errorf("expected one call, got %d", calls)
	}
	if h.Name() != "count" {
		t.Errorf("expected name count, got %q", h.Name())
	}
	if h.Original()(1) != 2 {
		t.Error("expected Original to call the body")
	}
}
