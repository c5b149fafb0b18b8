package builtin_test

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dshills/safehook/internal/hook"
	"github.com/dshills/safehook/internal/hook/builtin"
	"github.com/dshills/safehook/internal/metrics"
)

func TestOptions(t *testing.T) {
	opts := builtin.Options{
		"i":   3,
		"i64": int64(4),
		"f":   5.0,
		"bad": 1.5,
		"s":   "x",
	}

	tests := []struct {
		key     string
		want    int
		wantErr bool
	}{
		{"i", 3, false},
		{"i64", 4, false},
		{"f", 5, false},
		{"bad", 0, true},
		{"s", 0, true},
		{"missing", 9, false},
	}
	for _, tt := range tests {
		got, err := opts.Int(tt.key, 9)
		if (err != nil) != tt.wantErr {
			t.Errorf("Int(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("Int(%q) = %d, want %d", tt.key, got, tt.want)
		}
	}

	if s, err := opts.String("s", ""); err != nil || s != "x" {
		t.Errorf("String(s) = %q, %v", s, err)
	}
	if s, _ := opts.String("missing", "def"); s != "def" {
		t.Errorf("String(missing) = %q, want def", s)
	}
	if _, err := opts.String("i", ""); err == nil {
		t.Error("String(i) should fail")
	}
}

func TestStandardCatalog(t *testing.T) {
	m := metrics.New()
	counter := builtin.NewCounter()
	c := builtin.NewStandardCatalog(builtin.Env{
		Logger:  zerolog.Nop(),
		Metrics: m,
		Counter: counter,
	})

	want := []string{"count", "log", "recover", "retry", "timing"}
	got := c.Kinds()
	if len(got) != len(want) {
		t.Fatalf("Kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Kinds[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	add, rec := newAdd(t)
	for _, kind := range []string{"count", "timing", "log"} {
		f, err := c.Build(kind, nil)
		if err != nil {
			t.Fatalf("Build(%s) error = %v", kind, err)
		}
		attach(t, rec, f, c.Priority(kind))
	}

	add.Call(addArgs{1, 2})
	if counter.Count("add") != 1 {
		t.Errorf("count = %d, want 1", counter.Count("add"))
	}
	if m.TotalCalls() != 1 {
		t.Errorf("timing calls = %d, want 1", m.TotalCalls())
	}
}

func TestCatalogPriorities(t *testing.T) {
	c := builtin.NewStandardCatalog(builtin.Env{})

	tests := []struct {
		kind string
		want int
	}{
		{"log", hook.PriorityObserve},
		{"timing", hook.PriorityObserve},
		{"count", hook.PriorityObserve},
		{"retry", hook.PriorityGuard},
		{"recover", hook.PriorityGuard},
		{"nope", hook.PriorityDefault},
	}
	for _, tt := range tests {
		if got := c.Priority(tt.kind); got != tt.want {
			t.Errorf("Priority(%s) = %d, want %d", tt.kind, got, tt.want)
		}
	}

	c.Register("plain", func(builtin.Options) (builtin.Factory, error) { return builtin.Recover(nil), nil })
	if got := c.Priority("plain"); got != hook.PriorityDefault {
		t.Errorf("Priority(plain) = %d, want %d", got, hook.PriorityDefault)
	}
}

// TestCatalogObserverSeesRetries verifies the default priorities put
// timing outside retry, so every attempt is one observed call.
func TestCatalogObserverSeesRetries(t *testing.T) {
	m := metrics.New()
	c := builtin.NewStandardCatalog(builtin.Env{Metrics: m})
	_, rec := newAdd(t)

	for _, kind := range []string{"retry", "timing"} {
		f, err := c.Build(kind, nil)
		if err != nil {
			t.Fatalf("Build(%s) error = %v", kind, err)
		}
		attach(t, rec, f, c.Priority(kind))
	}

	original, calls := flaky(2)
	if got := hook.Dispatch(rec, original, addArgs{1, 1}); got != 2 {
		t.Errorf("got %d, want 2", got)
	}
	if *calls != 3 {
		t.Errorf("original calls = %d, want 3", *calls)
	}
	fm := m.Function("add")
	if fm == nil || fm.CallCount != 1 || fm.PanicCount != 0 {
		t.Errorf("timing = %+v, want one clean call", fm)
	}
}

func TestCatalogBuildErrors(t *testing.T) {
	c := builtin.NewStandardCatalog(builtin.Env{})

	if _, err := c.Build("nope", nil); !errors.Is(err, builtin.ErrUnknownKind) {
		t.Errorf("Build(nope) error = %v, want ErrUnknownKind", err)
	}
	if _, err := c.Build("retry", builtin.Options{"attempts": 0}); err == nil {
		t.Error("Build(retry, attempts=0) should fail")
	}
	if _, err := c.Build("retry", builtin.Options{"attempts": "many"}); err == nil {
		t.Error("Build(retry, attempts=many) should fail")
	}
	if !c.Has("retry") || c.Has("nope") {
		t.Error("Has reports wrong kinds")
	}
}

func TestCatalogRecoverValue(t *testing.T) {
	c := builtin.NewStandardCatalog(builtin.Env{})

	tests := []struct {
		name  string
		value any
		want  int64
	}{
		{"int64", int64(-7), -7},
		{"int", 12, 12},
		{"integral float", 3.0, 3},
		{"uint64", uint64(9), 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := c.Build("recover", builtin.Options{"value": tt.value})
			if err != nil {
				t.Fatalf("Build error = %v", err)
			}
			_, rec := newAdd(t)
			attach(t, rec, f, hook.PriorityDefault)

			got := hook.Dispatch(rec, func(addArgs) int64 { panic("x") }, addArgs{})
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCatalogRecoverFloatResult(t *testing.T) {
	c := builtin.NewStandardCatalog(builtin.Env{})
	f, err := c.Build("recover", builtin.Options{"value": 3.7})
	if err != nil {
		t.Fatalf("Build error = %v", err)
	}

	rec := hook.NewRecord("ratio", func(n int) float64 { return float64(n) / 2 })
	attach(t, rec, f, hook.PriorityDefault)
	if got := hook.Dispatch(rec, func(int) float64 { panic("x") }, 1); got != 3.7 {
		t.Errorf("got %v, want 3.7", got)
	}
}

// TestCatalogRecoverRejectsLossyValue verifies fallbacks that would change
// when converted to the result type are refused.
func TestCatalogRecoverRejectsLossyValue(t *testing.T) {
	c := builtin.NewStandardCatalog(builtin.Env{})

	if _, err := c.Build("recover", builtin.Options{"value": []any{1}}); err == nil {
		t.Error("Build with a list value should fail")
	}

	small := hook.NewRecord("small", func(n int) uint8 { return uint8(n) })
	check := hook.NewRecord("check", func(s string) error { return nil })
	_, add := newAdd(t)

	tests := []struct {
		name  string
		value any
		rec   *hook.Record
	}{
		{"fraction into int64", 3.7, add},
		{"huge float into int64", 1e20, add},
		{"huge uint into int64", uint64(1) << 63, add},
		{"string into int64", "oops", add},
		{"bool into int64", true, add},
		{"overflow uint8", 300, small},
		{"negative into uint8", -1, small},
		{"string into error", "bad", check},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := c.Build("recover", builtin.Options{"value": tt.value})
			if err != nil {
				t.Fatalf("Build error = %v", err)
			}
			if _, err := f(tt.rec); err == nil {
				t.Errorf("factory accepted %v for %s", tt.value, tt.rec.Signature())
			}
			if tt.rec.Len() != 0 {
				t.Errorf("record has %d hooks, want 0", tt.rec.Len())
			}
		})
	}
}

func TestCatalogRegisterCustom(t *testing.T) {
	c := builtin.NewCatalog()
	c.Register("negate", func(builtin.Options) (builtin.Factory, error) {
		return func(rec *hook.Record, opts ...hook.CapabilityOption) (*hook.Capability, error) {
			return rec.Adapt(func(args any, next func(any) any) any {
				return -next(args).(int64)
			}, opts...), nil
		}, nil
	})

	f, err := c.Build("negate", nil)
	if err != nil {
		t.Fatalf("Build error = %v", err)
	}
	add, rec := newAdd(t)
	attach(t, rec, f, c.Priority("negate"))
	if got := add.Call(addArgs{1, 2}); got != -3 {
		t.Errorf("got %d, want -3", got)
	}
}
