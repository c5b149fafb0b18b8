// Package hook lets functions be intercepted at run time.
//
// A function opts in by being declared through Define. Its callers then pay
// one atomic load while no hooks are attached; once hooks are attached each
// call runs through an ordered chain of interceptors before reaching the
// original body.
//
// # Declaring hookable functions
//
// Arguments travel as a single value, usually a struct with one field per
// parameter:
//
//	type concatArgs struct{ Left, Right string }
//
//	var concat = hook.Define("concat", func(a concatArgs) string {
//		return a.Left + "-" + a.Right
//	})
//
// Define registers the function in the process-wide Directory while the
// package initializes, so every hookable function is visible to Lookup
// before main starts.
//
// # Writing hooks
//
// A hook implements Hook[A, R] for the target's argument and result types:
//
//	upper := hook.WrapFunc(func(a concatArgs, next func(concatArgs) string) string {
//		a.Left = strings.ToUpper(a.Left)
//		return next(a)
//	}, hook.WithLabel("upper"))
//
//	rec, _ := hook.Lookup("concat")
//	if err := rec.AddHookWithPriority(upper, 10); err != nil {
//		// err is a *MismatchError when the types differ
//	}
//	defer rec.RemoveHook(upper)
//
// Calling next runs the remaining hooks and finally the original function.
// A hook may skip next to short-circuit the call, or call it repeatedly,
// for example to retry the rest of the chain.
//
// Signature-agnostic hooks implement DynamicFunc and are bound to a record
// with Record.Adapt.
//
// # Ordering
//
// Higher priorities run first. Among hooks of equal priority the most
// recently added one runs first.
//
// # Thread Safety
//
// Records may be mutated and called concurrently. The chain is copied on
// write, so a running call keeps the chain it started with and hooks may
// call hookable functions, including the one they intercept, without
// deadlocking.
package hook
