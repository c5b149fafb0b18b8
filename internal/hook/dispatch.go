package hook

// Dispatch runs rec's hook chain around original.
//
// The chain is read once per call; hooks added or removed while it runs
// take effect on the next call. rec must have been created for func(A) R.
//
// A single cursor tracks the next slot. Entering slot i moves the cursor
// to i+1 and leaving it (normally or by panic) moves it back to i, so every
// call to next made by the hook in slot i starts at slot i+1 no matter how
// many times it is called or what downstream hooks did.
func Dispatch[A, R any](rec *Record, original func(A) R, args A) R {
	chain := rec.snapshot()
	if len(chain) == 0 {
		return original(args)
	}

	cursor := 0
	var next func(A) R
	next = func(args A) R {
		i := cursor
		if i >= len(chain) {
			return original(args)
		}
		cursor = i + 1
		defer func() { cursor = i }()

		call := chain[i].capability.entry.(func(A, func(A) R) R)
		return call(args, next)
	}
	return next(args)
}
