package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dshills/safehook/internal/hook"
)

type addArgs struct {
	Left  int64
	Right int64
}

type concatArgs struct {
	Left  string
	Right string
}

// Demo targets. Plans refer to them by these names.
var (
	demoAdd = hook.Define("demo.add", func(a addArgs) int64 {
		return a.Left + a.Right
	})
	demoConcat = hook.Define("demo.concat", func(a concatArgs) string {
		return a.Left + a.Right
	})
	demoGreet = hook.Define("demo.greet", func(name string) string {
		return "Hello, " + name + "!"
	})
)

// invoker parses command-line arguments and calls a demo target.
type invoker struct {
	usage string
	call  func(args []string) (any, error)
}

var invokers = map[string]invoker{
	"demo.add": {
		usage: "<int> <int>",
		call: func(args []string) (any, error) {
			if len(args) != 2 {
				return nil, errArgCount(2, len(args))
			}
			left, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("left: %w", err)
			}
			right, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("right: %w", err)
			}
			return demoAdd.Call(addArgs{Left: left, Right: right}), nil
		},
	},
	"demo.concat": {
		usage: "<string> <string>",
		call: func(args []string) (any, error) {
			if len(args) != 2 {
				return nil, errArgCount(2, len(args))
			}
			return demoConcat.Call(concatArgs{Left: args[0], Right: args[1]}), nil
		},
	},
	"demo.greet": {
		usage: "<name>",
		call: func(args []string) (any, error) {
			if len(args) != 1 {
				return nil, errArgCount(1, len(args))
			}
			return demoGreet.Call(args[0]), nil
		},
	},
}

func errArgCount(want, got int) error {
	return fmt.Errorf("expected %d arguments, got %d", want, got)
}

// resolve maps a short name like "add" to its full name.
func resolve(name string) string {
	if strings.Contains(name, ".") {
		return name
	}
	return "demo." + name
}

// invoke calls the named target, converting a panic into an error.
func invoke(name string, args []string) (result any, err error) {
	full := resolve(name)
	inv, ok := invokers[full]
	if !ok {
		return nil, fmt.Errorf("%w: %s", hook.ErrNotFound, name)
	}

	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("%s panicked: %w", full, e)
			} else {
				err = fmt.Errorf("%s panicked: %v", full, r)
			}
		}
	}()
	return inv.call(args)
}
