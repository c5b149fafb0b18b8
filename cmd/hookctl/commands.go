package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"golang.org/x/sync/errgroup"
)

// exec runs a command.
func (a *app) exec(ctx context.Context, command string, args []string, in io.Reader) error {
	switch command {
	case "list":
		return a.list()
	case "call":
		if len(args) == 0 {
			return fmt.Errorf("call: missing function name")
		}
		return a.call(args[0], args[1:])
	case "serve":
		return a.serve(ctx, in)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// list prints every registered function with its hook chain.
func (a *app) list() error {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, name := range a.dir.Names() {
		rec, ok := a.dir.Lookup(name)
		if !ok {
			continue
		}
		usage := ""
		if inv, ok := invokers[name]; ok {
			usage = inv.usage
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, rec.Signature(), usage)
		for _, h := range rec.Hooks() {
			fmt.Fprintf(tw, "  %d\t%s\t%s\n", h.Priority, h.Label, h.ID)
		}
	}
	return tw.Flush()
}

// call invokes one function and prints its result.
func (a *app) call(name string, args []string) error {
	result, err := invoke(name, args)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, result)
	return err
}

// serve reads "<fn> [args...]" lines until EOF or ctx is done. With
// -watch the plan is re-applied whenever it changes.
func (a *app) serve(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	if a.opts.Watch {
		g.Go(func() error {
			return a.applier.Watch(ctx, a.loader, a.opts.PlanPath)
		})
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	g.Go(func() error {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				a.serveLine(line)
			}
		}
	})

	return g.Wait()
}

func (a *app) serveLine(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	switch fields[0] {
	case "list":
		_ = a.list()
	case "stats":
		a.stats()
	default:
		if err := a.call(fields[0], fields[1:]); err != nil {
			fmt.Fprintf(a.out, "error: %v\n", err)
		}
	}
}

// stats prints per-function timing collected by timing hooks.
func (a *app) stats() {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "function\tcalls\tpanics\tavg\tmax\n")
	for _, name := range a.metrics.Names() {
		fm := a.metrics.Function(name)
		if fm == nil {
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", fm.Name, fm.CallCount, fm.PanicCount, fm.Average(), fm.MaxDuration)
	}
	_ = tw.Flush()
}
