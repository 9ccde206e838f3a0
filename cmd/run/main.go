package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/wippyai/interp-bridge/attach"
	"github.com/wippyai/interp-bridge/interp"
	"github.com/wippyai/interp-bridge/object"
)

func main() {
	var (
		heapKiB     = flag.Int("heap", 256, "Initial heap size in KiB")
		callName    = flag.String("call", "", "Module entry to call (optional)")
		callArgs    = flag.String("args", "", "Call arguments (comma-separated)")
		list        = flag.Bool("list", false, "List module contents and exit")
		collect     = flag.Bool("gc", false, "Run a collection pass after the call")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(uint32(*heapKiB)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(uint32(*heapKiB), *callName, *callArgs, *list, *collect); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(heapKiB uint32, callName, argsStr string, listOnly, collect bool) error {
	rt, err := interp.New(interp.Config{InitialHeap: heapKiB * 1024})
	if err != nil {
		return fmt.Errorf("create runtime: %w", err)
	}
	defer rt.Close()

	if err := registerDemoTypes(); err != nil {
		return fmt.Errorf("register types: %w", err)
	}

	return attach.With(rt, func(tok attach.Token) error {
		if err := demoModule().Register(tok); err != nil {
			return fmt.Errorf("register module: %w", err)
		}

		// Show runtime info
		fmt.Printf("Heap: %d bytes\n", rt.HeapBytes())
		fmt.Printf("Modules: %s\n", strings.Join(rt.ModuleNames(), ", "))
		fmt.Printf("Tracked objects: %d\n", rt.TrackedCount())

		entries, err := moduleEntries(tok, "shapes")
		if err != nil {
			return err
		}
		fmt.Printf("\nModule shapes:\n")
		for _, e := range entries {
			fmt.Printf("  %-12s %s\n", e.name, e.kind)
		}

		if listOnly {
			return nil
		}

		if callName == "" {
			fmt.Printf("\nNo entry specified. Use -call to invoke one.\n")
			return nil
		}

		target, err := moduleLookup(tok, "shapes", callName)
		if err != nil {
			return err
		}
		defer target.Drop()

		args, cleanup, err := parseArgs(tok, argsStr)
		if err != nil {
			return err
		}
		defer cleanup()

		fmt.Printf("\nCalling %s(%s)...\n", callName, argsStr)
		res, err := target.Bind(tok).Call(args...)
		if err != nil {
			return fmt.Errorf("call %s: %w", callName, err)
		}
		defer res.Drop()

		repr, err := res.Bind(tok).Repr()
		if err != nil {
			return fmt.Errorf("repr: %w", err)
		}
		fmt.Printf("Result: %s\n", repr)
		fmt.Printf("Refcount: %d\n", rt.Refcount(res.Ref()))

		if collect {
			stats := rt.Collect()
			fmt.Printf("\nCollection: %d tracked, %d collected\n", stats.Tracked, stats.Collected)
		}
		return nil
	})
}

type entryInfo struct {
	name string
	kind string
}

func moduleEntries(tok attach.Token, module string) ([]entryInfo, error) {
	rt := tok.Runtime()
	dict, ok := rt.Module(module)
	if !ok {
		return nil, fmt.Errorf("module %s not registered", module)
	}
	defer rt.DecRef(dict)
	keys, _ := rt.DictKeys(dict)
	entries := make([]entryInfo, 0, len(keys))
	for _, k := range keys {
		ref, _ := rt.DictGet(dict, k)
		kind := "function"
		if _, isType := rt.AsType(ref); isType {
			kind = "type"
		}
		entries = append(entries, entryInfo{name: k, kind: kind})
	}
	return entries, nil
}

func moduleLookup(tok attach.Token, module, name string) (object.Object, error) {
	rt := tok.Runtime()
	dict, ok := rt.Module(module)
	if !ok {
		return object.Object{}, fmt.Errorf("module %s not registered", module)
	}
	defer rt.DecRef(dict)
	ref, ok := rt.DictGet(dict, name)
	if !ok {
		return object.Object{}, fmt.Errorf("no entry %q in module %s", name, module)
	}
	return object.FromBorrowed(tok, ref)
}

func parseArgs(tok attach.Token, s string) ([]object.Object, func(), error) {
	var objs []object.Object
	cleanup := func() {
		for _, o := range objs {
			o.Drop()
		}
	}
	if s == "" {
		return nil, cleanup, nil
	}
	for _, part := range strings.Split(s, ",") {
		o, err := object.FromGo(tok, convertArg(strings.TrimSpace(part)))
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		objs = append(objs, o)
	}
	return objs, cleanup, nil
}

func convertArg(value string) any {
	if v, err := strconv.ParseInt(value, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(value, 64); err == nil {
		return v
	}
	switch value {
	case "true":
		return true
	case "false":
		return false
	}
	return value
}
