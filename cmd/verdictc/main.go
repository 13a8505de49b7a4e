// verdict/cmd/verdictc/main.go

// verdictc resolves and compiles a decision source tree without running
// it, for CI checks and local editing. With -disasm it prints each
// compiled program's instruction listing.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/pflag"

	"calder/verdict/pkg/compiler"
	"calder/verdict/pkg/logging"
)

func main() {
	dir := pflag.String("dir", ".", "source document directory")
	entries := pflag.StringSlice("entry", nil, "entry documents (default: every YAML file under -dir)")
	lists := pflag.StringSlice("lists", nil, "known managed list IDs; empty skips list checking")
	disasm := pflag.Bool("disasm", false, "print compiled instruction listings")
	logLevel := pflag.String("log-level", "warn", "log level")
	pflag.Parse()

	if err := logging.ConfigureLogger(*logLevel, "console"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	loader := compiler.NewFileLoader(*dir)
	entryPaths := *entries
	if len(entryPaths) == 0 {
		var err error
		entryPaths, err = loader.List(".")
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}

	opts := compiler.Options{}
	if len(*lists) > 0 {
		opts.KnownLists = *lists
	}
	set, err := compiler.CompileSources(loader, entryPaths, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "compile failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("ok: %d rules, %d rulesets, %d pipelines, %d routes\n",
		len(set.Rules), len(set.Rulesets), len(set.Pipelines), len(set.Routes))
	for _, id := range set.PipelineOrder {
		fmt.Printf("  pipeline %s: %d steps\n", id, len(set.Pipelines[id].Steps))
	}

	if *disasm {
		for _, progs := range []map[string]*compiler.Program{set.Rules, set.Rulesets} {
			ids := make([]string, 0, len(progs))
			for id := range progs {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				fmt.Println(progs[id].Disassemble())
			}
		}
		for _, id := range set.PipelineOrder {
			fmt.Println(set.Pipelines[id].Disassemble())
		}
	}
}
