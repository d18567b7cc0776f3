package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/ZLLentz/whatrecord/cmds"
	"github.com/ZLLentz/whatrecord/configs"
	"github.com/ZLLentz/whatrecord/debugs"
	"github.com/ZLLentz/whatrecord/loaders"
	"github.com/ZLLentz/whatrecord/logs"
	"github.com/ZLLentz/whatrecord/macros"
	"github.com/ZLLentz/whatrecord/modes"
	"github.com/reusee/dscope"
)

var (
	scriptFlags  = cmds.Collect[string]("-script")
	macroFlags   = cmds.Collect[string]("-macro")
	standinFlags = cmds.Collect[string]("-standin")
	workersFlag  = cmds.Var[int]("-workers")
	strictFlag   = cmds.Switch("-strict")
	whatFlag     = cmds.Var[string]("-what")
	fieldFlag    = cmds.Var[string]("-field")
	pvaFlag      = cmds.Switch("-pva")
	replFlag     = cmds.Switch("-repl")
)

func main() {
	cmds.Execute(os.Args[1:])

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	scope := dscope.New(
		new(Module),
		modes.ForProduction(),
	)
	if *workersFlag > 0 {
		scope = scope.Fork(
			dscope.Provide(configs.NumWorkers(*workersFlag)),
		)
	}
	if *strictFlag {
		scope = scope.Fork(
			dscope.Provide(configs.Strict(true)),
		)
	}
	if len(*standinFlags) > 0 {
		scope = scope.Fork(
			dscope.Provide(standinDirectories(*standinFlags)),
		)
	}

	scope.Call(func(
		load loaders.Load,
		descriptors []loaders.Descriptor,
		tap debugs.Tap,
		logger logs.Logger,
	) {
		cliMacros := macros.DefinitionsToDict(strings.Join(*macroFlags, ","))
		for _, script := range *scriptFlags {
			descriptors = append(descriptors, loaders.Descriptor{
				Script: script,
				Macros: cliMacros,
			})
		}
		if len(descriptors) == 0 {
			fmt.Fprintln(os.Stderr, "no startup scripts: pass -script or list iocs in whatrec.cue")
			cmds.GlobalExecutor.PrintUsage()
			os.Exit(1)
		}

		container, results := load(ctx, descriptors)

		failed := 0
		for _, result := range results {
			if result.State == loaders.LoadFailed {
				failed++
				pt("%s\t%s\t%v\t%v\n", result.Name, result.State, result.Elapsed, result.Err)
			} else {
				loaded := container.Scripts[result.Name]
				pt("%s\t%s\t%v\t%d records\n",
					result.Name, result.State, result.Elapsed,
					len(loaded.State.Database),
				)
			}
		}

		logger.Info("load complete",
			"instances", len(results),
			"failed", failed,
		)

		if *whatFlag != "" {
			matches := container.WhatRec(*whatFlag, *fieldFlag, *pvaFlag)
			content, err := json.MarshalIndent(matches, "", "  ")
			ce(err)
			pt("%s\n", content)
		}

		if *replFlag {
			tap(ctx, "container", map[string]any{
				"container": container,
				"names":     container.Names(),
				"results":   results,
			})
		}

		if failed > 0 {
			os.Exit(1)
		}
	})
}

// standinDirectories parses FROM=TO pairs from the command line.
func standinDirectories(pairs []string) configs.StandinDirectories {
	dirs := make(configs.StandinDirectories)
	for _, pair := range pairs {
		from, to, ok := strings.Cut(pair, "=")
		if !ok {
			fmt.Fprintf(os.Stderr, "bad -standin value %q, want FROM=TO\n", pair)
			os.Exit(1)
		}
		dirs[from] = to
	}
	return dirs
}
