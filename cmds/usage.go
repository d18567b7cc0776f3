package cmds

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

func (p *Executor) PrintUsage() {
	printCommands(p.commands, 0)
}

func printCommands(commands map[string]*Command, indent int) {
	// Aliases share the Command value; print each once under its names.
	printed := make(map[*Command][]string)
	for name, command := range commands {
		printed[command] = append(printed[command], name)
	}
	type entry struct {
		names   []string
		command *Command
	}
	var entries []entry
	for command, names := range printed {
		sort.Strings(names)
		entries = append(entries, entry{names: names, command: command})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].names[0] < entries[j].names[0]
	})

	prefix := strings.Repeat("  ", indent)
	for _, e := range entries {
		fmt.Fprintf(os.Stderr, "%s%s", prefix, strings.Join(e.names, " | "))
		if e.command.Description != "" {
			fmt.Fprintf(os.Stderr, "\t%s", e.command.Description)
		}
		fmt.Fprintln(os.Stderr)
		if len(e.command.Subs) > 0 {
			printCommands(e.command.Subs, indent+1)
		}
	}
}
