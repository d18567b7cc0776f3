package cmds

import "os"

// GlobalExecutor backs the package-level Define/Execute used for CLI
// argument registration spread across packages.
var GlobalExecutor = NewExecutor()

func Define(name string, command *Command) {
	GlobalExecutor.Define(name, command)
}

// Execute runs the global executor over args, exiting on error.
func Execute(args []string) {
	if err := GlobalExecutor.Execute(args); err != nil {
		GlobalExecutor.PrintUsage()
		println(err.Error())
		os.Exit(1)
	}
}
