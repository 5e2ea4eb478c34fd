// Command evalctl is the operator tool for the evaluation workflow: it prints
// the classification catalog, mints development tokens, previews generated
// reports in the terminal and seeds the user directory.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, args []string, out io.Writer) error
}

var commands = []command{
	{name: "catalog", usage: "print product types, classes and weights", run: runCatalog},
	{name: "token", usage: "mint a bearer token for a user and role", run: runToken},
	{name: "preview", usage: "render a markdown report in the terminal", run: runPreview},
	{name: "seed-users", usage: "insert users from a YAML file", run: runSeedUsers},
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := dispatch(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "evalctl:", err)
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" {
		printUsage(out)
		return nil
	}
	for _, c := range commands {
		if c.name == args[0] {
			return c.run(ctx, args[1:], out)
		}
	}
	printUsage(out)
	return fmt.Errorf("unknown command %q", args[0])
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "usage: evalctl <command> [flags]")
	fmt.Fprintln(out)
	for _, c := range commands {
		fmt.Fprintf(out, "  %-12s %s\n", c.name, c.usage)
	}
}
