package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	commander.Register(&summaryCmd{}, "ledger")
	commander.Register(&monthlyCmd{}, "ledger")
	commander.Register(&databasesCmd{}, "ledger")

	commander.Register(&positionsCmd{}, "brokerage")
	commander.Register(&closedCmd{}, "brokerage")
	commander.Register(&ordersCmd{}, "brokerage")

	commander.Register(&snapshotCmd{}, "snapshots")

	commander.ImportantFlag("config")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
