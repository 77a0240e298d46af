package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"habits/internal/cli"
)

var CLI struct {
	Migrate      cli.MigrateCmd      `cmd:"" help:"Create tables and indexes."`
	Seed         cli.SeedCmd         `cmd:"" help:"Load the public template catalogue."`
	Scan         cli.ScanCmd         `cmd:"" help:"Send due reminders once."`
	TelegramPoll cli.TelegramPollCmd `cmd:"" name:"telegram-poll" help:"Process pending /link messages once."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("habitsctl"),
		kong.Description("Operator commands for the habits service"),
		kong.UsageOnError(),
	)

	app, err := cli.NewContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer app.Log.Sync()

	if err := ctx.Run(app); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
