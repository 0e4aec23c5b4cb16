package main

import (
	"guild_ledger/internal/app"
	"guild_ledger/internal/cli"

	"github.com/rs/zerolog/log"
)

func main() {
	app.SetupEnvironment()
	log.Debug().Msg("Starting application")

	cli.Execute()
}
