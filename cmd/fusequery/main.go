package main

import (
	"os"

	"github.com/rs/zerolog"

	log "github.com/fuselabs/fusequery/internal/logging"
	"github.com/fuselabs/fusequery/pkg/cmd"
	"github.com/fuselabs/fusequery/pkg/cmd/server"
)

const programName = "fusequery"

func main() {
	// Set up root logger
	// This will typically be overwritten by the logging setup for a given command.
	log.SetGlobalLogger(zerolog.New(os.Stderr).Level(zerolog.InfoLevel))

	rootCmd := cmd.NewRootCommand(programName)
	cmd.RegisterRootFlags(rootCmd)

	serveConfig := server.DefaultConfig()
	serveCmd := cmd.NewServeCommand(programName, serveConfig)
	cmd.RegisterServeFlags(serveCmd, serveConfig)
	rootCmd.AddCommand(serveCmd)

	rootCmd.AddCommand(cmd.NewInspectCommand(programName, server.DefaultConfig()))
	rootCmd.AddCommand(cmd.NewVersionCommand(programName))

	if err := rootCmd.Execute(); err != nil {
		log.WithLevel(server.LevelForError(err)).Err(err).Msg("terminated with errors")
		os.Exit(1)
	}
}
