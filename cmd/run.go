package cmd

import (
	"github.com/songbird-discord/songbird/songbird"
	"github.com/spf13/cobra"
	"log"
)

var (
	runCmd = &cobra.Command{
		Use:   "run [flags]",
		Short: "Starts the Songbird bot and (optionally) the HTTP API",
		Run: func(cmd *cobra.Command, _ []string) {
			ctx := cmd.Context()
			bot, err := songbird.New(cfg)
			if err != nil {
				log.Fatalf("error creating songbird: %s", err.Error())
			}

			if err = bot.Run(ctx); err != nil {
				log.Fatalf("error running songbird: %s", err.Error())
			}
		},
	}
)

//goland:noinspection GoLinter
func init() {
	rootCmd.AddCommand(runCmd)
}
