// Package cmd is mediagate's command-line entrypoint: serve runs the
// supervisor and the two worker pools as a long-running process; submit
// POSTs a path to a running serve's trigger HTTP endpoint; retry and
// cancel are thin wrappers over internal/api.Adapter and status reads the
// store, all three operating directly against the on-disk store without
// going through HTTP.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	logger  = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).With().Timestamp().Logger()
	cfgFile string
)

// rootCmd is the base command when mediagate is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "mediagate <command>",
	Short: "Detect, scrub and offload media files to cold storage",
	Long: `mediagate takes media files submitted to it, scrubs them of
promotional/identifying material before they're safe to offload to
cold storage, and drives the detect → scrub → upload pipeline for them.

Example:
  mediagate serve
  mediagate submit /mnt/media/show/episode.mkv`,
}

// Execute adds all child commands to the root command and runs it. This
// is called by main.main() and only needs to happen once.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is $XDG_CONFIG_HOME/mediagate/config.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(statusCmd)
}
