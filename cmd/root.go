package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	flagConfig   string
	flagOnce     bool
	flagPageSize int
	flagVerbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "meme-overflow",
	Short: "Tweet memes of StackExchange questions",
	Long:  "meme-overflow polls a StackExchange site for questions, captions each new one onto a meme template via imgflip, and tweets the result. Published questions are recorded so nothing is ever tweeted twice.",
	RunE:  runBot,
}

func init() {
	rootCmd.Flags().StringVar(&flagConfig, "config", "", "path to config file")
	rootCmd.Flags().BoolVar(&flagOnce, "once", false, "run a single publish cycle and exit")
	rootCmd.Flags().IntVar(&flagPageSize, "page-size", 0, "override questions fetched per cycle")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(blacklistCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("meme-overflow %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}
