package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	cfgFile    string
	listenAddr string
)

var rootCmd = &cobra.Command{
	Use:   "framecast",
	Short: "Framecast frame distributor",
	Long:  `Framecast - captures raw video frames, converts them to I420, and fans them out to WebRTC tracks and preview clients`,
}

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Start the capture and distribution pipeline",
	Run: func(cmd *cobra.Command, args []string) {
		runStream()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Framecast v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/framecast/framecast.yaml)")
	rootCmd.PersistentFlags().StringVar(&listenAddr, "listen", "", "preview listen address (overrides config)")

	rootCmd.AddCommand(streamCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
