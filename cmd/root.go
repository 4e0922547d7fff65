package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/BioHazard786/Roomdrop/internal/ui"
	"github.com/BioHazard786/Roomdrop/internal/version"
	"github.com/spf13/cobra"
)

var (
	flagConfig    string
	flagDomain    string
	flagRelayURL  string
	flagSTUN      string
	flagTURN      string
	flagTURNUser  string
	flagTURNPass  string
	flagRelay     bool
	flagDir       string
	flagZip       bool
	flagClipboard bool
	flagYes       bool
)

var rootCmd = &cobra.Command{
	Use:   "roomdrop",
	Short: "Share files and clipboard text peer-to-peer through a room code",
	Long: `Roomdrop connects two devices through a short room code. A relay only helps
them find each other; files and clipboard text then travel over a direct
WebRTC data channel, with pause, resume and cancel for every file.`,
	Version: version.Version,
}

// Execute runs the root command. Errors are printed and exit with status 1.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "YAML config file (default $ROOMDROP_CONFIG)")
	pf.StringVar(&flagDomain, "domain", "", "Custom domain")
	pf.StringVar(&flagRelayURL, "relay-url", "", "Relay websocket URL (default wss://<domain>/ws)")
	pf.StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	pf.StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	pf.StringVar(&flagTURNUser, "turn-user", "", "TURN username")
	pf.StringVar(&flagTURNPass, "turn-pass", "", "TURN password")
	pf.BoolVarP(&flagRelay, "relay", "r", false, "Force relay mode")
	pf.StringVarP(&flagDir, "dir", "d", "", "Directory to save received files")
	pf.BoolVarP(&flagZip, "zip", "z", false, "Bundle received files into one zip")
	pf.BoolVarP(&flagClipboard, "clipboard", "c", false, "Sync clipboard text with the peer")
	pf.BoolVarP(&flagYes, "yes", "y", false, "Download every offered file without asking")
}
