package cmd

import (
	"github.com/BioHazard786/Roomdrop/internal/peer"
	"github.com/BioHazard786/Roomdrop/internal/room"
	"github.com/BioHazard786/Roomdrop/internal/ui"
	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:     "create [files or directories...]",
	Aliases: []string{"send", "s"},
	Short:   "Create a room and offer files to whoever joins",
	Long: `Create a room with a fresh six-character code and wait for a peer.
Files given on the command line are offered as soon as the peer connects;
directories are zipped first.

Examples:
  roomdrop create
  roomdrop create report.pdf photos/
  roomdrop create --clipboard
  roomdrop create --relay file.txt`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sources, cleanup, err := prepareFiles(args)
		if err != nil {
			return err
		}
		defer cleanup()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		code := room.NewCode()
		ui.RenderRoomInfo(code, cfg.GetRoomLink(code), "roomdrop://join/"+code)

		s := &session{cfg: cfg, roomID: code, role: peer.Offerer, sources: sources}
		return s.run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
}
