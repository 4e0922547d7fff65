package cmd

import (
	"github.com/BioHazard786/Roomdrop/internal/peer"
	"github.com/BioHazard786/Roomdrop/internal/room"
	"github.com/BioHazard786/Roomdrop/internal/ui"
	"github.com/spf13/cobra"
)

var joinCmd = &cobra.Command{
	Use:     "join <code|link> [files or directories...]",
	Aliases: []string{"receive", "r"},
	Short:   "Join a room by code or invite link",
	Long: `Join an existing room. The room can be given as a bare code, a web link or
a roomdrop:// deep link. Files given after the room are offered to the peer.

Examples:
  roomdrop join ABC123
  roomdrop join https://roomdrop.qzz.io/r/ABC123
  roomdrop join roomdrop://join/ABC123 --yes --dir ~/Downloads
  roomdrop join ABC123 --zip`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inv, err := room.ResolveInvite(args[0])
		if err != nil {
			return err
		}
		if inv.RoomID != args[0] {
			ui.PrintSuccessf("Joining room %s", inv.RoomID)
		}

		sources, cleanup, err := prepareFiles(args[1:])
		if err != nil {
			return err
		}
		defer cleanup()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		s := &session{cfg: cfg, roomID: inv.RoomID, role: peer.Answerer, sources: sources}
		return s.run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(joinCmd)
}
