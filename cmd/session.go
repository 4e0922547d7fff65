package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/BioHazard786/Roomdrop/internal/clipboard"
	"github.com/BioHazard786/Roomdrop/internal/config"
	"github.com/BioHazard786/Roomdrop/internal/files"
	"github.com/BioHazard786/Roomdrop/internal/peer"
	"github.com/BioHazard786/Roomdrop/internal/room"
	"github.com/BioHazard786/Roomdrop/internal/signaling"
	"github.com/BioHazard786/Roomdrop/internal/transfer"
	"github.com/BioHazard786/Roomdrop/internal/ui"
)

var _ room.Observer = (*ui.Dashboard)(nil)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.Options{
		ConfigPath: flagConfig,
		Domain:     flagDomain,
		RelayURL:   flagRelayURL,
		STUNServer: flagSTUN,
		TURNServer: flagTURN,
		TURNUser:   flagTURNUser,
		TURNPass:   flagTURNPass,
		ForceRelay: flagRelay,
	})
	if err != nil {
		return nil, transfer.NewError("load config", err)
	}

	if cfg.ForceRelay && cfg.GetTURNServers() == nil {
		return nil, fmt.Errorf("cannot force relay mode without TURN server configured")
	}
	return cfg, nil
}

// prepareFiles validates paths, shows them and archives directories into a
// temporary directory. The returned cleanup removes the archives.
func prepareFiles(paths []string) ([]transfer.FileSource, func(), error) {
	if len(paths) == 0 {
		return nil, func() {}, nil
	}

	s := ui.NewWorkSpinner("Validating files...").Start()
	infos, err := files.ValidateFiles(paths)
	s.Stop()
	if err != nil {
		return nil, nil, err
	}

	items := make([]ui.FileTableItem, len(infos))
	for i, f := range infos {
		items[i] = ui.FileTableItem{Name: f.Name, Size: f.Size, Type: f.Type}
	}
	fmt.Println()
	ui.RenderFileTable(items)

	tempDir, err := os.MkdirTemp("", "roomdrop-send-*")
	if err != nil {
		return nil, nil, transfer.NewError("create temp dir", err)
	}
	cleanup := func() { os.RemoveAll(tempDir) }

	s = ui.NewWorkSpinner("Preparing files...").Start()
	sources, err := files.Sources(infos, tempDir)
	s.Stop()
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return sources, cleanup, nil
}

// session is one interactive room run from the command line.
type session struct {
	cfg     *config.Config
	roomID  string
	role    peer.Role
	sources []transfer.FileSource
}

func (s *session) run(ctx context.Context) error {
	logger := slog.Default().With("room", s.roomID)

	outDir := flagDir
	if outDir == "" {
		outDir = s.cfg.DownloadDir
	}
	saveDir := outDir
	if flagZip {
		tempDir, err := os.MkdirTemp("", "roomdrop-receive-*")
		if err != nil {
			return transfer.NewError("create temp dir", err)
		}
		defer os.RemoveAll(tempDir)
		saveDir = tempDir
	}

	var clip room.Clipboard
	if flagClipboard {
		sys, err := clipboard.New()
		if err != nil {
			ui.PrintWarningf("Clipboard sync disabled: %v", err)
		} else {
			clip = sys
		}
	}

	fmt.Println()
	spin := ui.NewConnectionSpinner("Connecting to relay...").Start()
	client := signaling.NewClient(s.cfg.WebSocketURL, signaling.WithLogger(logger))
	if err := client.Connect(ctx); err != nil {
		spin.Stop()
		return transfer.WrapError("connect to relay", transfer.ErrConnectionFailed, err.Error())
	}
	defer client.Close()
	spin.Stop()

	dash := ui.NewDashboard(ui.DashboardConfig{
		RoomID:     s.roomID,
		Role:       s.role,
		AutoAccept: flagYes,
		Clipboard:  clip != nil,
	})

	pcfg := peer.ConfigFrom(s.cfg)
	manager := room.NewManager(room.Config{
		Relay:             client,
		NewSession:        room.PeerSessions(pcfg),
		Transfer:          s.cfg.Transfer,
		Chooser:           transfer.DirectoryChooser{Dir: saveDir},
		Saver:             transfer.DirectorySaver{Dir: saveDir},
		Clipboard:         clip,
		ClipboardInterval: s.cfg.ClipboardInterval,
		Observer:          dash,
		Logger:            logger,
	})
	defer manager.CloseAll(context.Background())

	ctrl, err := manager.CreateOrJoin(ctx, s.roomID, s.role)
	if err != nil {
		if errors.Is(err, signaling.ErrRoomFull) {
			return transfer.WrapError("join room", err, s.roomID)
		}
		return transfer.NewError("join room", err)
	}
	dash.Bind(ctrl)

	if len(s.sources) > 0 {
		if _, err := ctrl.AddFiles(ctx, s.sources...); err != nil {
			return err
		}
	}
	if clip != nil {
		if err := ctrl.SetClipboardSync(ctx, true); err != nil {
			ui.PrintWarningf("Clipboard sync disabled: %v", err)
		}
	}

	go func() {
		<-ctx.Done()
		dash.Quit()
	}()
	if err := dash.Run(); err != nil {
		return transfer.NewError("dashboard", err)
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := manager.CloseAll(closeCtx); err != nil {
		logger.Warn("close room", "error", err)
	}

	rows := dash.Summary()
	if len(rows) > 0 {
		fmt.Println()
		ui.RenderSummary(os.Stdout, s.roomID, rows)
	}

	if flagZip && received(rows) {
		return bundle(saveDir, outDir)
	}
	return nil
}

func received(rows []ui.SummaryRow) bool {
	for _, r := range rows {
		if r.Job.Direction == transfer.Receive && r.Job.Status == transfer.StatusCompleted {
			return true
		}
	}
	return false
}

// bundle zips everything received into outDir.
func bundle(from, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return transfer.NewFileError("create output dir", outDir, err)
	}
	zipName := filepath.Join(outDir, fmt.Sprintf("roomdrop-download-%d.zip", time.Now().UnixMilli()))

	fmt.Println()
	s := ui.NewWorkSpinner("Zipping files...").Start()
	if err := files.ZipDirectory(from, zipName); err != nil {
		s.Stop()
		return transfer.NewError("zip files", err)
	}
	s.Success(fmt.Sprintf("Files zipped to %s", zipName))
	return nil
}
