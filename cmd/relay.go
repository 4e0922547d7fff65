package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BioHazard786/Roomdrop/internal/relay"
	"github.com/BioHazard786/Roomdrop/internal/server"
	"github.com/BioHazard786/Roomdrop/internal/ui"
	"github.com/spf13/cobra"
)

var flagAddr string

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the rendezvous relay server",
	Long: `Run the websocket relay peers use to find each other. It only forwards
handshake messages between the two members of a room; file data never
passes through it.

Endpoints:
  GET /health   liveness check
  GET /ws       websocket relay`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRelay(cmd.Context(), flagAddr)
	},
}

func runRelay(ctx context.Context, addr string) error {
	logger := slog.Default().With("component", "relay")

	hub := relay.NewHub(logger)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           server.NewRouter(hub, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		ui.PrintInfof("Relay listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func init() {
	rootCmd.AddCommand(relayCmd)
	relayCmd.Flags().StringVar(&flagAddr, "addr", ":8080", "Listen address")
}
