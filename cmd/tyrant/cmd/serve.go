package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tyrant/src/server"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat HTTP API",
	Long: `Serve the chat HTTP API.

Routes:
  POST /api/chat                        generate a reply
  GET  /api/health                      liveness probe
  GET  /api/personalities               available personalities
  GET  /api/conversations               recent stored conversations
  GET  /api/conversations/:id           one conversation with its messages
  POST /api/conversations/:id/feedback  attach feedback to a conversation`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		settings, err := loadSettings()
		if err != nil {
			return err
		}

		store, err := openHistory(ctx, settings)
		if err != nil {
			return err
		}

		var opts []server.Option
		if store != nil {
			defer store.Close()
			opts = append(opts, server.WithHistory(store))
		}

		s := server.New(settings, loadRegistry(), opts...)

		errCh := make(chan error, 1)
		go func() {
			errCh <- s.Start(settings.Server.Addr)
		}()
		fmt.Printf("GPTyrant API listening on %s\n", settings.Server.Addr)

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default :3001)")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}
