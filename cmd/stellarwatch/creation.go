package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	stellarwatch "github.com/marwen-abid/stellar-watch-sdk-go"
	"github.com/marwen-abid/stellar-watch-sdk-go/watch"
)

var creationFollow bool

var creationCmd = &cobra.Command{
	Use:   "creation",
	Short: "Wait until the account exists on the ledger",
	Long: `Block until the account has received its first payment, print it, and exit.
With --follow, keep printing a line for every later payment as well.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runCreation(ctx, cmd.OutOrStdout(), e.logger, e.source, e.cfg.Account, creationFollow, watch.WithLogger(e.logger))
	},
}

func init() {
	creationCmd.Flags().BoolVarP(&creationFollow, "follow", "f", false, "keep watching after the account exists")
	rootCmd.AddCommand(creationCmd)
}

type creationLine struct {
	Account string `json:"account"`
	Exists  bool   `json:"exists"`
}

func runCreation(ctx context.Context, out io.Writer, logger *zap.Logger, src stellarwatch.EventSource, accountID string, follow bool, opts ...watch.Option) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	var signalled atomic.Bool
	lines := newLineWriter(out)
	opts = append(opts, watch.OnCreation(func(exists bool) {
		if !follow && signalled.Swap(true) {
			return
		}
		if err := lines.write(creationLine{Account: accountID, Exists: exists}); err != nil {
			logger.Error("failed to write creation signal", zap.Error(err))
		}
		if !follow {
			stop()
		}
	}))

	cw, err := watch.NewCreationWatch(src, accountID, opts...)
	if err != nil {
		return err
	}

	logger.Info("waiting for account", zap.String("account", accountID))
	return wait(ctx, cw)
}
