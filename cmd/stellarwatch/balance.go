package main

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	stellarwatch "github.com/marwen-abid/stellar-watch-sdk-go"
	"github.com/marwen-abid/stellar-watch-sdk-go/core/account"
	"github.com/marwen-abid/stellar-watch-sdk-go/errors"
	"github.com/marwen-abid/stellar-watch-sdk-go/watch"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print the account balance and every change to it",
	Long: `Fetch the current balance from Horizon, print it, then print the new balance after
every transaction of the account. --asset selects the holding ("native" or "CODE:ISSUER").`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fetcher := account.NewHorizonBalanceFetcher(e.cfg.HorizonURL, account.WithHTTP(e.http.Horizon()))
		seed, err := fetcher.FetchBalance(ctx, e.cfg.Account, e.cfg.Asset)
		switch {
		case stderrors.Is(err, errors.ErrAccountNotFound):
			e.logger.Warn("account does not exist yet, starting from zero", zap.String("account", e.cfg.Account))
			seed = decimal.Zero
		case err != nil:
			return err
		}

		return runBalance(ctx, cmd.OutOrStdout(), e.logger, e.source, e.cfg.Account, seed,
			watch.WithLogger(e.logger),
			watch.WithBalanceAsset(e.cfg.Asset),
		)
	},
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

type balanceLine struct {
	Account string `json:"account"`
	Balance string `json:"balance"`
}

func runBalance(ctx context.Context, out io.Writer, logger *zap.Logger, src stellarwatch.EventSource, accountID string, seed decimal.Decimal, opts ...watch.Option) error {
	lines := newLineWriter(out)
	opts = append(opts, watch.OnBalance(func(b decimal.Decimal) {
		if err := lines.write(balanceLine{Account: accountID, Balance: b.String()}); err != nil {
			logger.Error("failed to write balance", zap.Error(err))
		}
	}))

	bw, err := watch.NewBalanceWatch(src, accountID, seed, opts...)
	if err != nil {
		return err
	}

	logger.Info("watching balance", zap.String("account", accountID), zap.Stringer("seed", seed))
	return wait(ctx, bw)
}
