package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	stellarwatch "github.com/marwen-abid/stellar-watch-sdk-go"
	"github.com/marwen-abid/stellar-watch-sdk-go/watch"
)

var (
	paymentsCursor    string
	paymentsDirection string
	paymentsMin       string
)

var paymentsCmd = &cobra.Command{
	Use:   "payments",
	Short: "Stream the account's payments",
	Long: `Stream every transaction of the account that carries a payment or account creation.
Without --cursor the stream resumes from the cursor database, or from the beginning of history.
Use --cursor now to skip history.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()

		opts, err := paymentOptions(e.cfg.Asset, paymentsDirection, paymentsMin)
		if err != nil {
			return err
		}
		opts = append(opts,
			watch.WithLogger(e.logger),
			watch.WithCursorStore(e.store, "payments:"+e.cfg.Account),
		)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runPayments(ctx, cmd.OutOrStdout(), e.logger, e.source, e.cfg.Account, paymentsCursor, opts...)
	},
}

func init() {
	paymentsCmd.Flags().StringVar(&paymentsCursor, "cursor", "", `paging token to resume after, or "now"`)
	paymentsCmd.Flags().StringVar(&paymentsDirection, "direction", "", "only incoming (in) or outgoing (out) payments")
	paymentsCmd.Flags().StringVar(&paymentsMin, "min-amount", "", "only payments of at least this amount")
	rootCmd.AddCommand(paymentsCmd)
}

func paymentOptions(asset, direction, minAmount string) ([]watch.Option, error) {
	var filters []watch.PaymentFilter
	if asset != "" {
		filters = append(filters, watch.ForAsset(asset))
	}

	switch direction {
	case "":
	case "in":
		filters = append(filters, watch.Incoming())
	case "out":
		filters = append(filters, watch.Outgoing())
	default:
		return nil, fmt.Errorf("invalid --direction %q: want in or out", direction)
	}

	if minAmount != "" {
		min, err := decimal.NewFromString(minAmount)
		if err != nil {
			return nil, fmt.Errorf("invalid --min-amount %q: %w", minAmount, err)
		}
		filters = append(filters, watch.MinAmount(min))
	}

	if len(filters) == 0 {
		return nil, nil
	}
	return []watch.Option{watch.WithFilter(filters...)}, nil
}

type paymentLine struct {
	Cursor    string    `json:"cursor"`
	Hash      string    `json:"hash"`
	Memo      string    `json:"memo,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Type      string    `json:"type"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Asset     string    `json:"asset"`
	Amount    string    `json:"amount"`
	Debit     bool      `json:"debit"`
}

func newPaymentLine(p watch.PaymentInfo) paymentLine {
	first := p.Payment()
	return paymentLine{
		Cursor:    p.Cursor,
		Hash:      p.Hash,
		Memo:      p.Memo,
		CreatedAt: p.CreatedAt,
		Type:      string(first.Type),
		From:      first.From,
		To:        first.To,
		Asset:     first.Asset,
		Amount:    first.Amount.String(),
		Debit:     p.Debit(),
	}
}

func runPayments(ctx context.Context, out io.Writer, logger *zap.Logger, src stellarwatch.EventSource, account, cursor string, opts ...watch.Option) error {
	lines := newLineWriter(out)
	opts = append(opts, watch.OnPayment(func(p watch.PaymentInfo) {
		if err := lines.write(newPaymentLine(p)); err != nil {
			logger.Error("failed to write payment", zap.String("cursor", p.Cursor), zap.Error(err))
		}
	}))

	pw, err := watch.NewPaymentWatch(src, account, cursor, opts...)
	if err != nil {
		return err
	}

	logger.Info("watching payments", zap.String("account", account), zap.String("cursor", pw.Cursor()))
	err = wait(ctx, pw)
	logger.Info("stopped", zap.String("cursor", pw.Cursor()))
	return err
}
