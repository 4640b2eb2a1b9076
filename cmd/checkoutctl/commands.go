package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"storefront/internal/app"
	"storefront/kit/db"
)

// bootFunc wires an App for one command run and returns its release func.
type bootFunc func(ctx context.Context, configPath string) (*app.App, func(), error)

func bootApp(ctx context.Context, configPath string) (*app.App, func(), error) {
	if configPath == "" {
		configPath = os.Getenv("CHECKOUT_CONFIG")
	}
	a, err := app.Boot(ctx, configPath, "checkoutctl")
	if err != nil {
		return nil, nil, err
	}
	return a, func() { _ = a.Close() }, nil
}

func newRootCmd(boot bootFunc) *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "checkoutctl",
		Short:         "Operate storefront payment transactions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (defaults to $CHECKOUT_CONFIG)")

	withApp := func(run func(cmd *cobra.Command, a *app.App, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, release, err := boot(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer release()
			return run(cmd, a, args)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "sweep",
			Short: "Reconcile processing transactions and report stuck ones",
			Args:  cobra.NoArgs,
			RunE: withApp(func(cmd *cobra.Command, a *app.App, _ []string) error {
				rep, err := a.Recovery.Sweep(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, rep)
			}),
		},
		&cobra.Command{
			Use:   "complete [gateway-order-id]",
			Short: "Settle one transaction from the provider's status",
			Args:  cobra.ExactArgs(1),
			RunE: withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
				res, err := a.Reconciler.Complete(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{
					"transactionId": res.TransactionID,
					"orderId":       res.OrderID,
					"status":        res.Status,
					"alreadyFinal":  res.AlreadyFinal,
				})
			}),
		},
		&cobra.Command{
			Use:   "show [transaction-id]",
			Short: "Print a transaction and its journaled events",
			Args:  cobra.ExactArgs(1),
			RunE: withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
				tx, err := a.Payments.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				history, err := a.Payments.History(cmd.Context(), args[0])
				if err != nil && !errors.Is(err, db.ErrNotFound) {
					return err
				}
				events := make([]map[string]any, 0, len(history))
				for _, rec := range history {
					events = append(events, map[string]any{"seq": rec.Seq, "event": rec.EventName, "at": rec.OccurredAt})
				}
				return printJSON(cmd, map[string]any{
					"transactionId":  tx.ID,
					"orderId":        tx.OrderID,
					"gatewayOrderId": tx.GatewayOrderID,
					"amount":         tx.Amount.StringFixed(2),
					"currency":       tx.Currency,
					"environment":    tx.Environment,
					"status":         tx.Status,
					"updatedAt":      tx.UpdatedAt,
					"events":         events,
				})
			}),
		},
		&cobra.Command{
			Use:   "order [order-id]",
			Short: "Print an order and its payment details",
			Args:  cobra.ExactArgs(1),
			RunE: withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
				o, err := a.Orders.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, o)
			}),
		},
	)
	return root
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
