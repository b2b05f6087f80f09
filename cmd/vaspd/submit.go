package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/oriys/offchain/internal/domain"
	"github.com/oriys/offchain/internal/payment"
)

func submitCmd() *cobra.Command {
	var (
		keyFile string
		peerHex string
		sender  string
		receive string
		amount  int64
		ccy     string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a payment-init command to a peer and wait for its outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			peer, err := domain.ParseAddress(peerHex)
			if err != nil {
				return fmt.Errorf("--peer: %w", err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			a, err := newApp(ctx, cfg, keyFile)
			if err != nil {
				return err
			}

			init, err := payment.NewInit(sender, receive, ccy, amount)
			if err != nil {
				return err
			}

			resp, err := a.registry.Submit(ctx, peer, init)
			if err != nil {
				return fmt.Errorf("submit: %w", err)
			}

			fmt.Printf("status=%s command_seq=%v version=%s\n", resp.Status, deref(resp.CommandSeq), init.Version.String())
			if resp.Error != nil {
				fmt.Printf("error: %s\n", resp.Error.Error())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&keyFile, "key", "vaspd.key", "path to this VASP's Ed25519 seed file")
	cmd.Flags().StringVar(&peerHex, "peer", "", "hex-encoded peer VASP address (required)")
	cmd.Flags().StringVar(&sender, "from", "", "sender account identifier")
	cmd.Flags().StringVar(&receive, "to", "", "recipient account identifier")
	cmd.Flags().Int64Var(&amount, "amount", 0, "payment amount, smallest currency unit")
	cmd.Flags().StringVar(&ccy, "currency", "USD", "ISO 4217 currency code")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "how long to wait for the peer's terminal response")
	cmd.MarkFlagRequired("peer")

	return cmd
}

func deref(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
