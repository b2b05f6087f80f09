package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func peersCmd() *cobra.Command {
	var keyFile string

	cmd := &cobra.Command{
		Use:   "peers",
		Short: "List configured peer VASPs and their circuit breaker state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			a, err := newApp(context.Background(), cfg, keyFile)
			if err != nil {
				return err
			}

			snapshot := a.registry.BreakerSnapshot()

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ADDRESS\tENDPOINT\tBREAKER")
			for _, p := range cfg.Peers {
				state := snapshot[p.Address]
				if state == "" {
					state = "closed"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", p.Address, p.Endpoint, state)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&keyFile, "key", "vaspd.key", "path to this VASP's Ed25519 seed file")
	return cmd
}
