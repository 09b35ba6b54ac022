package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kjk/ledgerstore/backend"
	"github.com/kjk/ledgerstore/client"
	"github.com/kjk/ledgerstore/httputil"
	"github.com/kjk/ledgerstore/ledger"
	"github.com/kjk/ledgerstore/log"
	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
)

// withLedger opens the backend from config, calls fn and closes the backend
func withLedger(opts *rootOptions, fn func(l *ledger.Ledger) error) error {
	c := opts.config
	ledgerOpts, err := c.LedgerOptions()
	if err != nil {
		return err
	}
	b, err := backend.Open(&c.Backend)
	if err != nil {
		return fmt.Errorf("failed to open %s backend: %w", c.Backend.Kind, err)
	}
	defer func() {
		log.IfErrf(backend.Close(b))
	}()
	l, err := ledger.New(b, ledgerOpts)
	if err != nil {
		return err
	}
	return fn(l)
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "serve ledger over http",
		Long: `Serve ledger over http until interrupted:

  GET  /api/{domain}  list records as json
  POST /api/{domain}  append a record sent as json

Domains: products, requests, escrows, proposals, nfts, deliveries`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(opts, func(l *ledger.Ledger) error {
				ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				handler := httputil.LogRequests(ledger.NewHandler(l))
				log.Logf("ledgerd: %s backend, data dir: '%s'\n", opts.config.Backend.Kind, opts.config.Backend.DataDir)
				return httputil.Serve(ctx, opts.config.Addr, handler)
			})
		},
	}
}

type recordsOptions struct {
	*rootOptions
	// talk to a running server instead of opening the backend
	Remote bool
}

func newListCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &recordsOptions{rootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:       "list <domain>",
		Short:     "print all records of a domain as json",
		Example:   "  ledgerd list products\n  ledgerd list nfts --remote",
		Args:      cobra.ExactArgs(1),
		ValidArgs: ledger.Domains,
		RunE: func(cmd *cobra.Command, args []string) error {
			var d []byte
			var err error
			ctx := cmd.Context()
			if opts.Remote {
				d, err = client.New(opts.config.BaseURL()).ListRaw(ctx, args[0])
			} else {
				err = withLedger(opts.rootOptions, func(l *ledger.Ledger) error {
					d, err = l.ListJSON(ctx, args[0])
					return err
				})
			}
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(pretty.Pretty(d))
			return err
		},
	}
	cmd.Flags().BoolVar(&opts.Remote, "remote", false, "list from server at addr")
	return cmd
}

func newAddCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &recordsOptions{rootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "add <domain> <json>",
		Short: "append a record to a domain",
		Example: `  ledgerd add nfts '{"owner":"GAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAWHF","score":"100"}'
  ledgerd add proposals --remote '{"proposer":"G...","description":"fund_school"}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			domain, d := args[0], []byte(args[1])
			ctx := cmd.Context()
			if opts.Remote {
				return client.New(opts.config.BaseURL()).AddRaw(ctx, domain, d)
			}
			return withLedger(opts.rootOptions, func(l *ledger.Ledger) error {
				return l.AddJSON(ctx, domain, d)
			})
		},
	}
	cmd.Flags().BoolVar(&opts.Remote, "remote", false, "add via server at addr")
	return cmd
}

func newGenAddressCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "gen-address",
		Short: "print a random account address, useful for testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), ledger.GenerateAddress())
			return err
		},
	}
}
