package main

import (
	"fmt"
	"os"

	"github.com/kjk/ledgerstore/config"
	"github.com/kjk/ledgerstore/log"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	ConfigPath string
	Verbose    bool

	// loaded in PersistentPreRunE
	config *config.Config
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "ledgerd",
		Short: "append-only store of marketplace ledger records",
		Long: `ledgerd stores products, purchase requests, escrows, proposals, nfts
and delivery proofs. Each record type is an append-only list.

Configuration is read from --config file and LEDGER_* environment variables
e.g. LEDGER_BACKEND_KIND=sqlite LEDGER_BACKEND_DATA_DIR=/var/lib/ledgerd`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			if opts.Verbose {
				c.Verbose = true
			}
			log.Verbose = c.Verbose
			// stdout is for command output
			log.Stdout = os.Stderr
			if c.LogDir != "" {
				log.Init(&log.Config{Dir: c.LogDir})
			}
			opts.config = c
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path of config file (yaml, toml or json)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose logging")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newAddCommand(opts))
	cmd.AddCommand(newGenAddressCommand())
	return cmd
}

// execute runs cmd and closes log files, also when cmd fails
func execute(cmd *cobra.Command) error {
	defer log.Close()
	return cmd.Execute()
}

func main() {
	if err := execute(newRootCommand()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}
