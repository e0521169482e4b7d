// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/luxfi/log"
	"github.com/luxfi/utils/ulimit"
	"github.com/luxfi/version"

	"github.com/luxfi/pegvm/vms/pegvm"
	"github.com/luxfi/pegvm/vms/pegvm/cmd/keygen"
	"github.com/luxfi/pegvm/vms/pegvm/cmd/run"
)

func main() {
	logger := log.Root()

	cmd := &cobra.Command{
		Use:     "pegvm",
		Short:   "Peg ledger and governance VM",
		Version: fmt.Sprintf("pegvm/%s [node=%s]", pegvm.Version, version.Current),
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return ulimit.Set(ulimit.DefaultFDLimit, logger)
		},
	}
	cmd.AddCommand(
		run.Command(logger),
		keygen.Command(),
	)
	cmd.SilenceUsage = true

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "command failed %v\n", err)
		os.Exit(1)
	}
}
