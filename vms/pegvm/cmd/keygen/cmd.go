// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package keygen

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/luxfi/ids"

	"github.com/luxfi/pegvm/vms/pegvm/keys"
)

const SeedKey = "seed"

func AddFlags(flags *pflag.FlagSet) {
	flags.String(SeedKey, string(keys.DeploySeed), "Seed of the derived deploy key")
}

func ParseFlags(flags *pflag.FlagSet, args []string) ([]byte, error) {
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	seed, err := flags.GetString(SeedKey)
	if err != nil {
		return nil, err
	}
	return []byte(seed), nil
}

// Keys are the fixed keys of a peg chain.
type Keys struct {
	Deploy    ids.ID `json:"deploy"`
	AntiFraud ids.ID `json:"antiFraud"`
	Model     ids.ID `json:"model"`
}

func Derive(seed []byte) Keys {
	return Keys{
		Deploy:    keys.Derive(keys.SHA256, seed),
		AntiFraud: keys.Derive(keys.SHA256, keys.AntiFraudSeed),
		Model:     keys.Derive(keys.SHA256, keys.ModelSeed),
	}
}

func Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "keygen",
		Short: "Prints the keys derived for a peg chain",
		RunE: func(c *cobra.Command, args []string) error {
			seed, err := ParseFlags(c.Flags(), args)
			if err != nil {
				return err
			}
			return write(c.OutOrStdout(), Derive(seed))
		},
	}
	AddFlags(c.Flags())
	return c
}

func write(w io.Writer, k Keys) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(k)
}
