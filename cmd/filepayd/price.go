package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/bitfsorg/filepay-go/registry"
)

var (
	priceSize string
	priceRate uint64
)

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Quote the storage price for a file size",
	Long: "Quote the storage price for a file size. The size accepts units\n" +
		"such as 512KiB or 2.5 MB. The rate defaults to the configured rate.",
	Example: "  filepayd price --size 10MiB\n  filepayd price --size 4096 --rate 3",
	RunE:    runPrice,
}

func init() {
	priceCmd.Flags().StringVar(&priceSize, "size", "", "file size, e.g. 4096 or 10MiB")
	priceCmd.Flags().Uint64Var(&priceRate, "rate", 0, "rate per byte (default from configuration)")
	_ = priceCmd.MarkFlagRequired("size")
}

func runPrice(cmd *cobra.Command, args []string) error {
	size, err := humanize.ParseBytes(priceSize)
	if err != nil {
		return fmt.Errorf("invalid --size %q: %w", priceSize, err)
	}
	rate := priceRate
	if rate == 0 {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		rate = cfg.Ledger.RatePerByte
	}
	price, err := registry.CalculateStoragePrice(size, rate)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s bytes) at %d/byte: %s units\n",
		humanize.IBytes(size), humanize.Comma(int64(size)), rate, humanize.Comma(int64(price)))
	return nil
}
