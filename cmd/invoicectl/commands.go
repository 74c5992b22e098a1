package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"invoicecore/internal/codec"
	"invoicecore/internal/config"
	"invoicecore/internal/domain"
	"invoicecore/internal/invoice"
	"invoicecore/internal/tax"
	"invoicecore/internal/words"
)

var version = "0.1.0"

func newRootCmd(cfg config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:          "invoicectl",
		Short:        "Offline tools for the GST invoice engine",
		Version:      version,
		SilenceUsage: true,
	}
	root.AddCommand(newWordsCmd(), newGSTCmd(cfg), newDecodeCmd())
	return root
}

func newWordsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "words <amount>",
		Short:   "Spell an amount in Indian numbering (lakh, crore)",
		Example: "  invoicectl words 1239\n  invoicectl words 12345678.90",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseFloat(strings.TrimSpace(args[0]), 64)
			if err != nil {
				return fmt.Errorf("amount must be a number: %w", err)
			}
			text, err := words.AmountInWords(amount)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

type gstQuote struct {
	SupplyType   domain.SupplyType   `json:"supply_type"`
	Breakdown    domain.GstBreakdown `json:"breakdown"`
	TotalWithTax float64             `json:"total_with_tax"`
	RoundedTotal float64             `json:"rounded_total"`
	RoundOff     float64             `json:"round_off"`
	Words        string              `json:"amount_in_words"`
}

func newGSTCmd(cfg config.Config) *cobra.Command {
	var (
		sellerState string
		buyerState  string
		rate        float64
		noRound     bool
	)
	cmd := &cobra.Command{
		Use:     "gst <taxable-amount>",
		Short:   "Quote GST for a taxable amount",
		Example: "  invoicectl gst 1000 --seller-state 29 --buyer-state 27 --rate 0.12",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taxable, err := strconv.ParseFloat(strings.TrimSpace(args[0]), 64)
			if err != nil {
				return fmt.Errorf("taxable amount must be a number: %w", err)
			}
			supply := tax.ClassifySupply(optional(sellerState), optional(buyerState))
			breakdown, err := tax.ComputeGST(taxable, supply, rate)
			if err != nil {
				return err
			}
			total := taxable + breakdown.TotalTax
			rounded, adjustment := invoice.RoundOff(total, !noRound)
			text, err := words.AmountInWords(rounded)
			if err != nil {
				return err
			}
			return writeJSON(cmd, gstQuote{
				SupplyType:   supply,
				Breakdown:    breakdown,
				TotalWithTax: total,
				RoundedTotal: rounded,
				RoundOff:     adjustment,
				Words:        text,
			})
		},
	}
	cmd.Flags().StringVar(&sellerState, "seller-state", cfg.SellerStateCode, "seller state code (defaults to SELLER_STATE_CODE)")
	cmd.Flags().StringVar(&buyerState, "buyer-state", "", "buyer state code")
	cmd.Flags().Float64Var(&rate, "rate", cfg.GSTRate, "GST rate as a fraction, e.g. 0.18")
	cmd.Flags().BoolVar(&noRound, "no-round", !cfg.RoundOffEnabled, "skip rounding to the nearest rupee")
	return cmd
}

func newDecodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode stored record text into JSON",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "items <text>",
			Short: "Decode an invoice item list",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return writeJSON(cmd, codec.DecodeInvoiceItems(args[0]))
			},
		},
		&cobra.Command{
			Use:   "gst <text>",
			Short: "Decode a GST breakdown list",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return writeJSON(cmd, codec.DecodeGstBreakdowns(args[0]))
			},
		},
		&cobra.Command{
			Use:   "customer <text>",
			Short: "Decode a customer snapshot",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				customer, ok := codec.DecodeCustomer(args[0])
				if !ok {
					return fmt.Errorf("malformed customer record")
				}
				return writeJSON(cmd, customer)
			},
		},
	)
	return cmd
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func writeJSON(cmd *cobra.Command, payload any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
