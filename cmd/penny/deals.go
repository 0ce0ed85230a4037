package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pennyhq/penny-companion/internal/deals"
)

func dealsCmd() *cobra.Command {
	var currentPrice float64

	cmd := &cobra.Command{
		Use:   "deals <product name>",
		Short: "Look up cheaper offers for a product",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			query := strings.Join(args, " ")
			client := deals.NewClient(cfg.Deals.BaseURL, cfg.Deals.APIKey)

			result := client.FindCheaper(cmd.Context(), query, currentPrice)
			if !result.Found() {
				fmt.Printf("Deal lookup unavailable: %s\n", result.Unavailable)
				return nil
			}
			if len(result.Deals) == 0 {
				fmt.Println("You've already found the best price!")
				return nil
			}

			fmt.Printf("Cheaper offers for %q:\n", deals.CleanQuery(query))
			for _, deal := range result.Deals {
				seller := deal.Seller
				if seller == "" {
					seller = "Another Store"
				}
				fmt.Printf("  $%.2f  %s  %s\n", deal.Price, seller, deal.URL)
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&currentPrice, "price", 0, "current price to beat (required)")
	_ = cmd.MarkFlagRequired("price")
	return cmd
}
