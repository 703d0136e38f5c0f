package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func recalcCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recalc",
		Short: "Recompute a shipment's totals and prorate them across its invoices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			orgID, err := idFlag(cmd, "org")
			if err != nil {
				return err
			}
			shipmentID, err := idFlag(cmd, "id")
			if err != nil {
				return err
			}

			return withServices(cmd.Context(), func(svc services) error {
				summary, err := svc.Proration.RecalculateShipment(cmd.Context(), orgID, shipmentID)
				if err != nil {
					return fmt.Errorf("recalculate shipment %s: %w", shipmentID, err)
				}
				return writeJSON(cmd.OutOrStdout(), summary)
			})
		},
	}
	cmd.Flags().String("id", "", "shipment id")
	return cmd
}

func previewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show a declaration's duty and levy breakdown without saving it",
		Long: `Preview computes the duty and levy breakdown of a declaration.

With --xlsx the breakdown is written as a workbook instead of JSON.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			orgID, err := idFlag(cmd, "org")
			if err != nil {
				return err
			}
			declarationID, err := idFlag(cmd, "id")
			if err != nil {
				return err
			}
			xlsxPath, _ := cmd.Flags().GetString("xlsx")

			return withServices(cmd.Context(), func(svc services) error {
				if xlsxPath != "" {
					raw, err := svc.Duty.Export(cmd.Context(), orgID, declarationID)
					if err != nil {
						return fmt.Errorf("export declaration %s: %w", declarationID, err)
					}
					if err := os.WriteFile(xlsxPath, raw, 0o644); err != nil {
						return err
					}
					_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", xlsxPath)
					return err
				}

				res, err := svc.Duty.Preview(cmd.Context(), orgID, declarationID)
				if err != nil {
					return fmt.Errorf("preview declaration %s: %w", declarationID, err)
				}
				return writeJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().String("id", "", "declaration id")
	cmd.Flags().String("xlsx", "", "write the breakdown workbook to this path")
	return cmd
}

func applyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Compute a declaration's breakdown and store it on the declaration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			orgID, err := idFlag(cmd, "org")
			if err != nil {
				return err
			}
			declarationID, err := idFlag(cmd, "id")
			if err != nil {
				return err
			}

			return withServices(cmd.Context(), func(svc services) error {
				res, err := svc.Duty.Apply(cmd.Context(), orgID, declarationID)
				if err != nil {
					return fmt.Errorf("apply declaration %s: %w", declarationID, err)
				}
				return writeJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().String("id", "", "declaration id")
	return cmd
}

func matchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match an invoice's items to a declaration's items",
		RunE: func(cmd *cobra.Command, _ []string) error {
			orgID, err := idFlag(cmd, "org")
			if err != nil {
				return err
			}
			invoiceID, err := idFlag(cmd, "invoice")
			if err != nil {
				return err
			}
			declarationID, err := idFlag(cmd, "declaration")
			if err != nil {
				return err
			}

			return withServices(cmd.Context(), func(svc services) error {
				outcome, err := svc.Matching.Match(cmd.Context(), orgID, invoiceID, declarationID)
				if err != nil {
					return fmt.Errorf("match invoice %s to declaration %s: %w", invoiceID, declarationID, err)
				}
				return writeJSON(cmd.OutOrStdout(), outcome)
			})
		},
	}
	cmd.Flags().String("invoice", "", "invoice id")
	cmd.Flags().String("declaration", "", "declaration id")
	return cmd
}
