package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(scanCmd)
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one revocation scan and print the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.revocation().Run(ctx, a.cfg.ScanBatchSize, a.cfg.ScanMaxBatches)
		fmt.Fprintf(cmd.OutOrStdout(), "pages=%d checked=%d revoked=%d failed=%d\n",
			report.Pages, report.Checked, report.Revoked, report.Failed)
		return err
	},
}
