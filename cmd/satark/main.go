package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/opencivic/satark/pkg/client"
)

// version is overridden at release time via -ldflags "-X main.version=...".
var version = "dev"

var serverURL string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "satark",
	Short: "Satark incident ledger CLI",
	Long: `satark is the command-line interface for the Satark tamper-evident
incident ledger.

It can submit bribe-solicitation reports, verify chain and entry
integrity, resolve public verification codes, and export audit
snapshots from a running satarkd instance.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		viper.SetEnvPrefix("satark")
		viper.AutomaticEnv()
		if serverURL == "" {
			serverURL = viper.GetString("server_url")
		}
		if serverURL == "" {
			serverURL = "http://localhost:8080"
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "satarkd base URL (default http://localhost:8080, env SATARK_SERVER_URL)")
	rootCmd.Version = version

	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(blockCmd)
	rootCmd.AddCommand(exportCmd)

	reportCmd.Flags().StringVar(&reportService, "service", "", "government service type (required)")
	reportCmd.Flags().StringVar(&reportOffice, "office", "", "office name (required)")
	reportCmd.Flags().Float64Var(&reportAmount, "amount", 0, "amount demanded")
	reportCmd.Flags().StringVar(&reportLocation, "location", "", "incident location")
	reportCmd.Flags().StringVar(&reportDescription, "description", "", "free-text description")
	reportCmd.MarkFlagRequired("service") //nolint:errcheck
	reportCmd.MarkFlagRequired("office")  //nolint:errcheck
}

var (
	reportService     string
	reportOffice      string
	reportAmount      float64
	reportLocation    string
	reportDescription string
)

func apiClient() *client.Client {
	return client.New(serverURL, client.WithTimeout(30*time.Second))
}

func cmdContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Submit an incident report to the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext()
		defer cancel()

		req := &client.ReportRequest{
			ServiceType: reportService,
			OfficeName:  reportOffice,
			Location:    reportLocation,
			Description: reportDescription,
		}
		if cmd.Flags().Changed("amount") {
			req.AmountDemanded = &reportAmount
		}

		receipt, err := apiClient().SubmitReport(ctx, req)
		if err != nil {
			return err
		}

		fmt.Println("report recorded")
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "index:\t%d\n", receipt.Index)
		fmt.Fprintf(w, "entry id:\t%s\n", receipt.EntryID)
		fmt.Fprintf(w, "block hash:\t%s\n", receipt.Hash)
		fmt.Fprintf(w, "verification code:\t%s\n", receipt.VerificationCode)
		return w.Flush()
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify [entry-id]",
	Short: "Verify the full chain, or a single report by entry ID",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext()
		defer cancel()

		if len(args) == 1 {
			result, err := apiClient().VerifyEntry(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("valid: %v\nhash matches: %v\nchain continuity: %v\n",
				result.Valid, result.HashMatches, result.ChainContinuity)
			if !result.Valid {
				os.Exit(1)
			}
			return nil
		}

		result, err := apiClient().VerifyChain(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("valid: %v\ntotal blocks: %d\n", result.Valid, result.TotalBlocks)
		if !result.Valid {
			fmt.Printf("corrupted indices: %v\n", result.CorruptedIndices)
			os.Exit(1)
		}
		return nil
	},
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <code>",
	Short: "Resolve a public verification code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext()
		defer cancel()

		result, err := apiClient().Lookup(ctx, args[0])
		if err != nil {
			return err
		}
		if !result.Found {
			fmt.Println("code not found")
			os.Exit(1)
		}

		fmt.Printf("found: report at block %d\nvalid: %v\nservice: %s\nreported at: %s\n",
			result.BlockIndex, result.Valid, result.ServiceType,
			result.ReportedAt.Format(time.RFC3339))
		return nil
	},
}

var blockCmd = &cobra.Command{
	Use:   "block <index>",
	Short: "Show one block's metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("index must be a non-negative integer: %w", err)
		}

		ctx, cancel := cmdContext()
		defer cancel()

		block, err := apiClient().GetBlock(ctx, idx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "index:\t%d\n", block.Index)
		fmt.Fprintf(w, "timestamp:\t%s\n", block.Timestamp)
		fmt.Fprintf(w, "prev hash:\t%s\n", block.PrevHash)
		fmt.Fprintf(w, "data hash:\t%s\n", block.DataHash)
		fmt.Fprintf(w, "hash:\t%s\n", block.Hash)
		return w.Flush()
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export an audit snapshot as JSON to stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext()
		defer cancel()

		snap, err := apiClient().ExportSnapshot(ctx)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	},
}
