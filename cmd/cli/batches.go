package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/kurihiro0119/grading-harvester/internal/aggregator"
	"github.com/kurihiro0119/grading-harvester/internal/config"
	"github.com/kurihiro0119/grading-harvester/internal/domain"
	"github.com/kurihiro0119/grading-harvester/internal/output"
	"github.com/kurihiro0119/grading-harvester/pkg/client"
)

var (
	useRemote    bool
	batchesLimit int
	showStatus   string
)

var batchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "List stored harvest batches",
	Args:  cobra.NoArgs,
	RunE:  runBatches,
}

var showCmd = &cobra.Command{
	Use:   "show [batch-id]",
	Short: "Show the outcomes of a harvest batch",
	Long:  `Display the outcomes and summary of a stored harvest batch.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	for _, cmd := range []*cobra.Command{batchesCmd, showCmd} {
		cmd.Flags().BoolVar(&useRemote, "remote", false, "query the results API at API_ENDPOINT instead of local storage")
	}
	batchesCmd.Flags().IntVar(&batchesLimit, "limit", 20, "number of batches to list")
	showCmd.Flags().StringVar(&showStatus, "status", "", "only show outcomes with this status")
}

// batchReader is the read side shared by local storage and the results API
type batchReader interface {
	ListBatches(ctx context.Context, limit int) ([]*domain.HarvestBatch, error)
	GetBatch(ctx context.Context, batchID string) (*domain.HarvestBatch, error)
	GetOutcomes(ctx context.Context, batchID string, status domain.OutcomeStatus) ([]*domain.Outcome, error)
	GetSummary(ctx context.Context, batchID string) (*domain.BatchSummary, error)
}

// localReader adapts an Aggregator to batchReader
type localReader struct {
	aggregator.Aggregator
}

func (r localReader) GetSummary(ctx context.Context, batchID string) (*domain.BatchSummary, error) {
	return r.GetBatchSummary(ctx, batchID)
}

func openReader(cfg *config.Config) (batchReader, func(), error) {
	if useRemote {
		return client.NewClient(cfg.APIEndpoint), func() {}, nil
	}

	store, err := getStorage(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if store == nil {
		return nil, nil, fmt.Errorf("storage is disabled; set STORAGE_TYPE to sqlite or postgres, or use --remote")
	}
	return localReader{aggregator.NewAggregator(store)}, func() { store.Close() }, nil
}

func runBatches(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	reader, closeFn, err := openReader(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	batches, err := reader.ListBatches(context.Background(), batchesLimit)
	if err != nil {
		return fmt.Errorf("failed to list batches: %w", err)
	}

	if outputJSON {
		return printJSON(batches)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Label", "Status", "Targets", "Created"})
	for _, b := range batches {
		table.Append([]string{
			b.ID,
			b.Label,
			b.Status,
			fmt.Sprintf("%d", b.TargetCount),
			b.CreatedAt.Local().Format(time.DateTime),
		})
	}
	table.Render()
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	batchID := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	reader, closeFn, err := openReader(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := context.Background()
	batch, err := reader.GetBatch(ctx, batchID)
	if err != nil {
		return fmt.Errorf("failed to get batch: %w", err)
	}
	outcomes, err := reader.GetOutcomes(ctx, batchID, domain.OutcomeStatus(showStatus))
	if err != nil {
		return fmt.Errorf("failed to get outcomes: %w", err)
	}

	if outputJSON {
		return output.EncodeJSON(os.Stdout, outcomes)
	}

	summary, err := reader.GetSummary(ctx, batchID)
	if err != nil {
		return fmt.Errorf("failed to get summary: %w", err)
	}

	fmt.Printf("\nHarvest batch %s", batch.ID)
	if batch.Label != "" {
		fmt.Printf(" (%s)", batch.Label)
	}
	fmt.Printf("\nStatus: %s, created %s\n\n", batch.Status, batch.CreatedAt.Local().Format(time.DateTime))

	output.RenderTable(os.Stdout, outcomes)
	fmt.Println()
	output.RenderSummary(os.Stdout, summary)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
