package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/edu008/HeatQuest/pkg/client"
	"github.com/edu008/HeatQuest/pkg/errors"
)

// analyzeOptions holds flags for the analyze command.
type analyzeOptions struct {
	ParentCellID string
	Lat          float64
	Lon          float64
	MaxCells     int
}

// newAnalyzeCmd requests vision analysis for pending hotspot cells of a
// parent cell.
func newAnalyzeCmd() *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Explain pending hotspot cells with vision analysis",
		Long:  "Runs the analysis gate for a scanned parent cell: the closest pending\nhotspots are fetched as satellite images and explained by a vision model,\nsubject to the per-request cap and the daily per-user quota.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.ParentCellID, "parent", "", "parent cell ID from a previous scan (required)")
	f.Float64Var(&opts.Lat, "lat", 0, "user latitude for distance ranking (required)")
	f.Float64Var(&opts.Lon, "lon", 0, "user longitude for distance ranking (required)")
	f.IntVar(&opts.MaxCells, "max-cells", 0, "override the per-request analysis cap")
	_ = cmd.MarkFlagRequired("parent")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")

	return cmd
}

func runAnalyze(cmd *cobra.Command, opts *analyzeOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	if cliCtx.Client == nil {
		return errors.New(errors.ErrCodeValidation, "no API client configured")
	}

	ctx, cancel := commandContext(cmd, cliCtx)
	defer cancel()

	res, err := cliCtx.Client.Analysis().Run(ctx, client.RunAnalysisRequest{
		ParentCellID: opts.ParentCellID,
		Lat:          opts.Lat,
		Lon:          opts.Lon,
		MaxCells:     opts.MaxCells,
	})
	if err != nil {
		return err
	}

	return PrintResult(cmd, analysisReport{res})
}

// analysisReport adapts an analysis run result for the printers.
type analysisReport struct {
	*client.RunAnalysisResult
}

func (r analysisReport) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "analyzed %d of %d pending cells (%d failed, %d quota remaining)",
		len(r.Analyzed), r.Pending, r.Failed, r.Remaining)
	if r.LimitReached {
		sb.WriteString("\ndaily analysis quota reached")
	}
	for _, a := range r.Analyzed {
		fmt.Fprintf(&sb, "\n[%s] %s", a.LocationType, a.Summary)
		if a.MainCause != "" {
			fmt.Fprintf(&sb, "\n  cause: %s", a.MainCause)
		}
		for _, action := range a.SuggestedActions {
			fmt.Fprintf(&sb, "\n  - [%s] %s: %s", action.Priority, action.Action, action.Description)
		}
	}
	return sb.String()
}

func (r analysisReport) TableHeaders() []string {
	return []string{"CELL", "LOCATION", "CAUSE", "CONFIDENCE", "PROVIDER"}
}

func (r analysisReport) TableRows() [][]string {
	rows := make([][]string, 0, len(r.Analyzed))
	for _, a := range r.Analyzed {
		rows = append(rows, []string{
			a.ChildCellID,
			a.LocationType,
			a.MainCause,
			fmt.Sprintf("%.2f", a.Confidence),
			a.Provider,
		})
	}
	return rows
}
