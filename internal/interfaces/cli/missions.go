package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edu008/HeatQuest/pkg/client"
	"github.com/edu008/HeatQuest/pkg/errors"
)

// newMissionsCmd groups mission generation and lifecycle subcommands.
func newMissionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "missions",
		Short: "Generate and manage cooling missions",
		Long:  "Missions turn explained hotspot cells into location-based tasks: generate\nproposes the closest unmissioned hotspots, then activate, complete, or cancel\nindividual missions.",
	}

	cmd.AddCommand(
		newMissionsGenerateCmd(),
		newMissionsListCmd(),
		newMissionsCountsCmd(),
		newMissionsGetCmd(),
		newMissionsLifecycleCmd("activate", "Start working on a pending mission"),
		newMissionsCompleteCmd(),
		newMissionsLifecycleCmd("cancel", "Cancel a pending or active mission"),
	)

	return cmd
}

func missionsClient(cmd *cobra.Command) (*CLIContext, *client.MissionsClient, error) {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return nil, nil, err
	}
	if cliCtx.Client == nil {
		return nil, nil, errors.New(errors.ErrCodeValidation, "no API client configured")
	}
	return cliCtx, cliCtx.Client.Missions(), nil
}

func newMissionsGenerateCmd() *cobra.Command {
	var lat, lon float64
	var maxMissions int

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate missions from analyzed hotspots near a coordinate",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, mc, err := missionsClient(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			res, err := mc.Generate(ctx, client.GenerateMissionsRequest{
				Lat:         lat,
				Lon:         lon,
				MaxMissions: maxMissions,
			})
			if err != nil {
				return err
			}

			if len(res.Created) == 0 {
				PrintSuccess(cmd, fmt.Sprintf("no new missions (%d candidates, %d skipped)",
					res.Candidates, res.Skipped))
				return nil
			}
			return PrintResult(cmd, missionList(res.Created))
		},
	}

	f := cmd.Flags()
	f.Float64Var(&lat, "lat", 0, "user latitude (required)")
	f.Float64Var(&lon, "lon", 0, "user longitude (required)")
	f.IntVar(&maxMissions, "max", 0, "override the per-run mission cap")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")

	return cmd
}

func newMissionsListCmd() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your missions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, mc, err := missionsClient(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			missions, err := mc.List(ctx, status)
			if err != nil {
				return err
			}
			return PrintResult(cmd, missionList(missions))
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (pending, active, completed, cancelled)")

	return cmd
}

func newMissionsCountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "counts",
		Short: "Show mission counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, mc, err := missionsClient(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			counts, err := mc.Counts(ctx)
			if err != nil {
				return err
			}
			return PrintResult(cmd, fmt.Sprintf(
				"total %d: %d pending, %d active, %d completed, %d cancelled",
				counts.Total, counts.Pending, counts.Active, counts.Completed, counts.Cancelled))
		},
	}
}

func newMissionsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <mission-id>",
		Short: "Show one mission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, mc, err := missionsClient(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			m, err := mc.Get(ctx, args[0])
			if err != nil {
				return err
			}
			return PrintResult(cmd, missionDetail{m})
		},
	}
}

// newMissionsLifecycleCmd covers the transitions that only change status.
func newMissionsLifecycleCmd(verb, short string) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <mission-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, mc, err := missionsClient(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			op := mc.Activate
			if verb == "cancel" {
				op = mc.Cancel
			}
			m, err := op(ctx, args[0])
			if err != nil {
				return err
			}

			PrintSuccess(cmd, fmt.Sprintf("mission %s is now %s", m.ID, m.Status))
			return nil
		},
	}
}

func newMissionsCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <mission-id>",
		Short: "Complete a mission and collect its points",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, mc, err := missionsClient(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			res, err := mc.Complete(ctx, args[0])
			if err != nil {
				return err
			}

			PrintSuccess(cmd, fmt.Sprintf("mission %s completed, %d points awarded",
				res.Mission.ID, res.PointsAwarded))
			return nil
		},
	}
}

// missionList adapts missions for the table and text printers.
type missionList []client.Mission

func (l missionList) String() string {
	if len(l) == 0 {
		return "no missions"
	}
	out := ""
	for i, m := range l {
		if i > 0 {
			out += "\n"
		}
		out += fmt.Sprintf("%s  [%s]  %s (%.0fm away, %d pts)",
			m.ID, m.Status, m.Title, m.DistanceM, m.Points)
	}
	return out
}

func (l missionList) TableHeaders() []string {
	return []string{"ID", "STATUS", "TITLE", "HEAT", "DISTANCE M", "POINTS"}
}

func (l missionList) TableRows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, m := range l {
		rows = append(rows, []string{
			m.ID,
			m.Status,
			m.Title,
			fmt.Sprintf("%.1f", m.HeatScore),
			fmt.Sprintf("%.0f", m.DistanceM),
			fmt.Sprintf("%d", m.Points),
		})
	}
	return rows
}

// missionDetail renders a single mission with its reasons and actions.
type missionDetail struct {
	*client.Mission
}

func (d missionDetail) String() string {
	out := fmt.Sprintf("%s [%s]\n%s", d.Title, d.Status, d.Description)
	for _, r := range d.Reasons {
		out += fmt.Sprintf("\n  why: %s", r)
	}
	for _, a := range d.RequiredActions {
		mark := " "
		if a.Completed {
			mark = "x"
		}
		out += fmt.Sprintf("\n  do:  [%s] %s (%s)", mark, a.Description, a.Priority)
	}
	out += fmt.Sprintf("\n  at (%.5f, %.5f), %d points", d.Lat, d.Lon, d.Points)
	return out
}
