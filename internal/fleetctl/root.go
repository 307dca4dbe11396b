package fleetctl

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"fleetd/internal/affinity"
	"fleetd/pkg/types"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// BuildRootCmd constructs the fleetctl command tree.
func BuildRootCmd() *cobra.Command {
	var addr string
	var client *Client

	root := &cobra.Command{
		Use:           "fleetctl",
		Short:         "Operator CLI for the fleetd game server orchestrator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&addr, "addr", envOr("FLEETD_ADDR", "127.0.0.1:8090"), "fleetd address (defaults FLEETD_ADDR)")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		client = NewClient(addr)
	}

	scaleCmd := &cobra.Command{
		Use:     "scale <target>",
		Short:   "Reconcile the fleet to a target live count",
		Example: "  fleetctl scale 4",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := strconv.Atoi(args[0])
			if err != nil || target < 0 {
				return fmt.Errorf("target must be a non-negative integer")
			}
			res, err := client.Scale(target)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(res.Failures) > 0 {
				attempted := res.Started + countOp(res.Failures, "start")
				if attempted > 0 {
					fmt.Fprintf(out, "started %d of %d\n", res.Started, attempted)
				}
				stopsAttempted := res.Stopped + countOp(res.Failures, "stop")
				if stopsAttempted > 0 {
					fmt.Fprintf(out, "stopped %d of %d\n", res.Stopped, stopsAttempted)
				}
				for _, f := range res.Failures {
					fmt.Fprintf(out, "  slot %d %s: %s\n", f.SlotID, f.Op, f.Error)
				}
				if res.Started == 0 && res.Stopped == 0 {
					return fmt.Errorf("scale made no progress toward target %d", target)
				}
				return nil
			}
			fmt.Fprintf(out, "fleet at %d live slots (was %d, started %d, stopped %d)\n",
				res.CurrentCount, res.PreviousCount, res.Started, res.Stopped)
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all slots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			slots, err := client.Slots()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tPORT\tVOICE\tPID\tCLIENTS\tCORES\tUPTIME")
			for _, s := range slots {
				fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\t%d\t%s\t%s\n",
					s.ID, s.Status, s.Port, s.VoicePort,
					orDash(s.PID), s.ConnectedClients,
					coreList(s.AssignedCores), uptime(s.StartedAt))
			}
			return w.Flush()
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show fleet summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := client.Fleet()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "live: %d/%d slots, %d connected clients\n",
				fs.LiveCount, fs.TotalSlots, fs.ConnectedClients)
			statuses := make([]string, 0, len(fs.StatusCounts))
			for st := range fs.StatusCounts {
				statuses = append(statuses, st)
			}
			sort.Strings(statuses)
			for _, st := range statuses {
				fmt.Fprintf(out, "  %s: %d\n", st, fs.StatusCounts[st])
			}
			return nil
		},
	}

	assignmentsCmd := &cobra.Command{
		Use:   "assignments",
		Short: "Show the core affinity audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := client.Assignments()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SLOT\tPID\tCORES\tASSIGNED")
			for _, a := range entries {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
					a.SlotID, orDash(a.ProcessID),
					coreList(affinity.MaskToCoreIDs(a.AffinityMask)),
					time.Unix(a.AssignedAt, 0).UTC().Format(time.RFC3339))
			}
			return w.Flush()
		},
	}

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Register a new offline slot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := client.Add()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "slot %d added\n", id)
			return nil
		},
	}

	root.AddCommand(
		scaleCmd, listCmd, statusCmd, assignmentsCmd, addCmd,
		slotCmd("start <id>", "Start the game server in a slot", func(id int) error { return client.Start(id) }, "started"),
		stopCmd(func(id int, force bool) error { return client.Stop(id, force) }),
		slotCmd("reset <id>", "Acknowledge a crash and return the slot to offline", func(id int) error { return client.Reset(id) }, "reset"),
		slotCmd("remove <id>", "Remove an offline slot", func(id int) error { return client.Remove(id) }, "removed"),
	)
	return root
}

// slotCmd builds a one-shot command taking a single slot id.
func slotCmd(use, short string, fn func(id int) error, done string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil || id < 1 {
				return fmt.Errorf("slot id must be a positive integer")
			}
			if err := fn(id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "slot %d %s\n", id, done)
			return nil
		},
	}
}

func stopCmd(stop func(id int, force bool) error) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "stop <id>",
		Short: "Stop the game server in a slot (drains clients unless --force)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil || id < 1 {
				return fmt.Errorf("slot id must be a positive integer")
			}
			if err := stop(id, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "slot %d stopped\n", id)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Skip the drain wait and SIGTERM grace")
	return cmd
}

func countOp(failures []types.ScaleFailure, op string) int {
	n := 0
	for _, f := range failures {
		if f.Op == op {
			n++
		}
	}
	return n
}

func orDash(n int) string {
	if n == 0 {
		return "-"
	}
	return strconv.Itoa(n)
}

func coreList(cores []int) string {
	if len(cores) == 0 {
		return "-"
	}
	var b []byte
	for i, c := range cores {
		if i > 0 {
			b = append(b, ',')
		}
		b = strconv.AppendInt(b, int64(c), 10)
	}
	return string(b)
}

func uptime(startedAtUnix int64) string {
	if startedAtUnix == 0 {
		return "-"
	}
	return time.Since(time.Unix(startedAtUnix, 0)).Truncate(time.Second).String()
}

// Run executes the CLI and returns a process exit code.
func Run(stdout, stderr io.Writer) int {
	root := BuildRootCmd()
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "fleetctl: %v\n", err)
		return 1
	}
	return 0
}
