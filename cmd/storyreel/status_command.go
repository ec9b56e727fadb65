package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, database, and generator health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				return wrapDaemonError(err, ctx.daemonAddr())
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, status)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(out, line)
			}
			runningKind := statusError
			if status.Running {
				runningKind = statusOK
			}
			fmt.Fprintln(out, renderStatusLine("Running", runningKind, fmt.Sprintf("pid %d", status.PID), colorize))
			dbKind := statusError
			dbMessage := status.DatabaseError
			if status.DatabaseOK {
				dbKind = statusOK
				dbMessage = status.DatabasePath
			}
			fmt.Fprintln(out, renderStatusLine("Database", dbKind, dbMessage, colorize))
			fmt.Fprintln(out, renderStatusLine("Output free", statusInfo, fmt.Sprintf("%d MB", status.OutputFreeMB), colorize))
			if status.LastReconcile != "" {
				fmt.Fprintln(out, renderStatusLine("Last reconcile", statusInfo, status.LastReconcile, colorize))
			}

			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Generator", colorize) {
				fmt.Fprintln(out, line)
			}
			if status.Generator.Reachable {
				fmt.Fprintln(out, renderStatusLine("Service", statusOK, status.Generator.Status, colorize))
				fmt.Fprintln(out, renderStatusLine("Mode", statusInfo, status.Generator.Mode, colorize))
				fmt.Fprintln(out, renderStatusLine("CUDA", statusInfo, yesNo(status.Generator.CUDAAvailable), colorize))
				if status.Generator.DiskFree != "" {
					fmt.Fprintln(out, renderStatusLine("Disk free", statusInfo, status.Generator.DiskFree, colorize))
				}
				fmt.Fprintln(out, renderStatusLine("Active jobs", statusInfo, fmt.Sprintf("%d", status.Generator.ActiveJobs), colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("Service", statusError, status.Generator.Error, colorize))
			}

			if len(status.Jobs) > 0 {
				fmt.Fprintln(out)
				for _, line := range renderSectionHeader("Jobs", colorize) {
					fmt.Fprintln(out, line)
				}
				names := make([]string, 0, len(status.Jobs))
				for name := range status.Jobs {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Fprintln(out, renderStatusLine(name, statusInfo, fmt.Sprintf("%d", status.Jobs[name]), colorize))
				}
			}
			return nil
		},
	}
}
