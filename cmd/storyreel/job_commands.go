package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"storyreel/internal/api"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Submit and track generation jobs",
	}

	jobsCmd.AddCommand(newJobsSubmitCommand(ctx))
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsCancelCommand(ctx))

	return jobsCmd
}

func newJobsSubmitCommand(ctx *commandContext) *cobra.Command {
	var imagePath string

	cmd := &cobra.Command{
		Use:   "submit <episode-id> <scene-index>",
		Short: "Submit one scene for video generation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			episodeID, err := parseEpisodeID(args[0])
			if err != nil {
				return err
			}
			sceneIndex, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || sceneIndex < 0 {
				return fmt.Errorf("invalid scene index %q", args[1])
			}
			req := api.SubmitJobRequest{EpisodeID: episodeID, SceneIndex: sceneIndex}
			if imagePath != "" {
				image, err := os.ReadFile(imagePath)
				if err != nil {
					return fmt.Errorf("read image: %w", err)
				}
				req.ImageBase64 = base64.StdEncoding.EncodeToString(image)
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			job, err := client.SubmitJob(cmd.Context(), req)
			if err != nil {
				return wrapDaemonError(err, ctx.daemonAddr())
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, job)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Submitted job %s for episode %d scene %d\n",
				job.ID, job.EpisodeID, job.SceneIndex)
			return nil
		},
	}

	cmd.Flags().StringVarP(&imagePath, "image", "i", "", "Path to a reference image for image-to-video generation")
	return cmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var episodeID int64

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			jobs, err := client.Jobs(cmd.Context(), episodeID)
			if err != nil {
				return wrapDaemonError(err, ctx.daemonAddr())
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, api.JobListResponse{Jobs: jobs})
			}

			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No jobs")
				return nil
			}
			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				rows = append(rows, jobRow(job))
			}
			fmt.Fprintln(out, renderTable(out, jobHeaders(), rows, jobAlignments()))
			return nil
		},
	}

	cmd.Flags().Int64VarP(&episodeID, "episode", "e", 0, "Filter by episode id")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			job, err := client.Job(cmd.Context(), args[0])
			if err != nil {
				return wrapDaemonError(err, ctx.daemonAddr())
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, job)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(out, jobHeaders(), [][]string{jobRow(job)}, jobAlignments()))
			if job.ErrorMessage != "" {
				fmt.Fprintf(out, "Error: %s\n", job.ErrorMessage)
			}
			return nil
		},
	}
}

func newJobsCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel an active job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			job, err := client.CancelJob(cmd.Context(), args[0])
			if err != nil {
				return wrapDaemonError(err, ctx.daemonAddr())
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, job)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancelled job %s\n", job.ID)
			return nil
		},
	}
}

func jobHeaders() []string {
	return []string{"ID", "Episode", "Scene", "Status", "Progress", "Output", "Created"}
}

func jobAlignments() []columnAlignment {
	return []columnAlignment{alignLeft, alignRight, alignRight, alignLeft, alignRight, alignLeft, alignLeft}
}

func jobRow(job api.JobView) []string {
	return []string{
		job.ID,
		strconv.FormatInt(job.EpisodeID, 10),
		strconv.FormatInt(job.SceneIndex, 10),
		job.Status,
		fmt.Sprintf("%d%%", job.Progress),
		job.OutputPath,
		job.CreatedAt,
	}
}
