package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"storyreel/internal/api"
	"storyreel/internal/ipc"
)

func newEpisodeCommand(ctx *commandContext) *cobra.Command {
	episodeCmd := &cobra.Command{
		Use:   "episode",
		Short: "Manage episodes and the script pipeline",
	}

	episodeCmd.AddCommand(newEpisodeAddCommand(ctx))
	episodeCmd.AddCommand(newEpisodeShowCommand(ctx))
	episodeCmd.AddCommand(newEpisodeAnalyzeCommand(ctx))
	episodeCmd.AddCommand(newEpisodePromptsCommand(ctx))
	episodeCmd.AddCommand(newEpisodeExportCommand(ctx))

	return episodeCmd
}

func newEpisodeAddCommand(ctx *commandContext) *cobra.Command {
	var scriptPath string

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Register a new episode from a script file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(scriptPath) == "" {
				return fmt.Errorf("--script is required")
			}
			script, err := os.ReadFile(scriptPath)
			if err != nil {
				return fmt.Errorf("read script: %w", err)
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			view, err := client.CreateEpisode(cmd.Context(), args[0], string(script))
			if err != nil {
				return wrapDaemonError(err, ctx.daemonAddr())
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, view)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created episode %d: %s\n", view.ID, view.Title)
			return nil
		},
	}

	cmd.Flags().StringVarP(&scriptPath, "script", "s", "", "Path to the script file")
	return cmd
}

func newEpisodeShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show an episode with its characters and scenes (latest by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			view, err := fetchEpisode(cmd, client, ctx, args)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, view)
			}
			printEpisode(cmd, view)
			return nil
		},
	}
}

func newEpisodeAnalyzeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <id>",
		Short: "Run script analysis to extract characters and scenes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEpisodeID(args[0])
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			view, err := client.AnalyzeEpisode(cmd.Context(), id)
			if err != nil {
				return wrapDaemonError(err, ctx.daemonAddr())
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, view)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Analyzed episode %d: %d characters, %d scenes\n",
				view.ID, len(view.Characters), len(view.Scenes))
			return nil
		},
	}
}

func newEpisodePromptsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prompts <id>",
		Short: "Generate per-scene video prompts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEpisodeID(args[0])
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			view, err := client.GeneratePrompts(cmd.Context(), id)
			if err != nil {
				return wrapDaemonError(err, ctx.daemonAddr())
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, view)
			}
			prompted := 0
			for _, scene := range view.Scenes {
				if scene.Prompt != "" {
					prompted++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Episode %d: %d of %d scenes have prompts\n",
				view.ID, prompted, len(view.Scenes))
			return nil
		},
	}
}

func newEpisodeExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export <id>",
		Short: "Export episode artifact metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEpisodeID(args[0])
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			meta, err := client.ExportMetadata(cmd.Context(), id)
			if err != nil {
				return wrapDaemonError(err, ctx.daemonAddr())
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, meta)
			}

			out := cmd.OutOrStdout()
			if len(meta.Scenes) == 0 {
				fmt.Fprintf(out, "Episode %d has no completed scenes yet\n", meta.EpisodeID)
				return nil
			}
			rows := make([][]string, 0, len(meta.Scenes))
			for _, scene := range meta.Scenes {
				rows = append(rows, []string{
					strconv.FormatInt(scene.SceneIndex, 10),
					scene.File,
					strconv.FormatInt(scene.Version, 10),
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"Scene", "File", "Version"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight},
			))
			if meta.Path != "" {
				fmt.Fprintf(out, "Manifest written to %s\n", meta.Path)
			}
			return nil
		},
	}
}

func fetchEpisode(cmd *cobra.Command, client *ipc.Client, ctx *commandContext, args []string) (api.EpisodeView, error) {
	if len(args) == 0 {
		view, err := client.LatestEpisode(cmd.Context())
		return view, wrapDaemonError(err, ctx.daemonAddr())
	}
	id, err := parseEpisodeID(args[0])
	if err != nil {
		return api.EpisodeView{}, err
	}
	view, err := client.Episode(cmd.Context(), id)
	return view, wrapDaemonError(err, ctx.daemonAddr())
}

func printEpisode(cmd *cobra.Command, view api.EpisodeView) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Episode %d: %s\n", view.ID, view.Title)

	if len(view.Characters) > 0 {
		rows := make([][]string, 0, len(view.Characters))
		for _, character := range view.Characters {
			rows = append(rows, []string{character.Name, character.Description})
		}
		fmt.Fprintln(out, renderTable(out,
			[]string{"Character", "Description"},
			rows,
			[]columnAlignment{alignLeft, alignLeft},
		))
	}

	if len(view.Scenes) > 0 {
		rows := make([][]string, 0, len(view.Scenes))
		for _, scene := range view.Scenes {
			rows = append(rows, []string{
				strconv.FormatInt(scene.ID, 10),
				truncate(scene.Description, 60),
				strings.Join(scene.Characters, ", "),
				yesNo(scene.Prompt != ""),
				strconv.FormatInt(scene.LatestVersion, 10),
			})
		}
		fmt.Fprintln(out, renderTable(out,
			[]string{"Scene", "Description", "Characters", "Prompt", "Version"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight},
		))
	}
}

func parseEpisodeID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid episode id %q", value)
	}
	return id, nil
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	if max <= 3 {
		return value[:max]
	}
	return value[:max-3] + "..."
}
