package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/me/tickos/pkg/model"
	"github.com/spf13/cobra"
)

func newPsCmd() *cobra.Command {
	var showExits bool
	cmd := &cobra.Command{
		Use:   "ps",
		Short: "List threads of a running kernel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if showExits {
				resp, err := client.Get("/api/v1/exits")
				if err != nil {
					return fmt.Errorf("list exits: %w", err)
				}
				var exits []model.ExitRecord
				if err := json.Unmarshal(resp.Data, &exits); err != nil {
					return fmt.Errorf("parse response: %w", err)
				}
				fmt.Fprintf(out, "%-5s  %-24s  %-5s  %s\n", "TID", "NAME", "HOST", "CODE")
				for _, e := range exits {
					fmt.Fprintf(out, "%-5d  %-24s  %-5s  %d\n", e.Tid, e.Name, hostString(e.Host), e.Code)
				}
				return nil
			}

			resp, err := client.Get("/api/v1/threads")
			if err != nil {
				return fmt.Errorf("list threads: %w", err)
			}
			var snap model.ProcessorSnapshot
			if err := json.Unmarshal(resp.Data, &snap); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			fmt.Fprintf(out, "%-5s  %-24s  %-6s  %-9s  %s\n", "TID", "NAME", "MODE", "STATE", "HOST")
			for _, t := range snap.Threads {
				fmt.Fprintf(out, "%-5d  %-24s  %-6s  %-9s  %s\n", t.Tid, t.Name, t.Mode, t.State, hostString(t.Host))
			}
			fmt.Fprintf(out, "\n%d/%d slots, %d ready, running %s\n",
				len(snap.Threads), snap.Capacity, snap.Ready, snap.Current)
			return nil
		},
	}
	cmd.Flags().BoolVar(&showExits, "exits", false, "Show recent exits instead of live threads")
	return cmd
}

func newExecCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exec <path>",
		Short: "Execute a program on a running kernel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Post("/api/v1/exec", map[string]string{"path": args[0]})
			if err != nil {
				return fmt.Errorf("exec %s: %w", args[0], err)
			}
			var data struct {
				Tid model.Tid `json:"tid"`
			}
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s started as tid %d\n", args[0], data.Tid)
			return nil
		},
	}
}

func hostString(h *model.Tid) string {
	if h == nil {
		return "-"
	}
	return strconv.Itoa(int(*h))
}
