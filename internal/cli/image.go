package cli

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// defaultDB returns the image store path, checking TICKOS_DB first.
func defaultDB() string {
	if s := os.Getenv("TICKOS_DB"); s != "" {
		return s
	}
	return "tickos.db"
}

func newImageCmd() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Manage program images in a SQLite image store",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", defaultDB(), "Image store path (or TICKOS_DB env)")

	put := &cobra.Command{
		Use:   "put <path> <file>",
		Short: "Store a program image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			st, err := openImageStore(cmd.Context(), dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			info, err := st.Put(cmd.Context(), args[0], data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s (%s, sha256 %s)\n", info.Path, humanize.Bytes(uint64(info.Size)), shortHash(info.SHA256))
			return nil
		},
	}

	ls := &cobra.Command{
		Use:   "ls",
		Short: "List stored program images",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openImageStore(cmd.Context(), dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			images, err := st.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(images) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No images stored.")
				return nil
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-30s  %-10s  %-12s  %s\n", "PATH", "SIZE", "SHA256", "CREATED")
			for _, img := range images {
				fmt.Fprintf(out, "%-30s  %-10s  %-12s  %s\n",
					img.Path, humanize.Bytes(uint64(img.Size)), shortHash(img.SHA256), humanize.Time(img.CreatedAt))
			}
			return nil
		},
	}

	rm := &cobra.Command{
		Use:   "rm <path>",
		Short: "Remove a program image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openImageStore(cmd.Context(), dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(put, ls, rm)
	return cmd
}

// shortHash abbreviates a hex digest for listings.
func shortHash(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}
