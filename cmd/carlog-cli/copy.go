package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"carlog/internal/backend"
	"carlog/internal/core"
	"carlog/internal/sheets/memory"
)

func newCopyCmd(o *rootOptions) *cobra.Command {
	var from, to, out string
	cmd := &cobra.Command{
		Use:   "copy",
		Short: "Replace the records of one store with those of another",
		Long: `Loads every record from --from and saves the full set into --to.
With --to memory the result is written as CSV to --out (default MEMORY_SEED_FILE).`,
		Example: "  carlog-cli copy --from sheets --to sqlite",
		RunE: func(cmd *cobra.Command, args []string) error {
			src, dst := backend.BackendType(strings.ToLower(from)), backend.BackendType(strings.ToLower(to))
			if !src.IsValid() || !dst.IsValid() {
				return fmt.Errorf("--from and --to must be one of %s", strings.Join(backend.GetBackendTypeStrings(), ", "))
			}
			if src == dst {
				return errors.New("--from and --to must differ")
			}

			cfg, err := o.loadConfig()
			if err != nil {
				return err
			}
			if dst == backend.MemoryBackend && out == "" {
				out = cfg.MemorySeedFile
			}
			if dst == backend.MemoryBackend && out == "" {
				return errors.New("--out or MEMORY_SEED_FILE is required when copying to memory")
			}

			ctx := cmd.Context()
			logger := o.logger(cfg, cmd.ErrOrStderr())
			srcRes, err := openBackend(ctx, cfg, src, logger)
			if err != nil {
				return fmt.Errorf("open %s: %w", src, err)
			}
			defer srcRes.Close()

			// a memory destination starts empty; its seed file is the output
			if dst == backend.MemoryBackend {
				cfg.MemorySeedFile = ""
			}
			dstRes, err := openBackend(ctx, cfg, dst, logger)
			if err != nil {
				return fmt.Errorf("open %s: %w", dst, err)
			}
			defer dstRes.Close()

			records, err := srcRes.Store.Load(ctx)
			if err != nil {
				return fmt.Errorf("load %s: %w", src, err)
			}
			core.SortForStorage(records)
			if err := dstRes.Store.Save(ctx, records); err != nil {
				return fmt.Errorf("save %s: %w", dst, err)
			}
			if m, ok := dstRes.Store.(*memory.Store); ok {
				if err := m.WriteCSV(out); err != nil {
					return fmt.Errorf("write %s: %w", out, err)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "copied %d record(s) from %s to %s\n", len(records), src, dst)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "source store (memory, sheets, sqlite)")
	cmd.Flags().StringVar(&to, "to", "", "destination store (memory, sheets, sqlite)")
	cmd.Flags().StringVar(&out, "out", "", "CSV path when the destination is memory")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
