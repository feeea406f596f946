package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/steinarvk/recquery/lib/dexapi"
	"github.com/steinarvk/recquery/lib/loader"
)

func mkInspectCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [namespace...]",
		Short: "Load the data files and summarize each namespace",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.setup(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			s, allStats, loadErr := loader.Open(ctx, cfg)
			if s == nil {
				return loadErr
			}

			statsByName := map[string]*dexapi.LoadStatsResponse{}
			for _, stats := range allStats {
				statsByName[stats.Namespace] = stats
			}

			names := args
			if len(names) == 0 {
				names = cfg.NamespaceNames()
			}

			out := cmd.OutOrStdout()

			for _, name := range names {
				coll, ok := s.Lookup(name)
				if !ok {
					return fmt.Errorf("unknown namespace %q", name)
				}

				filename := cfg.DataFile(name)
				size := "missing"
				if fi, err := os.Stat(filename); err == nil {
					size = humanizeBytes(fi.Size())
				}

				records := coll.Scan()

				kinds := map[string]map[string]bool{}
				for _, r := range records {
					for _, field := range r.FieldNames() {
						v, _ := r.Get(field)
						if kinds[field] == nil {
							kinds[field] = map[string]bool{}
						}
						kinds[field][v.Kind().String()] = true
					}
				}

				digest, err := collectionDigest(records)
				if err != nil {
					return err
				}

				fmt.Fprintln(out, "Namespace:", name)
				fmt.Fprintf(out, "  File: %s (%s)\n", filename, size)
				if stats := statsByName[name]; stats != nil {
					fmt.Fprintln(out, "  Lines:", stats.NumLines)
					fmt.Fprintln(out, "  Load errors:", stats.NumError)
				}
				fmt.Fprintln(out, "  Records:", len(records))
				if o := coll.DefaultOrdering(); o != nil {
					fmt.Fprintln(out, "  Default ordering:", o.String())
				}
				fmt.Fprintln(out, "  Digest: sha256:"+digest)

				fieldNames := make([]string, 0, len(kinds))
				for field := range kinds {
					fieldNames = append(fieldNames, field)
				}
				sort.Strings(fieldNames)

				fmt.Fprintln(out, "  Fields:")
				for _, field := range fieldNames {
					var ks []string
					for k := range kinds[field] {
						ks = append(ks, k)
					}
					sort.Strings(ks)
					fmt.Fprintf(out, "    %s\t%s\n", field, strings.Join(ks, "|"))
				}
				fmt.Fprintln(out)
			}

			if loadErr != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), loadErr)
			}

			return nil
		},
	}
}
