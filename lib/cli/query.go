package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/steinarvk/recquery/lib/config"
	"github.com/steinarvk/recquery/lib/dexapi"
	"github.com/steinarvk/recquery/lib/dexerror"
	"github.com/steinarvk/recquery/lib/loader"
	"github.com/steinarvk/recquery/lib/logging"
	"github.com/steinarvk/recquery/lib/query"
	"github.com/steinarvk/recquery/lib/record"
	"github.com/steinarvk/recquery/lib/store"
	"github.com/steinarvk/recquery/lib/watch"
	"go.uber.org/zap"
)

type queryFlags struct {
	namespace string
	filters   []string
	where     string
	orderBy   string
	limit     int
	page      int
	pageSize  int
	fields    []string
	strict    bool
}

func (f *queryFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.namespace, "namespace", "n", "", "namespace to query")
	flags.StringArrayVarP(&f.filters, "filter", "f", nil, "keyword filter such as age=10 or ymd__startswith=2011-06 (repeatable, ANDed)")
	flags.StringVar(&f.where, "where", "", "condition tree as JSON, e.g. {\"or\":[...]}")
	flags.StringVarP(&f.orderBy, "order-by", "o", "", "order by field; prefix with - for descending")
	flags.IntVar(&f.limit, "limit", -1, "maximum number of records")
	flags.IntVar(&f.page, "page", 0, "page number, counting from 1")
	flags.IntVar(&f.pageSize, "page-size", 0, "records per page (default from config)")
	flags.StringSliceVar(&f.fields, "fields", nil, "print these fields tab-separated instead of JSON")
	flags.BoolVar(&f.strict, "strict", false, "fail if any data line cannot be loaded")
}

// document builds the query document from an optional positional document
// and the flags, with flags taking precedence. Filter flag values are typed
// using the namespace schema from cfg.
func (f *queryFlags) document(cfg *config.Config, args []string, stdin io.Reader) (*dexapi.Query, error) {
	doc := &dexapi.Query{}
	if len(args) > 0 {
		data, err := readDocument(args[0], stdin)
		if err != nil {
			return nil, err
		}
		doc, err = parseQueryDocument(data)
		if err != nil {
			return nil, dexerror.New(
				dexerror.WithKind(dexerror.KindInvalidQuery),
				dexerror.WithPublicMessage(err.Error()),
			)
		}
	}

	if f.namespace != "" {
		doc.Namespace = f.namespace
	}

	var schema *record.Schema
	if ns, ok := cfg.Namespaces[doc.Namespace]; ok && ns != nil {
		schema = ns.Schema()
	}

	for _, kv := range f.filters {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, dexerror.New(
				dexerror.WithKind(dexerror.KindInvalidQuery),
				dexerror.WithPublicMessage(fmt.Sprintf("filter %q is not key=value", kv)),
			)
		}
		if doc.Filter == nil {
			doc.Filter = map[string]interface{}{}
		}
		doc.Filter[key] = filterValue(schema, key, value)
	}

	if f.where != "" {
		var cond dexapi.Condition
		decoder := json.NewDecoder(strings.NewReader(f.where))
		decoder.UseNumber()
		if err := decoder.Decode(&cond); err != nil {
			return nil, dexerror.New(
				dexerror.WithKind(dexerror.KindInvalidQuery),
				dexerror.WithPublicMessage("invalid --where"),
				dexerror.WithCause(err),
			)
		}
		doc.Where = &cond
	}

	if f.orderBy != "" {
		o, err := dexapi.ParseOrderBy(f.orderBy)
		if err != nil {
			return nil, dexerror.New(
				dexerror.WithKind(dexerror.KindInvalidQuery),
				dexerror.WithPublicMessage(err.Error()),
			)
		}
		doc.OrderBy = &o
	}

	if f.limit >= 0 {
		limit := f.limit
		doc.Limit = &limit
	}
	if f.page != 0 {
		page := f.page
		doc.Page = &page
	}
	if f.pageSize != 0 {
		pageSize := f.pageSize
		doc.PageSize = &pageSize
	}

	return doc, nil
}

func runQuery(ctx context.Context, cfg *config.Config, s *store.Store, doc *dexapi.Query, fields []string, out io.Writer) error {
	logger := logging.FromContext(ctx)

	compiled, err := query.CompileQuery(s, doc, cfg.Limits.DefaultPageSize)
	if err != nil {
		return err
	}

	if compiled.Paged && compiled.PageSize > cfg.Limits.MaxPageSize {
		return dexerror.New(
			dexerror.WithKind(dexerror.KindInvalidPageSize),
			dexerror.WithPublicMessage(fmt.Sprintf("page size %d exceeds the maximum of %d", compiled.PageSize, cfg.Limits.MaxPageSize)),
			dexerror.WithPublicData("page_size", compiled.PageSize),
		)
	}

	t0 := time.Now()
	resp, err := compiled.Run()
	if err != nil {
		return err
	}

	logger.Debug("query executed",
		zap.String("query", compiled.String()),
		zap.Int("records", len(resp.Records)),
		zap.Duration("duration", time.Since(t0)))

	if len(fields) > 0 {
		return writeTable(out, resp, fields)
	}
	return writeJSON(out, resp)
}

// logLoadStats reports per-namespace load counts when debugging is on.
func logLoadStats(ctx context.Context, stats []*dexapi.LoadStatsResponse) {
	cdata := logging.DataFromContext(ctx)
	if !cdata.Debug {
		return
	}
	for _, st := range stats {
		cdata.Logger.Debug("load stats",
			zap.String("namespace", st.Namespace),
			zap.Int("lines", st.NumLines),
			zap.Int("inserted", st.NumInserted),
			zap.Int("errors", st.NumError))
	}
}

func loadStore(ctx context.Context, cfg *config.Config, strict bool) (*store.Store, error) {
	s, stats, err := loader.Open(ctx, cfg)
	logLoadStats(ctx, stats)
	if err != nil {
		if strict || s == nil || ctx.Err() != nil {
			return nil, err
		}
		logging.FromContext(ctx).Warn("some records could not be loaded", zap.Error(err))
	}
	return s, nil
}

func mkQueryCommand(g *globalFlags) *cobra.Command {
	flags := &queryFlags{}

	cmd := &cobra.Command{
		Use:   "query [query-document | @file | -]",
		Short: "Run a query against the configured data files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.setup(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			doc, err := flags.document(cfg, args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			s, err := loadStore(ctx, cfg, flags.strict)
			if err != nil {
				return err
			}

			return runQuery(ctx, cfg, s, doc, flags.fields, cmd.OutOrStdout())
		},
	}
	flags.register(cmd)

	return cmd
}

func mkWatchCommand(g *globalFlags) *cobra.Command {
	flags := &queryFlags{}
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch [query-document | @file | -]",
		Short: "Re-run a query whenever the data directory changes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.setup(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			logger := logging.FromContext(ctx)

			doc, err := flags.document(cfg, args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			s, err := cfg.NewStore()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			action := func(ctx context.Context, reason string) error {
				stats, err := loader.Reload(ctx, cfg, s)
				logLoadStats(ctx, stats)
				if err != nil {
					if flags.strict || ctx.Err() != nil {
						return err
					}
					logger.Warn("some records could not be loaded", zap.Error(err))
				}

				if err := runQuery(ctx, cfg, s, doc, flags.fields, out); err != nil {
					if dexerror.KindOf(err) == dexerror.KindInternal {
						return err
					}
					// The data may be fixed by the next change.
					logger.Error("query failed", zap.String("reason", reason), zap.Error(err))
				}
				return nil
			}

			err = watch.Dir(ctx, cfg.DataDir, watch.Options{
				Debounce: debounce,
				Suffixes: []string{".jsonl"},
			}, action)
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
	flags.register(cmd)
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period after a change before re-running")

	return cmd
}
