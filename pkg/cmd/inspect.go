package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/jzelinskie/stringz"
	"github.com/spf13/cobra"

	"github.com/fuselabs/fusequery/pkg/catalog"
	"github.com/fuselabs/fusequery/pkg/cmd/server"
	"github.com/fuselabs/fusequery/pkg/datablock"
	"github.com/fuselabs/fusequery/pkg/datastream"
	"github.com/fuselabs/fusequery/pkg/interpreters"
	"github.com/fuselabs/fusequery/pkg/planner"
	"github.com/fuselabs/fusequery/pkg/sessions"
	"github.com/fuselabs/fusequery/pkg/settings"
)

// InspectOptions configures an inspect run.
type InspectOptions struct {
	Table    string
	Columns  []string
	Limit    uint64
	Settings map[string]string
}

func NewInspectCommand(programName string, config *server.Config) *cobra.Command {
	opts := InspectOptions{}
	cmd := &cobra.Command{
		Use:   "inspect [database.]table",
		Short: "print the rows of a table of a fresh engine",
		Long:  "Starts an engine without serving, selects the rows of a table through the interpreters and prints them",
		Example: fmt.Sprintf(`	%[1]s inspect system.settings
	%[1]s inspect system.numbers --limit 10 --setting max_block_size=3`, programName),
		Args:    cobra.ExactArgs(1),
		PreRunE: server.DefaultPreRunE(programName),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Table = args[0]

			resolved, err := ResolveConfig(cmd.Flags(), config)
			if err != nil {
				return err
			}
			resolved.MetricsAPIEnabled = false

			srv, err := resolved.Complete(cmd.Context())
			if err != nil {
				return err
			}
			defer srv.SessionManager().Close()

			return Inspect(cmd.Context(), srv.SessionManager(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&config.ConfigFile, configFlag, "", "path to a TOML config file; flags override its values")
	cmd.Flags().StringSliceVar(&opts.Columns, "columns", nil, "columns to print, all when empty")
	cmd.Flags().Uint64Var(&opts.Limit, "limit", 0, "maximum number of rows to print, 0 for all")
	cmd.Flags().StringToStringVar(&opts.Settings, "setting", nil, "settings of the query, as name=value")
	RegisterConfigFlags(cmd.Flags(), config)
	return cmd
}

// Inspect runs a query selecting the table described by opts and writes its
// rows to w as a table.
func Inspect(ctx context.Context, sm *sessions.SessionManager, opts InspectOptions, w io.Writer) error {
	database, table, found := strings.Cut(opts.Table, ".")
	if !found {
		database, table = catalog.DefaultDatabase, opts.Table
	}
	database = stringz.DefaultEmpty(database, catalog.DefaultDatabase)
	if table == "" {
		return errors.New("a table name is required")
	}

	q, err := sm.NewQueryContext(ctx)
	if err != nil {
		return err
	}
	defer q.Close()

	if len(opts.Settings) > 0 {
		vars := make([]settings.Var, 0, len(opts.Settings))
		for _, name := range slices.Sorted(maps.Keys(opts.Settings)) {
			vars = append(vars, settings.Var{Name: name, Value: opts.Settings[name]})
		}
		if err := run(q, &planner.SettingPlan{Vars: vars}, w); err != nil {
			return err
		}
	}

	extras := planner.Extras{Projection: opts.Columns}
	if opts.Limit > 0 {
		extras = extras.WithLimit(opts.Limit)
	}
	return run(q, &planner.SelectPlan{Database: database, Table: table, Extras: extras}, w)
}

func run(q *sessions.QueryContext, plan planner.Plan, w io.Writer) error {
	i, err := interpreters.Get(q, plan)
	if err != nil {
		return err
	}

	stream, err := i.Execute(nil)
	if err != nil {
		q.Logger().WithLevel(server.LevelForError(err)).Err(err).Str("interpreter", i.Name()).Msg("statement failed")
		return err
	}
	return printStream(q, stream, w)
}

func printStream(q *sessions.QueryContext, stream datastream.Stream, w io.Writer) error {
	schema := stream.Schema()
	blocks, err := datastream.Collect(q, stream)
	if err != nil {
		return err
	}
	if schema.NumFields() == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := color.New(color.Bold)
	for i, name := range schema.FieldNames() {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		header.Fprint(tw, name)
	}
	fmt.Fprintln(tw)

	for _, b := range blocks {
		for row := 0; row < b.NumRows(); row++ {
			fmt.Fprintln(tw, formatRow(b, row))
		}
	}
	return tw.Flush()
}

func formatRow(b *datablock.Block, row int) string {
	values := b.Row(row)
	cells := make([]string, 0, len(values))
	for _, v := range values {
		if v == nil {
			cells = append(cells, "NULL")
			continue
		}
		cells = append(cells, fmt.Sprint(v))
	}
	return strings.Join(cells, "\t")
}
