package transform

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/joshafouda/taxitripapp/frame"
	"github.com/joshafouda/taxitripapp/zones"
)

// Enrichment columns appended to every trip row.
const (
	PUBorough      = "pu_borough"
	PUZone         = "pu_zone"
	PUServiceZone  = "pu_service_zone"
	DOBorough      = "do_borough"
	DOZone         = "do_zone"
	DOServiceZone  = "do_service_zone"
	RouteBorough   = "route_borough"
	RouteZone      = "route_zone"
	RouteSeparator = " - "
)

// ErrNoFrame is returned when Transform is given nothing to work on.
var ErrNoFrame = errors.New("no input frame")

var enrichment = []string{PUBorough, PUZone, PUServiceZone, DOBorough, DOZone, DOServiceZone, RouteBorough, RouteZone}

var zoneSchema = []frame.Column{
	{Name: "location_id", Type: "BIGINT"},
	{Name: "borough", Type: "VARCHAR"},
	{Name: "zone", Type: "VARCHAR"},
	{Name: "service_zone", Type: "VARCHAR"},
}

// Options names the trip columns the transform reads. Names are compared after the
// column names have been lowercased.
type Options struct {
	PassengerCount  string
	TripDistance    string
	FareAmount      string
	PickupLocation  string
	DropoffLocation string
	Separator       string
}

// DefaultOptions returns the TLC yellow taxi column names.
func DefaultOptions() Options {
	return Options{
		PassengerCount:  "passenger_count",
		TripDistance:    "trip_distance",
		FareAmount:      "fare_amount",
		PickupLocation:  "pulocationid",
		DropoffLocation: "dolocationid",
		Separator:       RouteSeparator,
	}
}

// Transformer filters trip rows and enriches them with zone names.
type Transformer struct {
	opts Options
}

// New creates a transformer. Empty option fields take their default.
func New(opts Options) *Transformer {
	def := DefaultOptions()
	fill := func(v *string, d string) {
		if *v == "" {
			*v = d
		} else {
			*v = strings.ToLower(*v)
		}
	}
	fill(&opts.PassengerCount, def.PassengerCount)
	fill(&opts.TripDistance, def.TripDistance)
	fill(&opts.FareAmount, def.FareAmount)
	fill(&opts.PickupLocation, def.PickupLocation)
	fill(&opts.DropoffLocation, def.DropoffLocation)
	if opts.Separator == "" {
		opts.Separator = def.Separator
	}
	return &Transformer{opts: opts}
}

// Transform runs the default transformer.
func Transform(ctx context.Context, raw *frame.Frame, idx *zones.Index) (*frame.Frame, *Report, error) {
	return New(Options{}).Transform(ctx, raw, idx)
}

// Transform returns a new frame, in the database of raw, holding the rows of raw that
// have a positive distance, passenger count and fare and whose pickup and dropoff
// locations both resolve in idx. Column names are lowercased and the pu_*, do_* and
// route_* columns are appended. raw is not modified.
func (t *Transformer) Transform(ctx context.Context, raw *frame.Frame, idx *zones.Index) (*frame.Frame, *Report, error) {
	if raw == nil || raw.DB() == nil {
		return nil, nil, ErrNoFrame
	}
	if idx == nil {
		idx = zones.NewIndex()
	}
	rep := NewReport()
	rep.Input = raw.Len()

	src, dupes := lowercase(raw.Schema())
	for _, d := range dupes {
		rep.Add(DropDuplicateColumn, d)
	}
	types := make(map[string]string, len(src))
	for _, c := range src {
		types[c.Name] = c.Type
	}
	o := t.opts
	for _, col := range []string{o.PassengerCount, o.TripDistance, o.FareAmount, o.PickupLocation, o.DropoffLocation} {
		if _, ok := types[col]; !ok {
			return nil, nil, fmt.Errorf("column %q not found", col)
		}
	}

	db := raw.DB()
	zt, err := frame.FromRows(ctx, db, frame.TableName("zones"), zoneSchema, idx.Records())
	if err != nil {
		return nil, nil, fmt.Errorf("stage zones: %w", err)
	}
	defer func() { _ = zt.Drop(context.WithoutCancel(ctx)) }()

	judged, err := frame.Create(ctx, db, frame.TableName("judged"), t.judgeSQL(raw.Table(), zt.Table(), src, types))
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = judged.Drop(context.WithoutCancel(ctx)) }()

	if err := collect(ctx, judged, rep); err != nil {
		return nil, nil, err
	}

	cols := make([]string, 0, len(src)+len(enrichment))
	for _, c := range src {
		cols = append(cols, frame.Quote(c.Name))
	}
	for _, c := range enrichment {
		cols = append(cols, frame.Quote(c))
	}
	out, err := frame.Create(ctx, db, frame.TableName("trips"), fmt.Sprintf(
		"SELECT %s FROM %s WHERE __reason IS NULL ORDER BY __row",
		strings.Join(cols, ", "), frame.Quote(judged.Table())))
	if err != nil {
		return nil, nil, err
	}
	rep.Output = out.Len()
	return out, rep, nil
}

// sourceColumn is a raw column under its lowercased name. From is the name in the
// raw table.
type sourceColumn struct {
	frame.Column
	From string
}

// lowercase renames every column to lowercase. When two columns collide the first
// one is kept and the dropped names are returned.
func lowercase(schema []frame.Column) ([]sourceColumn, []string) {
	seen := make(map[string]bool, len(schema))
	var out []sourceColumn
	var dupes []string
	for _, c := range schema {
		lower := strings.ToLower(c.Name)
		if seen[lower] {
			dupes = append(dupes, lower)
			continue
		}
		seen[lower] = true
		out = append(out, sourceColumn{Column: frame.Column{Name: lower, Type: c.Type}, From: c.Name})
	}
	return out, dupes
}

// judgeSQL joins every trip row to its pickup and dropoff zone and tags the rows to
// drop with a reason and an example. The CASE order is the order of the steps: a row
// missing its fare is reported as missing_required even though it also lacks zones.
func (t *Transformer) judgeSQL(raw, zoneTable string, src []sourceColumn, types map[string]string) string {
	o := t.opts
	q := frame.Quote
	sep := frame.Literal(o.Separator)

	proj := make([]string, len(src))
	for i, c := range src {
		proj[i] = q(c.From) + " AS " + q(c.Name)
	}

	row := func(detail string) string {
		return "'row ' || CAST(__row AS VARCHAR) || ' (' || " + detail + " || ')'"
	}
	show := func(col string) string {
		return "coalesce(CAST(" + q(col) + " AS VARCHAR), 'NULL')"
	}

	var reason, detail strings.Builder
	reason.WriteString("CASE")
	detail.WriteString("CASE")
	when := func(b *strings.Builder, cond, then string) {
		fmt.Fprintf(b, "\n\t\tWHEN %s THEN %s", cond, then)
	}

	for _, col := range []string{o.PassengerCount, o.FareAmount} {
		when(&reason, missing(col, types[col]), frame.Literal(DropMissingRequired))
		when(&detail, missing(col, types[col]), row(frame.Literal(col)))
	}
	for _, col := range []string{o.TripDistance, o.PassengerCount, o.FareAmount} {
		when(&reason, "NOT "+positive(col), frame.Literal(DropNonPositive))
		when(&detail, "NOT "+positive(col), row(frame.Literal(col+"=")+" || "+show(col)))
	}
	when(&reason, "__unmatched", frame.Literal(DropUnmatchedLocation))
	when(&detail, "__unmatched", "'PU=' || "+show(o.PickupLocation)+" || ' DO=' || "+show(o.DropoffLocation))

	var anyMissing []string
	for _, c := range src {
		m := missing(c.Name, c.Type)
		anyMissing = append(anyMissing, m)
		when(&detail, m, row(frame.Literal(c.Name)))
	}
	for _, c := range enrichment {
		m := q(c) + " IS NULL"
		anyMissing = append(anyMissing, m)
		when(&detail, m, row(frame.Literal(c)))
	}
	when(&reason, strings.Join(anyMissing, " OR "), frame.Literal(DropIncompleteRow))
	reason.WriteString("\n\tEND")
	detail.WriteString("\n\tEND")

	return fmt.Sprintf(`WITH src AS (
	SELECT rowid + 1 AS __row, %[1]s FROM %[2]s
), joined AS (
	SELECT src.*,
		pu.borough AS %[5]s, pu.zone AS %[6]s, pu.service_zone AS %[7]s,
		dz.borough AS %[8]s, dz.zone AS %[9]s, dz.service_zone AS %[10]s,
		pu.borough || %[11]s || dz.borough AS %[12]s,
		pu.zone || %[11]s || dz.zone AS %[13]s,
		pu.location_id IS NULL OR dz.location_id IS NULL AS __unmatched
	FROM src
	LEFT JOIN %[3]s pu ON pu.location_id = TRY_CAST(src.%[14]s AS DOUBLE)
	LEFT JOIN %[3]s dz ON dz.location_id = TRY_CAST(src.%[15]s AS DOUBLE)
)
SELECT *,
	%[4]s AS __reason,
	%[16]s AS __detail
FROM joined`,
		strings.Join(proj, ", "), q(raw), q(zoneTable), reason.String(),
		q(PUBorough), q(PUZone), q(PUServiceZone),
		q(DOBorough), q(DOZone), q(DOServiceZone),
		sep, q(RouteBorough), q(RouteZone),
		q(o.PickupLocation), q(o.DropoffLocation),
		detail.String(),
	)
}

// missing is true for NULL and, in floating point columns, NaN.
func missing(col, typ string) string {
	switch strings.ToUpper(typ) {
	case "DOUBLE", "FLOAT", "REAL":
		return fmt.Sprintf("(%s IS NULL OR isnan(%[1]s))", frame.Quote(col))
	}
	return frame.Quote(col) + " IS NULL"
}

// positive is true when col reads as a number greater than zero. NaN sorts above
// every number in DuckDB, so it is excluded explicitly.
func positive(col string) string {
	v := "TRY_CAST(" + frame.Quote(col) + " AS DOUBLE)"
	return fmt.Sprintf("coalesce(%s > 0 AND NOT isnan(%[1]s), false)", v)
}

// collect adds the per-reason counts and the first examples of judged to rep.
func collect(ctx context.Context, judged *frame.Frame, rep *Report) error {
	table := frame.Quote(judged.Table())
	rows, err := judged.DB().QueryContext(ctx,
		"SELECT __reason, count(*) FROM "+table+" WHERE __reason IS NOT NULL GROUP BY __reason")
	if err != nil {
		return fmt.Errorf("count drops: %w", err)
	}
	counts := map[string]int{}
	for rows.Next() {
		var reason string
		var n int
		if err := rows.Scan(&reason, &n); err != nil {
			_ = rows.Close()
			return err
		}
		counts[reason] = n
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for reason, n := range counts {
		ex, err := judged.DB().QueryContext(ctx, fmt.Sprintf(
			"SELECT __detail FROM %s WHERE __reason = ? ORDER BY __row LIMIT %d", table, maxExamples), reason)
		if err != nil {
			return fmt.Errorf("drop examples: %w", err)
		}
		var examples []string
		for ex.Next() {
			var d string
			if err := ex.Scan(&d); err != nil {
				_ = ex.Close()
				return err
			}
			examples = append(examples, d)
		}
		_ = ex.Close()
		if err := ex.Err(); err != nil {
			return err
		}
		rep.Record(reason, n, examples...)
	}
	return nil
}
