package processor

import (
	"database/sql"
	"fmt"
	"math"
	"regexp"

	"github.com/lib/pq"
	"github.com/nci/gstream/region"
)

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresSink records one row of statistics per accepted tile. Rows of a
// run share RunID and are numbered in the order the tiles arrive.
type PostgresSink struct {
	DB    *sql.DB
	Table string
	RunID string

	seq    int
	insert string
}

func NewPostgresSink(db *sql.DB, table string, runID string) (*PostgresSink, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("%w: invalid table name %q", region.ErrInvalidArgument, table)
	}

	_, err := db.Exec(fmt.Sprintf(`create table if not exists %s (
		run_id text not null,
		seq integer not null,
		region text not null,
		origin integer[] not null,
		size integer[] not null,
		count bigint not null,
		mean double precision,
		stddev double precision,
		min double precision,
		max double precision,
		primary key (run_id, seq)
	)`, table))
	if err != nil {
		return nil, fmt.Errorf("create table %s: %v", table, err)
	}

	return &PostgresSink{
		DB:     db,
		Table:  table,
		RunID:  runID,
		insert: fmt.Sprintf(`insert into %s (run_id, seq, region, origin, size, count, mean, stddev, min, max) values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`, table),
	}, nil
}

func (s *PostgresSink) Accept(r region.Region, t *Tile) error {
	if err := t.Validate(); err != nil {
		return err
	}
	st := ComputeTileStats(t)

	_, err := s.DB.Exec(s.insert,
		s.RunID,
		s.seq,
		r.String(),
		pq.Array(toInt64s(r.Origin)),
		pq.Array(toInt64s(r.Size)),
		st.Count,
		nullFloat(st.Mean),
		nullFloat(st.StdDev),
		nullFloat(st.Min),
		nullFloat(st.Max),
	)
	if err != nil {
		return err
	}
	s.seq++
	return nil
}

func toInt64s(v []int) []int64 {
	out := make([]int64, len(v))
	for i, x := range v {
		out[i] = int64(x)
	}
	return out
}

// nullFloat maps the NaN of an all-nodata tile to SQL null.
func nullFloat(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v)}
}
