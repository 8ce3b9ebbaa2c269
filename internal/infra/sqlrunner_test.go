package infra

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"

	"longvideo/internal/infra/metrics"
)

func TestExtractMarker(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantMarker string
		wantQuery  string
		wantErr    bool
	}{
		{
			name:       "valid marker",
			query:      "\n--sql 0f6d8e32-2b1c-4c55-9f61-7d0e3e2a9b10\nSELECT 1\n",
			wantMarker: "0f6d8e32-2b1c-4c55-9f61-7d0e3e2a9b10",
			wantQuery:  "SELECT 1",
		},
		{name: "missing marker", query: "SELECT 1", wantErr: true},
		{name: "empty query", query: "  \n ", wantErr: true},
		{name: "malformed uuid", query: "--sql not-a-uuid\nSELECT 1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			marker, query, err := extractMarker(tt.query)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got marker %q", marker)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if marker != tt.wantMarker {
				t.Fatalf("marker = %q, want %q", marker, tt.wantMarker)
			}
			if query != tt.wantQuery {
				t.Fatalf("query = %q, want %q", query, tt.wantQuery)
			}
		})
	}
}

func TestIsNoRows(t *testing.T) {
	if !IsNoRows(pgx.ErrNoRows) {
		t.Fatal("expected pgx.ErrNoRows to match")
	}
	if !IsNoRows(fmt.Errorf("lookup: %w", pgx.ErrNoRows)) {
		t.Fatal("expected wrapped pgx.ErrNoRows to match")
	}
	if IsNoRows(errors.New("boom")) {
		t.Fatal("unexpected match for unrelated error")
	}
}

func TestSQLRunnerRejectsUnmarkedQueries(t *testing.T) {
	// A nil pool proves the runner refuses before reaching the database.
	runner := NewSQLRunner(nil, zerolog.Nop())
	ctx := context.Background()

	if _, err := runner.Exec(ctx, "DELETE FROM video_operations"); !errors.Is(err, errMissingMarker) {
		t.Fatalf("Exec error = %v", err)
	}
	if _, err := runner.Query(ctx, "SELECT 1"); !errors.Is(err, errMissingMarker) {
		t.Fatalf("Query error = %v", err)
	}
	var n int
	if err := runner.QueryRow(ctx, "SELECT 1").Scan(&n); !errors.Is(err, errMissingMarker) {
		t.Fatalf("QueryRow error = %v", err)
	}
}

type scanFunc func(dest ...any) error

func (f scanFunc) Scan(dest ...any) error { return f(dest...) }

func sampleCount(t *testing.T, obs prometheus.Observer) uint64 {
	t.Helper()
	var m dto.Metric
	if err := obs.(prometheus.Metric).Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func TestTimedRowRecordsOutcome(t *testing.T) {
	runner := NewSQLRunner(nil, zerolog.Nop())
	const marker = "4a0c7c8e-7f55-4d3e-9a51-2f1b3c4d5e6f"
	noRows := metrics.SQLQueryDuration.WithLabelValues(marker, "query_row", "no_rows")
	failed := metrics.SQLQueryDuration.WithLabelValues(marker, "query_row", "error")
	beforeNoRows, beforeFailed := sampleCount(t, noRows), sampleCount(t, failed)

	empty := timedRow{runner: runner, marker: marker, row: scanFunc(func(dest ...any) error { return pgx.ErrNoRows })}
	if err := empty.Scan(); !IsNoRows(err) {
		t.Fatalf("Scan error = %v", err)
	}
	broken := timedRow{runner: runner, marker: marker, row: scanFunc(func(dest ...any) error { return errors.New("conn reset") })}
	if err := broken.Scan(); err == nil {
		t.Fatal("expected scan error")
	}

	if got := sampleCount(t, noRows) - beforeNoRows; got != 1 {
		t.Fatalf("no_rows samples = %d, want 1", got)
	}
	if got := sampleCount(t, failed) - beforeFailed; got != 1 {
		t.Fatalf("error samples = %d, want 1", got)
	}
}
