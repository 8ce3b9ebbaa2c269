package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"longvideo/internal/domain"
	"longvideo/internal/infra"
	"longvideo/internal/sqlinline"
)

// Recorder persists finished operations beyond the in-memory retention window.
type Recorder interface {
	Record(ctx context.Context, op domain.Operation) error
}

// Entry is one archived operation.
type Entry struct {
	OperationID  string        `json:"operation_id"`
	Kind         domain.Kind   `json:"kind"`
	Status       domain.Status `json:"status"`
	Prompt       string        `json:"prompt"`
	ArtifactPath string        `json:"artifact_path,omitempty"`
	ErrorDetail  string        `json:"error_detail,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
}

// Postgres archives operations into the video_operations table.
type Postgres struct {
	sql infra.SQLExecutor
}

func NewPostgres(sql infra.SQLExecutor) *Postgres {
	return &Postgres{sql: sql}
}

// EnsureSchema creates the video_operations table when missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.sql.Exec(ctx, sqlinline.QCreateVideoOperations); err != nil {
		return fmt.Errorf("archive: ensure schema: %w", err)
	}
	return nil
}

// Record upserts op. Only terminal operations are archived.
func (p *Postgres) Record(ctx context.Context, op domain.Operation) error {
	if !op.Status.IsTerminal() {
		return fmt.Errorf("archive: %w: operation %s is still %s", domain.ErrInvalidRequest, op.ID, op.Status)
	}
	cfg, err := json.Marshal(op.Config)
	if err != nil {
		return fmt.Errorf("archive: encode config: %w", err)
	}
	plan, err := json.Marshal(op.Segments())
	if err != nil {
		return fmt.Errorf("archive: encode plan: %w", err)
	}
	completed := []int{}
	if op.Long != nil {
		completed = op.Long.CompletedSegments
	} else if op.Status == domain.StatusCompleted {
		completed = []int{0}
	}
	done, err := json.Marshal(completed)
	if err != nil {
		return fmt.Errorf("archive: encode segments: %w", err)
	}

	_, err = p.sql.Exec(ctx, sqlinline.QUpsertVideoOperation,
		op.ID,
		string(op.Kind),
		string(op.Status),
		op.Prompt,
		cfg,
		plan,
		done,
		op.ArtifactPath,
		op.ErrorDetail,
		op.CreatedAt,
		op.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("archive: record %s: %w", op.ID, err)
	}
	return nil
}

// Recent returns up to limit archived operations, newest first.
func (p *Postgres) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := p.sql.Query(ctx, sqlinline.QSelectRecentVideoOperations, limit)
	if err != nil {
		return nil, fmt.Errorf("archive: query recent: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var kind, status string
		if err := rows.Scan(&e.OperationID, &kind, &status, &e.Prompt, &e.ArtifactPath, &e.ErrorDetail, &e.CreatedAt, &e.CompletedAt); err != nil {
			return nil, fmt.Errorf("archive: scan: %w", err)
		}
		e.Kind = domain.Kind(kind)
		e.Status = domain.Status(status)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive: rows: %w", err)
	}
	return out, nil
}

var _ Recorder = (*Postgres)(nil)
