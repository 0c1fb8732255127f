package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"pokiface/api/internal/match"
	"pokiface/api/internal/match/types"
)

type MatchRepo struct{ DB *sql.DB }

func NewMatchRepo(db *sql.DB) *MatchRepo { return &MatchRepo{DB: db} }

// MatchRow is one finished match as stored.
type MatchRow struct {
	ID        int64       `json:"id"`
	CreatedAt time.Time   `json:"created_at"`
	ImageHash string      `json:"image_hash"`
	Engine    string      `json:"engine"`
	Model     string      `json:"model"`
	Match     types.Match `json:"match"`
	Fallback  bool        `json:"fallback"`
}

// Record implements match.Recorder.
func (r *MatchRepo) Record(ctx context.Context, rec match.Record) error {
	const q = `
insert into matches (image_hash, engine, model, pokemon_name, description, artwork_url, fallback, created_at)
values ($1,$2,$3,$4,$5,$6,$7,$8)`
	ts := rec.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := r.DB.ExecContext(ctx, q,
		rec.ImageHash, rec.Engine, rec.Model,
		rec.Match.CreatureName, rec.Match.Description, rec.Match.ArtworkURL,
		rec.Fallback, ts,
	)
	return err
}

// Recent returns the newest matches first.
func (r *MatchRepo) Recent(ctx context.Context, limit int) ([]MatchRow, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	const q = `
select id, created_at, image_hash, engine, model, pokemon_name, description, artwork_url, fallback
from matches
order by created_at desc
limit $1`
	rows, err := r.DB.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]MatchRow, 0, limit)
	for rows.Next() {
		var m MatchRow
		if err := rows.Scan(&m.ID, &m.CreatedAt, &m.ImageHash, &m.Engine, &m.Model,
			&m.Match.CreatureName, &m.Match.Description, &m.Match.ArtworkURL, &m.Fallback); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// PurgeOlderThan removes old history rows.
func (r *MatchRepo) PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be > 0")
	}
	cutoff := time.Now().Add(-olderThan)
	const q = `delete from matches where created_at < $1`
	res, err := r.DB.ExecContext(ctx, q, cutoff)
	if err != nil {
		return 0, err
	}
	aff, _ := res.RowsAffected()
	return aff, nil
}
