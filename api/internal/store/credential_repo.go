package store

import (
	"context"
	"database/sql"
	"errors"

	"pokiface/api/internal/credential"
)

// CredentialRepo is a credential.Store on Postgres.
type CredentialRepo struct{ DB *sql.DB }

func NewCredentialRepo(db *sql.DB) *CredentialRepo { return &CredentialRepo{DB: db} }

func (r *CredentialRepo) Get(ctx context.Context, owner, name string) (string, error) {
	const q = `select value from credentials where owner=$1 and name=$2`
	var v string
	if err := r.DB.QueryRowContext(ctx, q, owner, name).Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", credential.ErrNotFound
		}
		return "", err
	}
	return v, nil
}

// Put inserts or replaces the value. PK: (owner, name).
func (r *CredentialRepo) Put(ctx context.Context, owner, name, value string) error {
	const q = `
insert into credentials(owner, name, value)
values ($1,$2,$3)
on conflict (owner, name)
do update set value=excluded.value, updated_at=now()`
	_, err := r.DB.ExecContext(ctx, q, owner, name, value)
	return err
}

func (r *CredentialRepo) Delete(ctx context.Context, owner, name string) error {
	const q = `delete from credentials where owner=$1 and name=$2`
	res, err := r.DB.ExecContext(ctx, q, owner, name)
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff == 0 {
		return credential.ErrNotFound
	}
	return nil
}
