package main

import (
	"context"
	"database/sql"
	"time"

	membershipservice "modelgov/internal/membership/service"
	membershipstore "modelgov/internal/membership/store"
	dErrors "modelgov/pkg/domain-errors"
)

const defaultMembershipTxTimeout = 5 * time.Second

// membershipPostgresTx runs membership mutations inside one database
// transaction. Row locks taken by the store live until commit or rollback.
type membershipPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newMembershipPostgresTx(db *sql.DB, timeout time.Duration) *membershipPostgresTx {
	return &membershipPostgresTx{db: db, timeout: timeout}
}

func (t *membershipPostgresTx) RunInTx(ctx context.Context, fn func(store membershipservice.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultMembershipTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(membershipstore.NewPostgresTx(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}
