package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/synapse/store"
)

func (d *DB) RemainingQuota(ctx context.Context, account string) (int, error) {
	var remaining int
	err := d.db.QueryRowContext(ctx,
		`SELECT remaining FROM quota_ledger WHERE account = `+placeholder(1), account).Scan(&remaining)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "failed to read quota")
	}
	return remaining, nil
}

// ConsumeQuota decrements the balance only if it covers amount, in one statement.
func (d *DB) ConsumeQuota(ctx context.Context, account string, amount int) error {
	if amount <= 0 {
		return errors.Errorf("invalid quota amount %d", amount)
	}
	result, err := d.db.ExecContext(ctx, `
		UPDATE quota_ledger
		SET remaining = remaining - `+placeholder(1)+`, updated_ts = `+placeholder(2)+`
		WHERE account = `+placeholder(3)+` AND remaining >= `+placeholder(4),
		amount, time.Now().Unix(), account, amount)
	if err != nil {
		return errors.Wrap(err, "failed to consume quota")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if rows == 0 {
		return store.ErrInsufficientCredits
	}
	return nil
}

func (d *DB) GrantQuota(ctx context.Context, account string, amount int) error {
	if amount <= 0 {
		return errors.Errorf("invalid quota amount %d", amount)
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO quota_ledger (account, remaining, updated_ts)
		VALUES (`+placeholders(3)+`)
		ON CONFLICT (account) DO UPDATE SET
			remaining = remaining + EXCLUDED.remaining,
			updated_ts = EXCLUDED.updated_ts`,
		account, amount, time.Now().Unix())
	if err != nil {
		return errors.Wrap(err, "failed to grant quota")
	}
	return nil
}
