package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/zapshift/parcel-service/internal/model"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY, raised when an insert violates a
// unique key.
const mysqlDuplicateEntry = 1062

// PaymentRepo is the MySQL implementation of PaymentStore.  It shares the
// database with ParcelRepo because committing a payment also updates the
// parcel inside the same transaction.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `id, amount, currency, customer_email, parcel_id, parcel_name,
	transaction_id, payment_status, paid_at`

func scanPayment(row rowScanner) (model.Payment, error) {
	var p model.Payment
	err := row.Scan(
		&p.ID, &p.Amount, &p.Currency, &p.CustomerEmail, &p.ParcelID, &p.ParcelName,
		&p.TransactionID, &p.PaymentStatus, &p.PaidAt,
	)
	if err != nil {
		return model.Payment{}, err
	}
	p.PaidAt = p.PaidAt.UTC()
	return p, nil
}

// FindByTransactionID looks up the payment recorded for a gateway
// transaction id.
func (r *PaymentRepo) FindByTransactionID(ctx context.Context, transactionID string) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE transaction_id = ?`
	p, err := scanPayment(r.db.QueryRowContext(ctx, q, transactionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find payment %s: %w", transactionID, err)
	}
	return &p, nil
}

// CommitPayment inserts the payment and marks its parcel paid in one
// transaction.  The insert runs first so a duplicate transaction id
// aborts before the parcel is touched.  The parcel row is locked before
// the update so the matched count reflects the row the update saw.
func (r *PaymentRepo) CommitPayment(ctx context.Context, p *model.Payment, trackingID string) (model.UpdateResult, error) {
	if !validUUID(p.ParcelID) {
		return model.UpdateResult{}, ErrInvalidID
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.UpdateResult{}, fmt.Errorf("begin commit payment: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	id := uuid.NewString()
	const ins = `INSERT INTO payments (id, amount, currency, customer_email, parcel_id, parcel_name,
		transaction_id, payment_status, paid_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, ins,
		id, p.Amount, p.Currency, p.CustomerEmail, p.ParcelID, p.ParcelName,
		p.TransactionID, p.PaymentStatus, p.PaidAt.UTC(),
	)
	if err != nil {
		if isDuplicateEntry(err) {
			return model.UpdateResult{}, ErrDuplicatePayment
		}
		return model.UpdateResult{}, fmt.Errorf("insert payment: %w", err)
	}

	var matched int64
	const lock = `SELECT COUNT(*) FROM parcels WHERE id = ? FOR UPDATE`
	if err := tx.QueryRowContext(ctx, lock, p.ParcelID).Scan(&matched); err != nil {
		return model.UpdateResult{}, fmt.Errorf("lock parcel %s: %w", p.ParcelID, err)
	}

	const upd = `UPDATE parcels SET payment_status = ?, tracking_id = ? WHERE id = ?`
	res, err := tx.ExecContext(ctx, upd, model.PaymentStatusPaid, trackingID, p.ParcelID)
	if err != nil {
		return model.UpdateResult{}, fmt.Errorf("mark parcel %s paid: %w", p.ParcelID, err)
	}
	modified, err := res.RowsAffected()
	if err != nil {
		return model.UpdateResult{}, fmt.Errorf("mark parcel %s paid: %w", p.ParcelID, err)
	}

	if err := tx.Commit(); err != nil {
		return model.UpdateResult{}, fmt.Errorf("commit payment: %w", err)
	}
	committed = true
	p.ID = id
	return model.UpdateResult{Acknowledged: true, MatchedCount: matched, ModifiedCount: modified}, nil
}

// ListPayments returns payments newest first, optionally restricted to
// one payer.
func (r *PaymentRepo) ListPayments(ctx context.Context, f PaymentFilter) ([]model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments`
	var args []any
	if f.CustomerEmail != "" {
		q += ` WHERE customer_email = ?`
		args = append(args, f.CustomerEmail)
	}
	q += ` ORDER BY paid_at DESC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	out := []model.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return out, nil
}

func isDuplicateEntry(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
