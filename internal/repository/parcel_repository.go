package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/zapshift/parcel-service/internal/model"
)

// ParcelRepo is the MySQL implementation of ParcelStore.  Parcel ids are
// UUID strings generated on insert.
type ParcelRepo struct {
	db *sql.DB
}

// NewParcelRepo returns a ParcelRepo bound to the given database.
func NewParcelRepo(db *sql.DB) *ParcelRepo { return &ParcelRepo{db: db} }

const parcelColumns = `id, sender_email, parcel_name, cost, parcel_type, parcel_weight,
	sender_name, receiver_name, receiver_address, receiver_phone,
	payment_status, tracking_id, created_at`

// validUUID accepts only the canonical 36 character form the repo
// generates, not the braced or URN variants uuid.Parse also allows.
func validUUID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParcel(row rowScanner) (model.Parcel, error) {
	var p model.Parcel
	var status, tracking sql.NullString
	err := row.Scan(
		&p.ID, &p.SenderEmail, &p.ParcelName, &p.Cost, &p.ParcelType, &p.ParcelWeight,
		&p.SenderName, &p.ReceiverName, &p.ReceiverAddress, &p.ReceiverPhone,
		&status, &tracking, &p.CreatedAt,
	)
	if err != nil {
		return model.Parcel{}, err
	}
	p.PaymentStatus = status.String
	p.TrackingID = tracking.String
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

// ListParcels returns parcels newest first, optionally restricted to one
// sender.
func (r *ParcelRepo) ListParcels(ctx context.Context, f ParcelFilter) ([]model.Parcel, error) {
	q := `SELECT ` + parcelColumns + ` FROM parcels`
	var args []any
	if f.SenderEmail != "" {
		q += ` WHERE sender_email = ?`
		args = append(args, f.SenderEmail)
	}
	q += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list parcels: %w", err)
	}
	defer rows.Close()

	out := []model.Parcel{}
	for rows.Next() {
		p, err := scanParcel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan parcel: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list parcels: %w", err)
	}
	return out, nil
}

// GetParcel loads one parcel.  It returns ErrInvalidID for a malformed id
// and ErrParcelNotFound when no row matches.
func (r *ParcelRepo) GetParcel(ctx context.Context, id string) (*model.Parcel, error) {
	if !validUUID(id) {
		return nil, ErrInvalidID
	}
	const q = `SELECT ` + parcelColumns + ` FROM parcels WHERE id = ?`
	p, err := scanParcel(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrParcelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get parcel %s: %w", id, err)
	}
	return &p, nil
}

// CreateParcel inserts p, assigning a new id to p.ID.  CreatedAt must
// already be set by the caller.
func (r *ParcelRepo) CreateParcel(ctx context.Context, p *model.Parcel) (model.InsertResult, error) {
	id := uuid.NewString()
	const q = `INSERT INTO parcels (id, sender_email, parcel_name, cost, parcel_type, parcel_weight,
		sender_name, receiver_name, receiver_address, receiver_phone, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		id, p.SenderEmail, p.ParcelName, p.Cost, p.ParcelType, p.ParcelWeight,
		p.SenderName, p.ReceiverName, p.ReceiverAddress, p.ReceiverPhone, p.CreatedAt.UTC(),
	)
	if err != nil {
		return model.InsertResult{}, fmt.Errorf("insert parcel: %w", err)
	}
	p.ID = id
	return model.InsertResult{Acknowledged: true, InsertedID: id}, nil
}

// DeleteParcel removes a parcel by id.  Deleting an id that does not
// exist succeeds with a zero count.
func (r *ParcelRepo) DeleteParcel(ctx context.Context, id string) (model.DeleteResult, error) {
	if !validUUID(id) {
		return model.DeleteResult{}, ErrInvalidID
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM parcels WHERE id = ?`, id)
	if err != nil {
		return model.DeleteResult{}, fmt.Errorf("delete parcel %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.DeleteResult{}, fmt.Errorf("delete parcel %s: %w", id, err)
	}
	return model.DeleteResult{Acknowledged: true, DeletedCount: n}, nil
}
