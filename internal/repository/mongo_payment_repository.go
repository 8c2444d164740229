package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/zapshift/parcel-service/internal/database"
	"github.com/zapshift/parcel-service/internal/model"
)

type paymentDoc struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	Amount        float64            `bson:"amount"`
	Currency      string             `bson:"currency"`
	CustomerEmail string             `bson:"customerEmail"`
	ParcelID      string             `bson:"parcelId"`
	ParcelName    string             `bson:"parcelName"`
	TransactionID string             `bson:"transactionId"`
	PaymentStatus string             `bson:"paymentStatus"`
	PaidAt        time.Time          `bson:"paidAt"`
}

func (d paymentDoc) toModel() model.Payment {
	return model.Payment{
		ID:            d.ID.Hex(),
		Amount:        d.Amount,
		Currency:      d.Currency,
		CustomerEmail: d.CustomerEmail,
		ParcelID:      d.ParcelID,
		ParcelName:    d.ParcelName,
		TransactionID: d.TransactionID,
		PaymentStatus: d.PaymentStatus,
		PaidAt:        d.PaidAt.UTC(),
	}
}

// MongoPaymentRepo is the MongoDB implementation of PaymentStore.
// CommitPayment uses a multi-document transaction, so the deployment must
// be a replica set (Atlas clusters always are).
type MongoPaymentRepo struct {
	client   *mongo.Client
	payments *mongo.Collection
	parcels  *mongo.Collection
}

// NewMongoPaymentRepo returns a MongoPaymentRepo over db.
func NewMongoPaymentRepo(client *mongo.Client, db *mongo.Database) *MongoPaymentRepo {
	return &MongoPaymentRepo{
		client:   client,
		payments: db.Collection(database.PaymentsCollection),
		parcels:  db.Collection(database.ParcelsCollection),
	}
}

// FindByTransactionID looks up the payment recorded for a gateway
// transaction id.
func (r *MongoPaymentRepo) FindByTransactionID(ctx context.Context, transactionID string) (*model.Payment, error) {
	var d paymentDoc
	err := r.payments.FindOne(ctx, bson.M{"transactionId": transactionID}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find payment %s: %w", transactionID, err)
	}
	p := d.toModel()
	return &p, nil
}

// CommitPayment inserts the payment and marks the parcel paid inside one
// transaction.  The unique index on transactionId surfaces a replay as a
// duplicate key error, which aborts the transaction.
func (r *MongoPaymentRepo) CommitPayment(ctx context.Context, p *model.Payment, trackingID string) (model.UpdateResult, error) {
	parcelOID, err := parseObjectID(p.ParcelID)
	if err != nil {
		return model.UpdateResult{}, err
	}
	doc := paymentDoc{
		ID:            primitive.NewObjectID(),
		Amount:        p.Amount,
		Currency:      p.Currency,
		CustomerEmail: p.CustomerEmail,
		ParcelID:      p.ParcelID,
		ParcelName:    p.ParcelName,
		TransactionID: p.TransactionID,
		PaymentStatus: p.PaymentStatus,
		PaidAt:        p.PaidAt.UTC(),
	}

	sess, err := r.client.StartSession()
	if err != nil {
		return model.UpdateResult{}, fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	out, err := sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return r.writePayment(sc, doc, parcelOID, trackingID)
	})
	if err != nil {
		if errors.Is(err, ErrDuplicatePayment) {
			return model.UpdateResult{}, ErrDuplicatePayment
		}
		return model.UpdateResult{}, fmt.Errorf("commit payment: %w", err)
	}
	p.ID = doc.ID.Hex()
	return out.(model.UpdateResult), nil
}

// writePayment is the transaction body of CommitPayment.
func (r *MongoPaymentRepo) writePayment(ctx context.Context, doc paymentDoc, parcelOID primitive.ObjectID, trackingID string) (model.UpdateResult, error) {
	if _, err := r.payments.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.UpdateResult{}, ErrDuplicatePayment
		}
		return model.UpdateResult{}, fmt.Errorf("insert payment: %w", err)
	}
	update := bson.M{"$set": bson.M{
		"paymentStatus": model.PaymentStatusPaid,
		"trackingId":    trackingID,
	}}
	res, err := r.parcels.UpdateOne(ctx, bson.M{"_id": parcelOID}, update)
	if err != nil {
		return model.UpdateResult{}, fmt.Errorf("mark parcel %s paid: %w", doc.ParcelID, err)
	}
	return model.UpdateResult{
		Acknowledged:  true,
		MatchedCount:  res.MatchedCount,
		ModifiedCount: res.ModifiedCount,
	}, nil
}

// ListPayments returns payments newest first, optionally restricted to
// one payer.
func (r *MongoPaymentRepo) ListPayments(ctx context.Context, f PaymentFilter) ([]model.Payment, error) {
	filter := bson.M{}
	if f.CustomerEmail != "" {
		filter["customerEmail"] = f.CustomerEmail
	}
	opts := options.Find().SetSort(bson.D{{Key: "paidAt", Value: -1}})
	cur, err := r.payments.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	var docs []paymentDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	out := make([]model.Payment, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}
