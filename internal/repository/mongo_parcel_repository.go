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

// parcelDoc is the document shape stored in the parcels collection.  Field
// names match the JSON the dashboard sends so existing documents written
// by earlier versions of the service stay readable.
type parcelDoc struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	SenderEmail     string             `bson:"senderEmail"`
	ParcelName      string             `bson:"parcelName"`
	Cost            float64            `bson:"cost"`
	ParcelType      string             `bson:"parcelType,omitempty"`
	ParcelWeight    float64            `bson:"parcelWeight,omitempty"`
	SenderName      string             `bson:"senderName,omitempty"`
	ReceiverName    string             `bson:"receiverName,omitempty"`
	ReceiverAddress string             `bson:"receiverAddress,omitempty"`
	ReceiverPhone   string             `bson:"receiverPhone,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt"`
	PaymentStatus   string             `bson:"paymentStatus,omitempty"`
	TrackingID      string             `bson:"trackingId,omitempty"`
}

func (d parcelDoc) toModel() model.Parcel {
	return model.Parcel{
		ID:              d.ID.Hex(),
		SenderEmail:     d.SenderEmail,
		ParcelName:      d.ParcelName,
		Cost:            d.Cost,
		ParcelType:      d.ParcelType,
		ParcelWeight:    d.ParcelWeight,
		SenderName:      d.SenderName,
		ReceiverName:    d.ReceiverName,
		ReceiverAddress: d.ReceiverAddress,
		ReceiverPhone:   d.ReceiverPhone,
		CreatedAt:       d.CreatedAt.UTC(),
		PaymentStatus:   d.PaymentStatus,
		TrackingID:      d.TrackingID,
	}
}

func parcelDocFrom(p *model.Parcel) parcelDoc {
	return parcelDoc{
		SenderEmail:     p.SenderEmail,
		ParcelName:      p.ParcelName,
		Cost:            p.Cost,
		ParcelType:      p.ParcelType,
		ParcelWeight:    p.ParcelWeight,
		SenderName:      p.SenderName,
		ReceiverName:    p.ReceiverName,
		ReceiverAddress: p.ReceiverAddress,
		ReceiverPhone:   p.ReceiverPhone,
		CreatedAt:       p.CreatedAt.UTC(),
	}
}

// parseObjectID maps a malformed hex id to ErrInvalidID.
func parseObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidID
	}
	return oid, nil
}

// MongoParcelRepo is the MongoDB implementation of ParcelStore.
type MongoParcelRepo struct {
	coll *mongo.Collection
}

// NewMongoParcelRepo returns a MongoParcelRepo over db's parcels collection.
func NewMongoParcelRepo(db *mongo.Database) *MongoParcelRepo {
	return &MongoParcelRepo{coll: db.Collection(database.ParcelsCollection)}
}

// ListParcels returns parcels newest first, optionally restricted to one
// sender.
func (r *MongoParcelRepo) ListParcels(ctx context.Context, f ParcelFilter) ([]model.Parcel, error) {
	filter := bson.M{}
	if f.SenderEmail != "" {
		filter["senderEmail"] = f.SenderEmail
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list parcels: %w", err)
	}
	var docs []parcelDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list parcels: %w", err)
	}
	out := make([]model.Parcel, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

// GetParcel loads one parcel by ObjectID hex.
func (r *MongoParcelRepo) GetParcel(ctx context.Context, id string) (*model.Parcel, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}
	var d parcelDoc
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrParcelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get parcel %s: %w", id, err)
	}
	p := d.toModel()
	return &p, nil
}

// CreateParcel inserts p and sets p.ID to the generated ObjectID hex.
func (r *MongoParcelRepo) CreateParcel(ctx context.Context, p *model.Parcel) (model.InsertResult, error) {
	doc := parcelDocFrom(p)
	doc.ID = primitive.NewObjectID()
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return model.InsertResult{}, fmt.Errorf("insert parcel: %w", err)
	}
	p.ID = doc.ID.Hex()
	return model.InsertResult{Acknowledged: true, InsertedID: p.ID}, nil
}

// DeleteParcel removes a parcel by id; a missing id yields a zero count.
func (r *MongoParcelRepo) DeleteParcel(ctx context.Context, id string) (model.DeleteResult, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return model.DeleteResult{}, err
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return model.DeleteResult{}, fmt.Errorf("delete parcel %s: %w", id, err)
	}
	return model.DeleteResult{Acknowledged: true, DeletedCount: res.DeletedCount}, nil
}
