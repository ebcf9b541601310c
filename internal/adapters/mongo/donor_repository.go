package mongo

import (
	"context"
	"errors"

	"github.com/viralforge/donor-ledger/internal/domain"
	"github.com/viralforge/donor-ledger/internal/ports"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type donorRepository struct {
	coll *mongo.Collection
}

// UpsertContribution merges into the (donationId, email) document with one
// findAndModify. Two first contributions racing on the unique index make the
// loser retry, and the retry lands on the merge path.
func (r *donorRepository) UpsertContribution(ctx context.Context, params ports.RecordContributionParams) (domain.Donor, bool, error) {
	var (
		donor   domain.Donor
		created bool
		err     error
	)
	for attempt := 0; attempt < 2; attempt++ {
		donor, created, err = r.upsertOnce(ctx, params)
		if err == nil || !mongo.IsDuplicateKeyError(err) {
			break
		}
	}
	return donor, created, err
}

func (r *donorRepository) upsertOnce(ctx context.Context, params ports.RecordContributionParams) (domain.Donor, bool, error) {
	newID := primitive.NewObjectID()
	at := params.Transaction.Date
	update := bson.M{
		"$inc": bson.M{"amount": params.Transaction.Amount},
		"$push": bson.M{"transactionHistory": transactionDocument{
			TransactionID: params.Transaction.TransactionID,
			PaymentMethod: params.Transaction.PaymentMethod,
			Amount:        params.Transaction.Amount,
			Date:          at,
		}},
		"$set": bson.M{"updatedAt": at},
		"$setOnInsert": bson.M{
			"_id":       newID,
			"name":      params.Name,
			"createdAt": at,
		},
	}
	var doc donorDocument
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"donationId": params.DonationID, "email": params.Email},
		update,
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return domain.Donor{}, false, err
	}
	return toDomainDonor(doc), doc.ID == newID, nil
}

func (r *donorRepository) GetByID(ctx context.Context, donorID string) (domain.Donor, error) {
	id, err := parseObjectID(donorID)
	if err != nil {
		return domain.Donor{}, err
	}
	var doc donorDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Donor{}, domain.ErrNotFound
		}
		return domain.Donor{}, err
	}
	return toDomainDonor(doc), nil
}

func (r *donorRepository) ListByIDs(ctx context.Context, donorIDs []string) ([]domain.Donor, error) {
	ids := make([]primitive.ObjectID, 0, len(donorIDs))
	for _, raw := range donorIDs {
		id, err := parseObjectID(raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find())
}

// ListByEmailWithCampaign joins each donor to its campaign. Donors whose
// donationId is not a valid id, or whose campaign is gone, drop out at the
// unwind.
func (r *donorRepository) ListByEmailWithCampaign(ctx context.Context, email string) ([]domain.DonorWithCampaign, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"email": email}}},
		{{Key: "$addFields", Value: bson.M{"campaignOid": bson.M{"$convert": bson.M{
			"input":   "$donationId",
			"to":      "objectId",
			"onError": nil,
			"onNull":  nil,
		}}}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         campaignsCollection,
			"localField":   "campaignOid",
			"foreignField": "_id",
			"as":           "campaign",
		}}},
		{{Key: "$unwind", Value: "$campaign"}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var docs []donorWithCampaignDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.DonorWithCampaign, 0, len(docs))
	for _, doc := range docs {
		out = append(out, domain.DonorWithCampaign{
			Donor:    toDomainDonor(doc.Donor),
			PetName:  doc.Campaign.PetName,
			PetImage: doc.Campaign.PetImage,
		})
	}
	return out, nil
}

func (r *donorRepository) ListByDonationID(ctx context.Context, donationID string) ([]domain.Donor, error) {
	return r.find(ctx, bson.M{"donationId": donationID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
}

func (r *donorRepository) Delete(ctx context.Context, donorID string) error {
	id, err := parseObjectID(donorID)
	if err != nil {
		return err
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *donorRepository) find(ctx context.Context, filter any, opts *options.FindOptions) ([]domain.Donor, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []donorDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Donor, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toDomainDonor(doc))
	}
	return out, nil
}
