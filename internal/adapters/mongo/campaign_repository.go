package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/viralforge/donor-ledger/internal/domain"
	"github.com/viralforge/donor-ledger/internal/ports"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type campaignRepository struct {
	coll *mongo.Collection
}

var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

func (r *campaignRepository) Create(ctx context.Context, campaign domain.Campaign) (domain.Campaign, error) {
	doc := campaignDocument{
		ID:               primitive.NewObjectID(),
		OwnerEmail:       campaign.OwnerEmail,
		PetName:          campaign.PetName,
		PetImage:         campaign.PetImage,
		MaxDonation:      campaign.MaxDonation,
		CollectedAmount:  campaign.CollectedAmount,
		Status:           campaign.Status,
		Pause:            campaign.Pause,
		DonorIDs:         parseObjectIDsLenient(campaign.DonorIDs),
		LastDate:         campaign.LastDate,
		ShortDescription: campaign.ShortDescription,
		LongDescription:  campaign.LongDescription,
		CreatedAt:        campaign.CreatedAt,
		UpdatedAt:        campaign.UpdatedAt,
	}
	if campaign.CampaignID != "" {
		id, err := parseObjectID(campaign.CampaignID)
		if err != nil {
			return domain.Campaign{}, err
		}
		doc.ID = id
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.Campaign{}, domain.ErrConflict
		}
		return domain.Campaign{}, err
	}
	return toDomainCampaign(doc), nil
}

func (r *campaignRepository) GetByID(ctx context.Context, campaignID string) (domain.Campaign, error) {
	id, err := parseObjectID(campaignID)
	if err != nil {
		return domain.Campaign{}, err
	}
	var doc campaignDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Campaign{}, domain.ErrNotFound
		}
		return domain.Campaign{}, err
	}
	return toDomainCampaign(doc), nil
}

// GetForUpdate is a plain read. Inside a session transaction a concurrent
// contribution surfaces as a write conflict; without one OverwriteTotals
// re-checks the aggregate it was given.
func (r *campaignRepository) GetForUpdate(ctx context.Context, campaignID string) (domain.Campaign, error) {
	return r.GetByID(ctx, campaignID)
}

func (r *campaignRepository) ListByIDs(ctx context.Context, campaignIDs []string) ([]domain.Campaign, error) {
	ids := parseObjectIDsLenient(campaignIDs)
	if len(ids) == 0 {
		return []domain.Campaign{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find())
}

func (r *campaignRepository) ListByOwner(ctx context.Context, ownerEmail string) ([]domain.Campaign, error) {
	return r.find(ctx, bson.M{"campaignOwnerEmail": ownerEmail}, options.Find().SetSort(newestFirst))
}

func (r *campaignRepository) ListRecommendable(ctx context.Context, filter ports.RecommendFilter) ([]domain.Campaign, error) {
	query := bson.M{"status": bson.M{"$in": bson.A{domain.CampaignStatusNotDonate, domain.CampaignStatusOngoing}}}
	if filter.ExcludeID != "" {
		if id, err := primitive.ObjectIDFromHex(filter.ExcludeID); err == nil {
			query["_id"] = bson.M{"$ne": id}
		}
	}
	if filter.ExcludeOwner != "" {
		query["campaignOwnerEmail"] = bson.M{"$ne": filter.ExcludeOwner}
	}
	opts := options.Find().SetSort(newestFirst)
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	return r.find(ctx, query, opts)
}

func (r *campaignRepository) ListIDs(ctx context.Context) ([]string, error) {
	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := make([]string, 0)
	for cur.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out = append(out, row.ID.Hex())
	}
	return out, cur.Err()
}

// Update runs as a pipeline so a new goal and the status it implies are
// written together. User text goes through $literal so a leading "$" is
// never read as a field path.
func (r *campaignRepository) Update(ctx context.Context, params ports.UpdateCampaignParams) (domain.Campaign, error) {
	id, err := parseObjectID(params.CampaignID)
	if err != nil {
		return domain.Campaign{}, err
	}
	set := bson.D{{Key: "updatedAt", Value: params.UpdatedAt}}
	addText := func(field string, value *string) {
		if value != nil {
			set = append(set, bson.E{Key: field, Value: bson.M{"$literal": *value}})
		}
	}
	addText("petName", params.PetName)
	addText("petImage", params.PetImage)
	addText("lastDate", params.LastDate)
	addText("shortDescription", params.ShortDescription)
	addText("longDescription", params.LongDescription)
	pipeline := mongo.Pipeline{}
	if params.MaxDonation != nil {
		set = append(set, bson.E{Key: "maxDonation", Value: *params.MaxDonation})
		pipeline = append(pipeline, bson.D{{Key: "$set", Value: set}}, deriveStatusStage())
	} else {
		pipeline = append(pipeline, bson.D{{Key: "$set", Value: set}})
	}
	return r.findOneAndUpdate(ctx, id, pipeline)
}

func (r *campaignRepository) SetPause(ctx context.Context, campaignID, pause string, at time.Time) (domain.Campaign, error) {
	id, err := parseObjectID(campaignID)
	if err != nil {
		return domain.Campaign{}, err
	}
	return r.findOneAndUpdate(ctx, id, bson.M{"$set": bson.M{"pause": pause, "updatedAt": at}})
}

// ApplyContribution appends the donor id when absent, adds the amount and
// writes the contribution status against the new total in one update.
func (r *campaignRepository) ApplyContribution(ctx context.Context, params ports.ApplyContributionParams) (domain.Campaign, error) {
	id, err := parseObjectID(params.CampaignID)
	if err != nil {
		return domain.Campaign{}, err
	}
	donorID, err := parseObjectID(params.DonorID)
	if err != nil {
		return domain.Campaign{}, err
	}
	donorIDs := bson.M{"$ifNull": bson.A{"$donorIds", bson.A{}}}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "donorIds", Value: bson.M{"$cond": bson.A{
				bson.M{"$in": bson.A{donorID, donorIDs}},
				donorIDs,
				bson.M{"$concatArrays": bson.A{donorIDs, bson.A{donorID}}},
			}}},
			{Key: "collectedAmount", Value: bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$collectedAmount", 0}}, params.Amount}}},
			{Key: "updatedAt", Value: params.At},
		}}},
		{{Key: "$set", Value: bson.D{
			{Key: "status", Value: bson.M{"$cond": bson.A{
				bson.M{"$gte": bson.A{"$collectedAmount", "$maxDonation"}},
				domain.CampaignStatusDonated,
				domain.CampaignStatusOngoing,
			}}},
		}}},
	}
	return r.findOneAndUpdate(ctx, id, pipeline)
}

func (r *campaignRepository) ReverseContribution(ctx context.Context, params ports.ReverseContributionParams) (domain.Campaign, error) {
	id, err := parseObjectID(params.CampaignID)
	if err != nil {
		return domain.Campaign{}, err
	}
	donorID, err := parseObjectID(params.DonorID)
	if err != nil {
		return domain.Campaign{}, err
	}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "donorIds", Value: bson.M{"$filter": bson.M{
				"input": bson.M{"$ifNull": bson.A{"$donorIds", bson.A{}}},
				"cond":  bson.M{"$ne": bson.A{"$$this", donorID}},
			}}},
			{Key: "collectedAmount", Value: bson.M{"$subtract": bson.A{bson.M{"$ifNull": bson.A{"$collectedAmount", 0}}, params.Amount}}},
			{Key: "updatedAt", Value: params.At},
		}}},
	}
	if params.RecomputeStatus {
		pipeline = append(pipeline, deriveStatusStage())
	}
	return r.findOneAndUpdate(ctx, id, pipeline)
}

func (r *campaignRepository) OverwriteTotals(ctx context.Context, totals ports.CampaignTotals) error {
	id, err := parseObjectID(totals.CampaignID)
	if err != nil {
		return err
	}
	filter := bson.M{"_id": id, "collectedAmount": totals.ExpectedCollected}
	if totals.ExpectedUpdatedAt.IsZero() {
		// documents written before updatedAt existed decode as the zero time
		filter["updatedAt"] = bson.M{"$in": bson.A{nil, time.Time{}}}
	} else {
		filter["updatedAt"] = totals.ExpectedUpdatedAt
	}
	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{
		"collectedAmount": totals.CollectedAmount,
		"donorIds":        parseObjectIDsLenient(totals.DonorIDs),
		"status":          totals.Status,
		"updatedAt":       totals.At,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}
	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}

func deriveStatusStage() bson.D {
	return bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: bson.M{"$switch": bson.M{
			"branches": bson.A{
				bson.M{"case": bson.M{"$gte": bson.A{"$collectedAmount", "$maxDonation"}}, "then": domain.CampaignStatusDonated},
				bson.M{"case": bson.M{"$gt": bson.A{"$collectedAmount", 0}}, "then": domain.CampaignStatusOngoing},
			},
			"default": domain.CampaignStatusNotDonate,
		}}},
	}}}
}

func (r *campaignRepository) findOneAndUpdate(ctx context.Context, id primitive.ObjectID, update any) (domain.Campaign, error) {
	var doc campaignDocument
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Campaign{}, domain.ErrNotFound
		}
		return domain.Campaign{}, err
	}
	return toDomainCampaign(doc), nil
}

func (r *campaignRepository) find(ctx context.Context, filter any, opts *options.FindOptions) ([]domain.Campaign, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []campaignDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Campaign, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toDomainCampaign(doc))
	}
	return out, nil
}
