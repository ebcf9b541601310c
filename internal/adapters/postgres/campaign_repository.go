package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/viralforge/donor-ledger/internal/domain"
	"github.com/viralforge/donor-ledger/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type campaignRepository struct {
	db *gorm.DB
}

const applyContributionSQL = `
UPDATE campaigns SET
    collected_amount = collected_amount + @amount,
    donor_ids = CASE
        WHEN jsonb_exists(donor_ids, @donor) THEN donor_ids
        ELSE donor_ids || jsonb_build_array(CAST(@donor AS text))
    END,
    status = CASE WHEN collected_amount + @amount >= max_donation THEN @donated ELSE @ongoing END,
    updated_at = @at
WHERE campaign_id = @id
RETURNING *`

const reverseContributionSQL = `
UPDATE campaigns SET
    collected_amount = collected_amount - @amount,
    donor_ids = COALESCE(
        (SELECT jsonb_agg(e) FROM jsonb_array_elements(donor_ids) AS e WHERE e <> to_jsonb(CAST(@donor AS text))),
        '[]'::jsonb
    ),
    status = CASE
        WHEN NOT @recompute THEN status
        WHEN collected_amount - @amount >= max_donation THEN @donated
        WHEN collected_amount - @amount > 0 THEN @ongoing
        ELSE @not_donate
    END,
    updated_at = @at
WHERE campaign_id = @id
RETURNING *`

func (r *campaignRepository) Create(ctx context.Context, campaign domain.Campaign) (domain.Campaign, error) {
	rec := campaignModel{
		OwnerEmail:       campaign.OwnerEmail,
		PetName:          campaign.PetName,
		PetImage:         campaign.PetImage,
		MaxDonation:      campaign.MaxDonation,
		CollectedAmount:  campaign.CollectedAmount,
		Status:           campaign.Status,
		Pause:            campaign.Pause,
		DonorIDs:         encodeIDs(campaign.DonorIDs),
		LastDate:         campaign.LastDate,
		ShortDescription: campaign.ShortDescription,
		LongDescription:  campaign.LongDescription,
		CreatedAt:        campaign.CreatedAt,
		UpdatedAt:        campaign.UpdatedAt,
	}
	if campaign.CampaignID != "" {
		id, err := parseID(campaign.CampaignID)
		if err != nil {
			return domain.Campaign{}, err
		}
		rec.CampaignID = id
	}
	if err := conn(ctx, r.db).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.Campaign{}, domain.ErrConflict
		}
		return domain.Campaign{}, err
	}
	return toDomainCampaign(rec), nil
}

func (r *campaignRepository) GetByID(ctx context.Context, campaignID string) (domain.Campaign, error) {
	id, err := parseID(campaignID)
	if err != nil {
		return domain.Campaign{}, err
	}
	var rec campaignModel
	if err := conn(ctx, r.db).Where("campaign_id = ?", id).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Campaign{}, domain.ErrNotFound
		}
		return domain.Campaign{}, err
	}
	return toDomainCampaign(rec), nil
}

// GetForUpdate takes a row lock so concurrent contributions queue behind the
// caller's transaction.
func (r *campaignRepository) GetForUpdate(ctx context.Context, campaignID string) (domain.Campaign, error) {
	id, err := parseID(campaignID)
	if err != nil {
		return domain.Campaign{}, err
	}
	var rec campaignModel
	err = conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("campaign_id = ?", id).
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Campaign{}, domain.ErrNotFound
		}
		return domain.Campaign{}, err
	}
	return toDomainCampaign(rec), nil
}

func (r *campaignRepository) ListByIDs(ctx context.Context, campaignIDs []string) ([]domain.Campaign, error) {
	ids := parseIDsLenient(campaignIDs)
	if len(ids) == 0 {
		return []domain.Campaign{}, nil
	}
	var rows []campaignModel
	if err := conn(ctx, r.db).Where("campaign_id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainCampaigns(rows), nil
}

func (r *campaignRepository) ListByOwner(ctx context.Context, ownerEmail string) ([]domain.Campaign, error) {
	var rows []campaignModel
	if err := conn(ctx, r.db).Where("owner_email = ?", ownerEmail).
		Order("created_at desc").Order("campaign_id desc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainCampaigns(rows), nil
}

func (r *campaignRepository) ListRecommendable(ctx context.Context, filter ports.RecommendFilter) ([]domain.Campaign, error) {
	q := conn(ctx, r.db).Where("status IN ?", []string{domain.CampaignStatusNotDonate, domain.CampaignStatusOngoing})
	if filter.ExcludeID != "" {
		if id, err := parseID(filter.ExcludeID); err == nil {
			q = q.Where("campaign_id <> ?", id)
		}
	}
	if filter.ExcludeOwner != "" {
		q = q.Where("owner_email <> ?", filter.ExcludeOwner)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var rows []campaignModel
	if err := q.Order("created_at desc").Order("campaign_id desc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainCampaigns(rows), nil
}

func (r *campaignRepository) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := conn(ctx, r.db).Model(&campaignModel{}).Order("campaign_id").Pluck("campaign_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *campaignRepository) Update(ctx context.Context, params ports.UpdateCampaignParams) (domain.Campaign, error) {
	id, err := parseID(params.CampaignID)
	if err != nil {
		return domain.Campaign{}, err
	}
	updates := map[string]any{
		"updated_at": params.UpdatedAt,
	}
	if params.PetName != nil {
		updates["pet_name"] = *params.PetName
	}
	if params.PetImage != nil {
		updates["pet_image"] = *params.PetImage
	}
	if params.MaxDonation != nil {
		updates["max_donation"] = *params.MaxDonation
		updates["status"] = gorm.Expr(
			"CASE WHEN collected_amount >= ? THEN ? WHEN collected_amount > 0 THEN ? ELSE ? END",
			*params.MaxDonation, domain.CampaignStatusDonated, domain.CampaignStatusOngoing, domain.CampaignStatusNotDonate,
		)
	}
	if params.LastDate != nil {
		updates["last_date"] = *params.LastDate
	}
	if params.ShortDescription != nil {
		updates["short_description"] = *params.ShortDescription
	}
	if params.LongDescription != nil {
		updates["long_description"] = *params.LongDescription
	}
	res := conn(ctx, r.db).Model(&campaignModel{}).Where("campaign_id = ?", id).Updates(updates)
	if res.Error != nil {
		return domain.Campaign{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Campaign{}, domain.ErrNotFound
	}
	return r.GetByID(ctx, params.CampaignID)
}

func (r *campaignRepository) SetPause(ctx context.Context, campaignID, pause string, at time.Time) (domain.Campaign, error) {
	id, err := parseID(campaignID)
	if err != nil {
		return domain.Campaign{}, err
	}
	res := conn(ctx, r.db).Model(&campaignModel{}).Where("campaign_id = ?", id).Updates(map[string]any{
		"pause":      pause,
		"updated_at": at,
	})
	if res.Error != nil {
		return domain.Campaign{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Campaign{}, domain.ErrNotFound
	}
	return r.GetByID(ctx, campaignID)
}

func (r *campaignRepository) ApplyContribution(ctx context.Context, params ports.ApplyContributionParams) (domain.Campaign, error) {
	id, err := parseID(params.CampaignID)
	if err != nil {
		return domain.Campaign{}, err
	}
	var rec campaignModel
	res := conn(ctx, r.db).Raw(applyContributionSQL, map[string]any{
		"id":      id,
		"donor":   params.DonorID,
		"amount":  params.Amount,
		"at":      params.At,
		"donated": domain.CampaignStatusDonated,
		"ongoing": domain.CampaignStatusOngoing,
	}).Scan(&rec)
	if res.Error != nil {
		return domain.Campaign{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Campaign{}, domain.ErrNotFound
	}
	return toDomainCampaign(rec), nil
}

func (r *campaignRepository) ReverseContribution(ctx context.Context, params ports.ReverseContributionParams) (domain.Campaign, error) {
	id, err := parseID(params.CampaignID)
	if err != nil {
		return domain.Campaign{}, err
	}
	var rec campaignModel
	res := conn(ctx, r.db).Raw(reverseContributionSQL, map[string]any{
		"id":         id,
		"donor":      params.DonorID,
		"amount":     params.Amount,
		"recompute":  params.RecomputeStatus,
		"at":         params.At,
		"donated":    domain.CampaignStatusDonated,
		"ongoing":    domain.CampaignStatusOngoing,
		"not_donate": domain.CampaignStatusNotDonate,
	}).Scan(&rec)
	if res.Error != nil {
		return domain.Campaign{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Campaign{}, domain.ErrNotFound
	}
	return toDomainCampaign(rec), nil
}

func (r *campaignRepository) OverwriteTotals(ctx context.Context, totals ports.CampaignTotals) error {
	id, err := parseID(totals.CampaignID)
	if err != nil {
		return err
	}
	db := conn(ctx, r.db)
	res := db.Model(&campaignModel{}).
		Where("campaign_id = ? AND collected_amount = ? AND updated_at = ?", id, totals.ExpectedCollected, totals.ExpectedUpdatedAt).
		Updates(map[string]any{
			"collected_amount": totals.CollectedAmount,
			"donor_ids":        encodeIDs(totals.DonorIDs),
			"status":           totals.Status,
			"updated_at":       totals.At,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var count int64
	if err := db.Model(&campaignModel{}).Where("campaign_id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}

func toDomainCampaigns(rows []campaignModel) []domain.Campaign {
	out := make([]domain.Campaign, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainCampaign(row))
	}
	return out
}
