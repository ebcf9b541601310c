package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/donor-ledger/internal/domain"
	"github.com/viralforge/donor-ledger/internal/ports"
)

type CampaignRepository struct {
	store *Store
}

func (r *CampaignRepository) Create(ctx context.Context, campaign domain.Campaign) (domain.Campaign, error) {
	defer r.store.writeLock(ctx)()
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if campaign.CampaignID == "" {
		campaign.CampaignID = uuid.NewString()
	}
	if _, ok := r.store.campaigns[campaign.CampaignID]; ok {
		return domain.Campaign{}, domain.ErrConflict
	}
	r.store.campaigns[campaign.CampaignID] = cloneCampaign(campaign)
	return cloneCampaign(campaign), nil
}

func (r *CampaignRepository) GetByID(_ context.Context, campaignID string) (domain.Campaign, error) {
	if err := checkID(campaignID); err != nil {
		return domain.Campaign{}, err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	row, ok := r.store.campaigns[campaignID]
	if !ok {
		return domain.Campaign{}, domain.ErrNotFound
	}
	return cloneCampaign(row), nil
}

// GetForUpdate needs no lock of its own; OverwriteTotals re-checks the
// aggregate before writing.
func (r *CampaignRepository) GetForUpdate(ctx context.Context, campaignID string) (domain.Campaign, error) {
	return r.GetByID(ctx, campaignID)
}

func (r *CampaignRepository) ListByIDs(_ context.Context, campaignIDs []string) ([]domain.Campaign, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]domain.Campaign, 0, len(campaignIDs))
	for _, id := range campaignIDs {
		if row, ok := r.store.campaigns[id]; ok {
			out = append(out, cloneCampaign(row))
		}
	}
	return out, nil
}

func (r *CampaignRepository) ListByOwner(_ context.Context, ownerEmail string) ([]domain.Campaign, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]domain.Campaign, 0)
	for _, row := range r.store.campaigns {
		if row.OwnerEmail == ownerEmail {
			out = append(out, cloneCampaign(row))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *CampaignRepository) ListRecommendable(_ context.Context, filter ports.RecommendFilter) ([]domain.Campaign, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]domain.Campaign, 0)
	for _, row := range r.store.campaigns {
		if !domain.IsRecommendable(row.Status) || row.CampaignID == filter.ExcludeID {
			continue
		}
		if filter.ExcludeOwner != "" && row.OwnerEmail == filter.ExcludeOwner {
			continue
		}
		out = append(out, cloneCampaign(row))
	}
	sortNewestFirst(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *CampaignRepository) ListIDs(_ context.Context) ([]string, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]string, 0, len(r.store.campaigns))
	for id := range r.store.campaigns {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (r *CampaignRepository) Update(ctx context.Context, params ports.UpdateCampaignParams) (domain.Campaign, error) {
	defer r.store.writeLock(ctx)()
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	row, ok := r.store.campaigns[params.CampaignID]
	if !ok {
		return domain.Campaign{}, domain.ErrNotFound
	}
	if params.PetName != nil {
		row.PetName = *params.PetName
	}
	if params.PetImage != nil {
		row.PetImage = *params.PetImage
	}
	if params.MaxDonation != nil {
		row.MaxDonation = *params.MaxDonation
		row.Status = domain.DeriveStatus(row.CollectedAmount, row.MaxDonation)
	}
	if params.LastDate != nil {
		row.LastDate = *params.LastDate
	}
	if params.ShortDescription != nil {
		row.ShortDescription = *params.ShortDescription
	}
	if params.LongDescription != nil {
		row.LongDescription = *params.LongDescription
	}
	row.UpdatedAt = params.UpdatedAt
	r.store.campaigns[row.CampaignID] = row
	return cloneCampaign(row), nil
}

func (r *CampaignRepository) SetPause(ctx context.Context, campaignID, pause string, at time.Time) (domain.Campaign, error) {
	defer r.store.writeLock(ctx)()
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	row, ok := r.store.campaigns[campaignID]
	if !ok {
		return domain.Campaign{}, domain.ErrNotFound
	}
	row.Pause = pause
	row.UpdatedAt = at
	r.store.campaigns[campaignID] = row
	return cloneCampaign(row), nil
}

func (r *CampaignRepository) ApplyContribution(ctx context.Context, params ports.ApplyContributionParams) (domain.Campaign, error) {
	defer r.store.writeLock(ctx)()
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	row, ok := r.store.campaigns[params.CampaignID]
	if !ok {
		return domain.Campaign{}, domain.ErrNotFound
	}
	if !row.HasDonor(params.DonorID) {
		row.DonorIDs = append(row.DonorIDs, params.DonorID)
	}
	row.CollectedAmount += params.Amount
	row.Status = domain.ContributionStatus(row.CollectedAmount, row.MaxDonation)
	row.UpdatedAt = params.At
	r.store.campaigns[row.CampaignID] = row
	return cloneCampaign(row), nil
}

func (r *CampaignRepository) ReverseContribution(ctx context.Context, params ports.ReverseContributionParams) (domain.Campaign, error) {
	defer r.store.writeLock(ctx)()
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	row, ok := r.store.campaigns[params.CampaignID]
	if !ok {
		return domain.Campaign{}, domain.ErrNotFound
	}
	kept := make([]string, 0, len(row.DonorIDs))
	for _, id := range row.DonorIDs {
		if id != params.DonorID {
			kept = append(kept, id)
		}
	}
	row.DonorIDs = kept
	row.CollectedAmount -= params.Amount
	if params.RecomputeStatus {
		row.Status = domain.DeriveStatus(row.CollectedAmount, row.MaxDonation)
	}
	row.UpdatedAt = params.At
	r.store.campaigns[row.CampaignID] = row
	return cloneCampaign(row), nil
}

func (r *CampaignRepository) OverwriteTotals(ctx context.Context, totals ports.CampaignTotals) error {
	defer r.store.writeLock(ctx)()
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	row, ok := r.store.campaigns[totals.CampaignID]
	if !ok {
		return domain.ErrNotFound
	}
	if row.CollectedAmount != totals.ExpectedCollected || !row.UpdatedAt.Equal(totals.ExpectedUpdatedAt) {
		return domain.ErrConflict
	}
	row.CollectedAmount = totals.CollectedAmount
	row.DonorIDs = append([]string{}, totals.DonorIDs...)
	row.Status = totals.Status
	row.UpdatedAt = totals.At
	r.store.campaigns[row.CampaignID] = row
	return nil
}

func sortNewestFirst(items []domain.Campaign) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CampaignID > items[j].CampaignID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}
