package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/viralforge/donor-ledger/internal/domain"
	"github.com/viralforge/donor-ledger/internal/ports"
)

type DonorRepository struct {
	store *Store
}

func pairKey(donationID, email string) string {
	return donationID + "\x00" + email
}

func (r *DonorRepository) UpsertContribution(ctx context.Context, params ports.RecordContributionParams) (domain.Donor, bool, error) {
	defer r.store.writeLock(ctx)()
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	key := pairKey(params.DonationID, params.Email)
	if id, ok := r.store.donorByPair[key]; ok {
		row := r.store.donors[id]
		row.Amount += params.Transaction.Amount
		row.TransactionHistory = append(row.TransactionHistory, params.Transaction)
		row.UpdatedAt = params.Transaction.Date
		r.store.donors[id] = row
		return cloneDonor(row), false, nil
	}
	row := domain.Donor{
		DonorID:            uuid.NewString(),
		DonationID:         params.DonationID,
		Email:              params.Email,
		Name:               params.Name,
		Amount:             params.Transaction.Amount,
		TransactionHistory: []domain.Transaction{params.Transaction},
		CreatedAt:          params.Transaction.Date,
		UpdatedAt:          params.Transaction.Date,
	}
	r.store.donors[row.DonorID] = row
	r.store.donorByPair[key] = row.DonorID
	return cloneDonor(row), true, nil
}

func (r *DonorRepository) GetByID(_ context.Context, donorID string) (domain.Donor, error) {
	if err := checkID(donorID); err != nil {
		return domain.Donor{}, err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	row, ok := r.store.donors[donorID]
	if !ok {
		return domain.Donor{}, domain.ErrNotFound
	}
	return cloneDonor(row), nil
}

func (r *DonorRepository) ListByIDs(_ context.Context, donorIDs []string) ([]domain.Donor, error) {
	for _, id := range donorIDs {
		if err := checkID(id); err != nil {
			return nil, err
		}
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]domain.Donor, 0, len(donorIDs))
	seen := map[string]struct{}{}
	for _, id := range donorIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if row, ok := r.store.donors[id]; ok {
			out = append(out, cloneDonor(row))
		}
	}
	return out, nil
}

func (r *DonorRepository) ListByEmailWithCampaign(_ context.Context, email string) ([]domain.DonorWithCampaign, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]domain.DonorWithCampaign, 0)
	for _, row := range r.store.donors {
		if row.Email != email {
			continue
		}
		campaign, ok := r.store.campaigns[row.DonationID]
		if !ok {
			continue
		}
		out = append(out, domain.DonorWithCampaign{
			Donor:    cloneDonor(row),
			PetName:  campaign.PetName,
			PetImage: campaign.PetImage,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *DonorRepository) ListByDonationID(_ context.Context, donationID string) ([]domain.Donor, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]domain.Donor, 0)
	for _, row := range r.store.donors {
		if row.DonationID == donationID {
			out = append(out, cloneDonor(row))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *DonorRepository) Delete(ctx context.Context, donorID string) error {
	defer r.store.writeLock(ctx)()
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	row, ok := r.store.donors[donorID]
	if !ok {
		return domain.ErrNotFound
	}
	delete(r.store.donors, donorID)
	delete(r.store.donorByPair, pairKey(row.DonationID, row.Email))
	return nil
}

// Put stores a donor row as-is. Tests use it to seed drift that the ledger
// writer itself would never produce.
func (r *DonorRepository) Put(donor domain.Donor) {
	r.store.txMu.Lock()
	defer r.store.txMu.Unlock()
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.donors[donor.DonorID] = cloneDonor(donor)
	r.store.donorByPair[pairKey(donor.DonationID, donor.Email)] = donor.DonorID
}
