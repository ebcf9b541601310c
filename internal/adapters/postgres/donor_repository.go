package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/viralforge/donor-ledger/internal/domain"
	"github.com/viralforge/donor-ledger/internal/ports"
	"gorm.io/gorm"
)

type donorRepository struct {
	db *gorm.DB
}

// xmax is zero only for a freshly inserted tuple, which tells insert and
// merge apart without a second query.
const upsertDonorSQL = `
INSERT INTO donors (donation_id, email, name, amount, created_at, updated_at)
VALUES (@donation, @email, @name, @amount, @at, @at)
ON CONFLICT (donation_id, email) DO UPDATE SET
    amount = donors.amount + EXCLUDED.amount,
    updated_at = EXCLUDED.updated_at
RETURNING donor_id, donation_id, email, name, amount, created_at, updated_at, (xmax = 0) AS inserted`

type upsertedDonorRow struct {
	donorModel
	Inserted bool `gorm:"column:inserted"`
}

type donorCampaignRow struct {
	donorModel
	PetName  string `gorm:"column:pet_name"`
	PetImage string `gorm:"column:pet_image"`
}

func (r *donorRepository) UpsertContribution(ctx context.Context, params ports.RecordContributionParams) (domain.Donor, bool, error) {
	donationID, err := parseID(params.DonationID)
	if err != nil {
		return domain.Donor{}, false, err
	}
	var (
		donor   domain.Donor
		created bool
	)
	run := func(tx *gorm.DB) error {
		var row upsertedDonorRow
		res := tx.Raw(upsertDonorSQL, map[string]any{
			"donation": donationID,
			"email":    params.Email,
			"name":     params.Name,
			"amount":   params.Transaction.Amount,
			"at":       params.Transaction.Date,
		}).Scan(&row)
		if res.Error != nil {
			return res.Error
		}
		entry := donorTransactionModel{
			DonorID:       row.DonorID,
			TransactionID: params.Transaction.TransactionID,
			PaymentMethod: params.Transaction.PaymentMethod,
			Amount:        params.Transaction.Amount,
			OccurredAt:    params.Transaction.Date,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		history, err := loadHistory(tx, []uuid.UUID{row.DonorID})
		if err != nil {
			return err
		}
		donor = toDomainDonor(row.donorModel, history[row.DonorID])
		created = row.Inserted
		return nil
	}

	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		err = run(conn(ctx, r.db))
	} else {
		err = r.db.WithContext(ctx).Transaction(run)
	}
	if err != nil {
		return domain.Donor{}, false, err
	}
	return donor, created, nil
}

func (r *donorRepository) GetByID(ctx context.Context, donorID string) (domain.Donor, error) {
	id, err := parseID(donorID)
	if err != nil {
		return domain.Donor{}, err
	}
	db := conn(ctx, r.db)
	var rec donorModel
	if err := db.Where("donor_id = ?", id).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Donor{}, domain.ErrNotFound
		}
		return domain.Donor{}, err
	}
	history, err := loadHistory(db, []uuid.UUID{id})
	if err != nil {
		return domain.Donor{}, err
	}
	return toDomainDonor(rec, history[id]), nil
}

func (r *donorRepository) ListByIDs(ctx context.Context, donorIDs []string) ([]domain.Donor, error) {
	ids := make([]uuid.UUID, 0, len(donorIDs))
	for _, raw := range donorIDs {
		id, err := parseID(raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	db := conn(ctx, r.db)
	var rows []donorModel
	if err := db.Where("donor_id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return withHistory(db, rows)
}

func (r *donorRepository) ListByEmailWithCampaign(ctx context.Context, email string) ([]domain.DonorWithCampaign, error) {
	db := conn(ctx, r.db)
	var rows []donorCampaignRow
	if err := db.Table("donors AS d").
		Select("d.*, c.pet_name, c.pet_image").
		Joins("JOIN campaigns AS c ON c.campaign_id = d.donation_id").
		Where("d.email = ?", email).
		Order("d.created_at asc").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.DonorID)
	}
	history, err := loadHistory(db, ids)
	if err != nil {
		return nil, err
	}
	out := make([]domain.DonorWithCampaign, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.DonorWithCampaign{
			Donor:    toDomainDonor(row.donorModel, history[row.DonorID]),
			PetName:  row.PetName,
			PetImage: row.PetImage,
		})
	}
	return out, nil
}

func (r *donorRepository) ListByDonationID(ctx context.Context, donationID string) ([]domain.Donor, error) {
	id, err := parseID(donationID)
	if err != nil {
		return nil, err
	}
	db := conn(ctx, r.db)
	var rows []donorModel
	if err := db.Where("donation_id = ?", id).Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return withHistory(db, rows)
}

func (r *donorRepository) Delete(ctx context.Context, donorID string) error {
	id, err := parseID(donorID)
	if err != nil {
		return err
	}
	res := conn(ctx, r.db).Where("donor_id = ?", id).Delete(&donorModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func loadHistory(db *gorm.DB, donorIDs []uuid.UUID) (map[uuid.UUID][]donorTransactionModel, error) {
	out := make(map[uuid.UUID][]donorTransactionModel, len(donorIDs))
	if len(donorIDs) == 0 {
		return out, nil
	}
	var rows []donorTransactionModel
	if err := db.Where("donor_id IN ?", donorIDs).Order("entry_id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.DonorID] = append(out[row.DonorID], row)
	}
	return out, nil
}

func withHistory(db *gorm.DB, rows []donorModel) ([]domain.Donor, error) {
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.DonorID)
	}
	history, err := loadHistory(db, ids)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Donor, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainDonor(row, history[row.DonorID]))
	}
	return out, nil
}
