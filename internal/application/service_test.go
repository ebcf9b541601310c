package application_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/donor-ledger/internal/adapters/memory"
	"github.com/viralforge/donor-ledger/internal/application"
	"github.com/viralforge/donor-ledger/internal/domain"
	"github.com/viralforge/donor-ledger/internal/ports"
)

type fixture struct {
	service *application.Service
	repos   *memory.Repositories
}

func newFixture(cfg application.Config) fixture {
	repos := memory.NewRepositories()
	return newFixtureWith(cfg, repos, repos.Campaigns)
}

func newFixtureWith(cfg application.Config, repos *memory.Repositories, campaigns ports.CampaignRepository) fixture {
	svc := application.NewService(application.Dependencies{
		Config:      cfg,
		Campaigns:   campaigns,
		Donors:      repos.Donors,
		Outbox:      repos.Outbox,
		Transactor:  repos.Transactor,
		Idempotency: repos.Idempotency,
		Cache:       repos.Cache,
	})
	return fixture{service: svc, repos: repos}
}

func actorFor(email string) application.Actor {
	return application.Actor{Email: email, RequestID: "req-" + email}
}

func (f fixture) seedCampaign(t *testing.T, owner string, goal, collected float64, createdAt time.Time) domain.Campaign {
	t.Helper()
	status := domain.CampaignStatusNotDonate
	if collected > 0 {
		status = domain.DeriveStatus(collected, goal)
	}
	c, err := f.repos.Campaigns.Create(context.Background(), domain.Campaign{
		OwnerEmail:      owner,
		PetName:         "Milo",
		PetImage:        "https://img.example.com/milo.png",
		MaxDonation:     goal,
		CollectedAmount: collected,
		Status:          status,
		Pause:           domain.PauseStateResumed,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	})
	if err != nil {
		t.Fatalf("seed campaign: %v", err)
	}
	return c
}

func (f fixture) contribute(t *testing.T, campaignID, email string, amount float64) application.ContributionResult {
	t.Helper()
	res, err := f.service.RecordContribution(context.Background(), actorFor(email), application.RecordContributionInput{
		DonationID:    campaignID,
		Email:         email,
		Amount:        amount,
		TransactionID: "pi_" + uuid.NewString(),
		PaymentMethod: "card",
	})
	if err != nil {
		t.Fatalf("record contribution: %v", err)
	}
	return res
}

func (f fixture) campaign(t *testing.T, id string) domain.Campaign {
	t.Helper()
	c, err := f.repos.Campaigns.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get campaign: %v", err)
	}
	return c
}

func TestRepeatContributorMergesIntoOneDonor(t *testing.T) {
	t.Parallel()

	f := newFixture(application.Config{})
	c := f.seedCampaign(t, "owner@example.com", 100, 0, time.Now().UTC())

	first := f.contribute(t, c.CampaignID, "donor@example.com", 10)
	second := f.contribute(t, c.CampaignID, "donor@example.com", 15)
	if first.DonorID != second.DonorID {
		t.Fatalf("expected one donor row, got %s and %s", first.DonorID, second.DonorID)
	}
	if !first.NewDonor || second.NewDonor {
		t.Fatalf("expected only the first contribution to create the donor")
	}

	donor, err := f.repos.Donors.GetByID(context.Background(), first.DonorID)
	if err != nil {
		t.Fatalf("get donor: %v", err)
	}
	if donor.Amount != 25 || len(donor.TransactionHistory) != 2 {
		t.Fatalf("expected amount 25 with 2 history entries, got %v with %d", donor.Amount, len(donor.TransactionHistory))
	}
	if donor.HistoryTotal() != donor.Amount {
		t.Fatalf("history total %v does not match amount %v", donor.HistoryTotal(), donor.Amount)
	}
	got := f.campaign(t, c.CampaignID)
	if got.CollectedAmount != 25 || len(got.DonorIDs) != 1 {
		t.Fatalf("expected collected 25 and one donor id, got %v and %v", got.CollectedAmount, got.DonorIDs)
	}
}

func TestContributionStatusTransition(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		amount     float64
		wantStatus string
		wantGoal   bool
	}{
		{name: "reaches goal", amount: 10, wantStatus: domain.CampaignStatusDonated, wantGoal: true},
		{name: "stays below goal", amount: 5, wantStatus: domain.CampaignStatusOngoing},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(application.Config{})
			c := f.seedCampaign(t, "owner@example.com", 100, 0, time.Now().UTC())
			if res := f.contribute(t, c.CampaignID, "early@example.com", 90); res.NewStatus != domain.CampaignStatusOngoing {
				t.Fatalf("expected ongoing after 90, got %s", res.NewStatus)
			}

			res := f.contribute(t, c.CampaignID, "late@example.com", tc.amount)
			if res.NewStatus != tc.wantStatus || !res.CampaignUpdated {
				t.Fatalf("expected %s, got %+v", tc.wantStatus, res)
			}
			if got := f.campaign(t, c.CampaignID).Status; got != tc.wantStatus {
				t.Fatalf("stored status %s, want %s", got, tc.wantStatus)
			}

			goalEvents := 0
			for _, eventType := range f.repos.Outbox.EventTypes() {
				if eventType == domain.EventCampaignGoalReached {
					goalEvents++
				}
			}
			if tc.wantGoal && goalEvents != 1 {
				t.Fatalf("expected one goal_reached event, got %d", goalEvents)
			}
			if !tc.wantGoal && goalEvents != 0 {
				t.Fatalf("expected no goal_reached event, got %d", goalEvents)
			}
		})
	}
}

func TestRecordContributionRejectsBadInput(t *testing.T) {
	t.Parallel()

	f := newFixture(application.Config{})
	c := f.seedCampaign(t, "owner@example.com", 100, 0, time.Now().UTC())
	ctx := context.Background()
	actor := actorFor("donor@example.com")

	valid := application.RecordContributionInput{DonationID: c.CampaignID, Email: "donor@example.com", Amount: 5, TransactionID: "pi_1", PaymentMethod: "card"}

	zero := valid
	zero.Amount = 0
	if _, err := f.service.RecordContribution(ctx, actor, zero); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for zero amount, got %v", err)
	}
	negative := valid
	negative.Amount = -3
	if _, err := f.service.RecordContribution(ctx, actor, negative); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for negative amount, got %v", err)
	}
	missing := valid
	missing.DonationID = uuid.NewString()
	if _, err := f.service.RecordContribution(ctx, actor, missing); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for unknown campaign, got %v", err)
	}
	if _, err := f.service.RecordContribution(ctx, application.Actor{}, valid); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized without principal, got %v", err)
	}

	donors, err := f.repos.Donors.ListByDonationID(ctx, c.CampaignID)
	if err != nil {
		t.Fatalf("list donors: %v", err)
	}
	if len(donors) != 0 {
		t.Fatalf("rejected contributions must not write donors, got %d", len(donors))
	}
}

type vanishingCampaigns struct {
	*memory.CampaignRepository
}

func (vanishingCampaigns) ApplyContribution(context.Context, ports.ApplyContributionParams) (domain.Campaign, error) {
	return domain.Campaign{}, domain.ErrNotFound
}

func TestContributionRollsBackDonorWhenCampaignVanishes(t *testing.T) {
	t.Parallel()

	repos := memory.NewRepositories()
	f := newFixtureWith(application.Config{}, repos, vanishingCampaigns{repos.Campaigns})
	c := f.seedCampaign(t, "owner@example.com", 100, 0, time.Now().UTC())

	_, err := f.service.RecordContribution(context.Background(), actorFor("donor@example.com"), application.RecordContributionInput{
		DonationID: c.CampaignID, Email: "donor@example.com", Amount: 20, TransactionID: "pi_gone",
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	donors, _ := repos.Donors.ListByDonationID(context.Background(), c.CampaignID)
	if len(donors) != 0 {
		t.Fatalf("expected donor write to roll back, found %d donors", len(donors))
	}
	if events := repos.Outbox.EventTypes(); len(events) != 0 {
		t.Fatalf("expected no outbox events, got %v", events)
	}
}

func TestRefundReversesContribution(t *testing.T) {
	t.Parallel()

	f := newFixture(application.Config{})
	c := f.seedCampaign(t, "owner@example.com", 100, 0, time.Now().UTC())
	f.contribute(t, c.CampaignID, "other@example.com", 20)
	f.contribute(t, c.CampaignID, "donor@example.com", 15)
	res := f.contribute(t, c.CampaignID, "donor@example.com", 25)

	before := f.campaign(t, c.CampaignID)
	out, err := f.service.Refund(context.Background(), actorFor("donor@example.com"), res.DonorID)
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if !out.Success || out.RefundedAmount != 40 {
		t.Fatalf("unexpected refund result %+v", out)
	}
	after := f.campaign(t, c.CampaignID)
	if before.CollectedAmount-after.CollectedAmount != 40 {
		t.Fatalf("expected collected to drop by 40, went %v -> %v", before.CollectedAmount, after.CollectedAmount)
	}
	if after.HasDonor(res.DonorID) {
		t.Fatalf("refunded donor still listed in donorIds")
	}
	if _, err := f.repos.Donors.GetByID(context.Background(), res.DonorID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected donor to be deleted, got %v", err)
	}
	if _, err := f.service.Refund(context.Background(), actorFor("donor@example.com"), res.DonorID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second refund should be not found, got %v", err)
	}
}

func TestRefundStatusModes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		keep       bool
		wantStatus string
	}{
		{name: "recomputed by default", keep: false, wantStatus: domain.CampaignStatusNotDonate},
		{name: "kept when configured", keep: true, wantStatus: domain.CampaignStatusDonated},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(application.Config{KeepStatusOnRefund: tc.keep})
			c := f.seedCampaign(t, "owner@example.com", 50, 0, time.Now().UTC())
			res := f.contribute(t, c.CampaignID, "donor@example.com", 50)
			if res.NewStatus != domain.CampaignStatusDonated {
				t.Fatalf("expected donated, got %s", res.NewStatus)
			}
			if _, err := f.service.Refund(context.Background(), actorFor("donor@example.com"), res.DonorID); err != nil {
				t.Fatalf("refund: %v", err)
			}
			got := f.campaign(t, c.CampaignID)
			if got.CollectedAmount != 0 || got.Status != tc.wantStatus {
				t.Fatalf("expected collected 0 and %s, got %v and %s", tc.wantStatus, got.CollectedAmount, got.Status)
			}
		})
	}
}

func TestRefundRequiresExactContributorEmail(t *testing.T) {
	t.Parallel()

	f := newFixture(application.Config{})
	c := f.seedCampaign(t, "owner@example.com", 100, 0, time.Now().UTC())
	res := f.contribute(t, c.CampaignID, "donor@example.com", 30)

	for _, email := range []string{"someone@example.com", "Donor@example.com", "owner@example.com"} {
		if _, err := f.service.Refund(context.Background(), actorFor(email), res.DonorID); !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("refund as %s: expected forbidden, got %v", email, err)
		}
	}
	if got := f.campaign(t, c.CampaignID).CollectedAmount; got != 30 {
		t.Fatalf("forbidden refund must not touch totals, collected=%v", got)
	}
}

func TestRefundOrphanDonorSucceeds(t *testing.T) {
	t.Parallel()

	f := newFixture(application.Config{})
	orphan := domain.Donor{
		DonorID:    uuid.NewString(),
		DonationID: uuid.NewString(),
		Email:      "donor@example.com",
		Amount:     12,
		TransactionHistory: []domain.Transaction{
			{TransactionID: "pi_orphan", PaymentMethod: "card", Amount: 12, Date: time.Now().UTC()},
		},
		CreatedAt: time.Now().UTC(),
	}
	f.repos.Donors.Put(orphan)

	out, err := f.service.Refund(context.Background(), actorFor("donor@example.com"), orphan.DonorID)
	if err != nil {
		t.Fatalf("refund orphan: %v", err)
	}
	if out.CampaignUpdated {
		t.Fatalf("orphan refund should not report a campaign update")
	}
}

func TestListDonorsByIDsOwnership(t *testing.T) {
	t.Parallel()

	f := newFixture(application.Config{})
	now := time.Now().UTC()
	mine := f.seedCampaign(t, "Owner@Example.com", 100, 0, now)
	theirs := f.seedCampaign(t, "stranger@example.com", 100, 0, now)
	a := f.contribute(t, mine.CampaignID, "a@example.com", 5)
	b := f.contribute(t, mine.CampaignID, "b@example.com", 7)
	x := f.contribute(t, theirs.CampaignID, "x@example.com", 9)
	ctx := context.Background()

	got, err := f.service.ListDonorsByIDs(ctx, actorFor("owner@example.com"), []string{b.DonorID, a.DonorID})
	if err != nil {
		t.Fatalf("case-insensitive owner should pass, got %v", err)
	}
	if len(got) != 2 || got[0].DonorID != b.DonorID || got[1].DonorID != a.DonorID {
		t.Fatalf("unexpected donors %+v", got)
	}

	if _, err := f.service.ListDonorsByIDs(ctx, actorFor("owner@example.com"), []string{a.DonorID, x.DonorID}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden for mixed batch, got %v", err)
	}
	if _, err := f.service.ListDonorsByIDs(ctx, actorFor("owner@example.com"), nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty batch, got %v", err)
	}
	if _, err := f.service.ListDonorsByIDs(ctx, actorFor("owner@example.com"), []string{"not-an-id"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for malformed id, got %v", err)
	}
}

func TestOwnerChecksAreCaseSensitiveOutsideDonorBatch(t *testing.T) {
	t.Parallel()

	f := newFixture(application.Config{})
	c := f.seedCampaign(t, "Owner@Example.com", 100, 0, time.Now().UTC())
	if _, err := f.service.TogglePause(context.Background(), actorFor("owner@example.com"), c.CampaignID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden on case mismatch, got %v", err)
	}
	res, err := f.service.TogglePause(context.Background(), actorFor("Owner@Example.com"), c.CampaignID)
	if err != nil {
		t.Fatalf("toggle pause: %v", err)
	}
	if res.Pause != domain.PauseStatePaused {
		t.Fatalf("expected paused, got %s", res.Pause)
	}
	res, err = f.service.TogglePause(context.Background(), actorFor("Owner@Example.com"), c.CampaignID)
	if err != nil || res.Pause != domain.PauseStateResumed {
		t.Fatalf("expected resume after second toggle, got %+v err=%v", res, err)
	}
}

func TestListOwnerDonorsJoinsCampaign(t *testing.T) {
	t.Parallel()

	f := newFixture(application.Config{})
	c := f.seedCampaign(t, "owner@example.com", 100, 0, time.Now().UTC())
	f.contribute(t, c.CampaignID, "donor@example.com", 10)
	f.repos.Donors.Put(domain.Donor{
		DonorID:    uuid.NewString(),
		DonationID: uuid.NewString(),
		Email:      "donor@example.com",
		Amount:     3,
		CreatedAt:  time.Now().UTC(),
	})
	ctx := context.Background()

	got, err := f.service.ListOwnerDonors(ctx, actorFor("donor@example.com"), "donor@example.com")
	if err != nil {
		t.Fatalf("list owner donors: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected donor with missing campaign to be dropped, got %d rows", len(got))
	}
	if got[0].PetName != "Milo" || got[0].PetImage == "" {
		t.Fatalf("expected pet fields from campaign, got %+v", got[0])
	}
	if _, err := f.service.ListOwnerDonors(ctx, actorFor("donor@example.com"), "other@example.com"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden for foreign email, got %v", err)
	}
	if _, err := f.service.ListOwnerDonors(ctx, actorFor("donor@example.com"), ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input without email, got %v", err)
	}
}

func TestRecommendFallbackFill(t *testing.T) {
	t.Parallel()

	f := newFixture(application.Config{})
	base := time.Now().UTC().Add(-time.Hour)
	foreign := f.seedCampaign(t, "other@example.com", 100, 0, base)
	for i := 1; i <= 4; i++ {
		f.seedCampaign(t, "viewer@example.com", 100, 0, base.Add(time.Duration(i)*time.Minute))
	}
	f.seedCampaign(t, "other@example.com", 100, 100, base.Add(10*time.Minute))

	got, err := f.service.Recommend(context.Background(), actorFor("viewer@example.com"), "", 3)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 campaigns, got %d", len(got))
	}
	if got[0].CampaignID != foreign.CampaignID {
		t.Fatalf("expected campaign the viewer does not own first, got %s", got[0].CampaignID)
	}
	seen := map[string]bool{}
	for _, c := range got {
		if seen[c.CampaignID] {
			t.Fatalf("duplicate campaign %s", c.CampaignID)
		}
		seen[c.CampaignID] = true
		if c.Status == domain.CampaignStatusDonated {
			t.Fatalf("donated campaign recommended")
		}
	}
}

func TestRecommendExcludesCampaignAndHonoursCount(t *testing.T) {
	t.Parallel()

	f := newFixture(application.Config{})
	base := time.Now().UTC().Add(-time.Hour)
	var newest domain.Campaign
	for i := 0; i < 6; i++ {
		newest = f.seedCampaign(t, "other@example.com", 100, 0, base.Add(time.Duration(i)*time.Minute))
	}
	ctx := context.Background()

	got, err := f.service.Recommend(ctx, actorFor("viewer@example.com"), newest.CampaignID, 0)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(got) != domain.DefaultRecommendCount {
		t.Fatalf("expected default count, got %d", len(got))
	}
	for _, c := range got {
		if c.CampaignID == newest.CampaignID {
			t.Fatalf("excluded campaign returned")
		}
	}
	if _, err := f.service.Recommend(ctx, actorFor("viewer@example.com"), "", domain.MaxRecommendCount+1); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for oversized count, got %v", err)
	}
}

func TestRecommendIsStableWithoutWrites(t *testing.T) {
	t.Parallel()

	f := newFixture(application.Config{})
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		f.seedCampaign(t, "other@example.com", 100, 0, base.Add(time.Duration(i)*time.Minute))
	}
	ctx := context.Background()
	actor := actorFor("viewer@example.com")

	first, err := f.service.Recommend(ctx, actor, "", 3)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	second, err := f.service.Recommend(ctx, actor, "", 3)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("length changed between reads")
	}
	for i := range first {
		if first[i].CampaignID != second[i].CampaignID {
			t.Fatalf("order changed at %d", i)
		}
	}

	created, err := f.service.CreateCampaign(ctx, actorFor("other@example.com"), application.CreateCampaignInput{PetName: "Luna", MaxDonation: 80})
	if err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	third, err := f.service.Recommend(ctx, actor, "", 3)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if third[0].CampaignID != created.CampaignID {
		t.Fatalf("expected a write to invalidate cached recommendations")
	}
}

func TestLedgerInvariantAcrossContributionsAndRefunds(t *testing.T) {
	t.Parallel()

	f := newFixture(application.Config{})
	now := time.Now().UTC()
	c1 := f.seedCampaign(t, "owner@example.com", 100, 0, now)
	c2 := f.seedCampaign(t, "owner@example.com", 30, 0, now)
	ctx := context.Background()

	a := f.contribute(t, c1.CampaignID, "a@example.com", 12.5)
	f.contribute(t, c1.CampaignID, "b@example.com", 40)
	f.contribute(t, c1.CampaignID, "a@example.com", 7.5)
	c := f.contribute(t, c2.CampaignID, "c@example.com", 30)
	f.contribute(t, c2.CampaignID, "d@example.com", 4)
	if _, err := f.service.Refund(ctx, actorFor("a@example.com"), a.DonorID); err != nil {
		t.Fatalf("refund a: %v", err)
	}
	if _, err := f.service.Refund(ctx, actorFor("c@example.com"), c.DonorID); err != nil {
		t.Fatalf("refund c: %v", err)
	}

	for _, id := range []string{c1.CampaignID, c2.CampaignID} {
		campaign := f.campaign(t, id)
		donors, err := f.repos.Donors.ListByDonationID(ctx, id)
		if err != nil {
			t.Fatalf("list donors: %v", err)
		}
		var sum float64
		for _, d := range donors {
			sum += d.Amount
			if !campaign.HasDonor(d.DonorID) {
				t.Fatalf("donor %s missing from donorIds", d.DonorID)
			}
		}
		if math.Abs(sum-campaign.CollectedAmount) > 1e-9 || len(donors) != len(campaign.DonorIDs) {
			t.Fatalf("campaign %s: collected %v, donor sum %v", id, campaign.CollectedAmount, sum)
		}
	}
}

func TestContributionIdempotencyKey(t *testing.T) {
	t.Parallel()

	f := newFixture(application.Config{})
	c := f.seedCampaign(t, "owner@example.com", 100, 0, time.Now().UTC())
	ctx := context.Background()
	actor := actorFor("donor@example.com")
	actor.IdempotencyKey = "retry-1"
	input := application.RecordContributionInput{DonationID: c.CampaignID, Email: "donor@example.com", Amount: 10, TransactionID: "pi_retry", PaymentMethod: "card"}

	first, err := f.service.RecordContribution(ctx, actor, input)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := f.service.RecordContribution(ctx, actor, input)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if first != second {
		t.Fatalf("replay mismatch: %+v vs %+v", first, second)
	}
	if got := f.campaign(t, c.CampaignID).CollectedAmount; got != 10 {
		t.Fatalf("retry must not double count, collected=%v", got)
	}

	changed := input
	changed.Amount = 11
	if _, err := f.service.RecordContribution(ctx, actor, changed); !errors.Is(err, domain.ErrIdempotencyConflict) {
		t.Fatalf("expected idempotency conflict, got %v", err)
	}

	actor.IdempotencyKey = ""
	f.contribute(t, c.CampaignID, "donor@example.com", 10)
	if _, err := f.service.RecordContribution(ctx, actor, input); err != nil {
		t.Fatalf("keyless contribution: %v", err)
	}
	if got := f.campaign(t, c.CampaignID).CollectedAmount; got != 30 {
		t.Fatalf("keyless contributions always count, collected=%v", got)
	}
}

func TestReconcileRepairsDrift(t *testing.T) {
	t.Parallel()

	f := newFixture(application.Config{})
	c := f.seedCampaign(t, "owner@example.com", 50, 0, time.Now().UTC())
	f.contribute(t, c.CampaignID, "a@example.com", 20)
	drifted := domain.Donor{
		DonorID:    uuid.NewString(),
		DonationID: c.CampaignID,
		Email:      "b@example.com",
		Amount:     35,
		CreatedAt:  time.Now().UTC(),
	}
	f.repos.Donors.Put(drifted)
	ctx := context.Background()

	res, err := f.service.ReconcileCampaign(ctx, c.CampaignID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !res.Drifted || res.CollectedAmount != 55 || res.Status != domain.CampaignStatusDonated {
		t.Fatalf("unexpected reconcile result %+v", res)
	}
	got := f.campaign(t, c.CampaignID)
	if got.CollectedAmount != 55 || !got.HasDonor(drifted.DonorID) {
		t.Fatalf("campaign not repaired: %+v", got)
	}

	summary, err := f.service.ReconcileAll(ctx)
	if err != nil {
		t.Fatalf("reconcile all: %v", err)
	}
	if summary.Checked != 1 || summary.Repaired != 0 {
		t.Fatalf("expected clean second pass, got %+v", summary)
	}
}

func TestCampaignLifecycle(t *testing.T) {
	t.Parallel()

	f := newFixture(application.Config{})
	ctx := context.Background()
	owner := actorFor("owner@example.com")

	created, err := f.service.CreateCampaign(ctx, owner, application.CreateCampaignInput{PetName: "Rex", MaxDonation: 40, ShortDescription: "vet bills"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Status != domain.CampaignStatusNotDonate || created.Pause != domain.PauseStateResumed || created.OwnerEmail != owner.Email {
		t.Fatalf("unexpected new campaign %+v", created)
	}
	if _, err := f.service.CreateCampaign(ctx, owner, application.CreateCampaignInput{PetName: "Rex"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input without goal, got %v", err)
	}

	f.contribute(t, created.CampaignID, "donor@example.com", 30)
	goal := 25.0
	updated, err := f.service.UpdateCampaign(ctx, owner, created.CampaignID, application.UpdateCampaignInput{MaxDonation: &goal})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != domain.CampaignStatusDonated {
		t.Fatalf("lowering the goal below collected should mark donated, got %s", updated.Status)
	}
	if _, err := f.service.UpdateCampaign(ctx, actorFor("intruder@example.com"), created.CampaignID, application.UpdateCampaignInput{MaxDonation: &goal}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden update, got %v", err)
	}

	owned, err := f.service.ListOwnerCampaigns(ctx, owner, owner.Email)
	if err != nil || len(owned) != 1 {
		t.Fatalf("expected one owned campaign, got %d err=%v", len(owned), err)
	}
	if _, err := f.service.ListOwnerCampaigns(ctx, owner, "else@example.com"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden listing, got %v", err)
	}
}

type fakeProcessor struct {
	got ports.PaymentIntentParams
}

func (p *fakeProcessor) CreatePaymentIntent(_ context.Context, params ports.PaymentIntentParams) (ports.PaymentIntent, error) {
	p.got = params
	return ports.PaymentIntent{IntentID: "pi_123", ClientSecret: "pi_123_secret", AmountInCents: params.AmountInCents, Currency: params.Currency}, nil
}

func TestCreatePaymentIntent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	actor := actorFor("donor@example.com")
	input := application.CreatePaymentIntentInput{AmountInCents: 2500}

	bare := newFixture(application.Config{})
	if _, err := bare.service.CreatePaymentIntent(ctx, actor, input); !errors.Is(err, domain.ErrDependencyUnavailable) {
		t.Fatalf("expected dependency unavailable, got %v", err)
	}

	processor := &fakeProcessor{}
	repos := memory.NewRepositories()
	svc := application.NewService(application.Dependencies{
		Campaigns: repos.Campaigns,
		Donors:    repos.Donors,
		Payments:  processor,
	})
	res, err := svc.CreatePaymentIntent(ctx, actor, input)
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if res.ClientSecret != "pi_123_secret" || processor.got.Currency != "usd" || processor.got.AmountInCents != 2500 {
		t.Fatalf("unexpected intent %+v params %+v", res, processor.got)
	}
	if _, err := svc.CreatePaymentIntent(ctx, actor, application.CreatePaymentIntentInput{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for zero amount, got %v", err)
	}
}

func TestRecommendCacheSeparatesViewersByExactEmail(t *testing.T) {
	t.Parallel()

	f := newFixture(application.Config{})
	base := time.Now().UTC().Add(-time.Hour)
	bob := f.seedCampaign(t, "bob@example.com", 100, 0, base)
	mine := f.seedCampaign(t, "Alice@example.com", 100, 0, base.Add(time.Minute))
	ctx := context.Background()

	first, err := f.service.Recommend(ctx, actorFor("alice@example.com"), "", 2)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(first) != 2 || first[0].CampaignID != mine.CampaignID {
		t.Fatalf("expected newest campaign first for a non-owner, got %+v", first)
	}
	second, err := f.service.Recommend(ctx, actorFor("Alice@example.com"), "", 2)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(second) != 2 || second[0].CampaignID != bob.CampaignID || second[1].CampaignID != mine.CampaignID {
		t.Fatalf("expected owner's campaign last, got %+v", second)
	}
}

// lateWriteDonors lands one contribution on the campaign right after the
// donor rows are read.
type lateWriteDonors struct {
	*memory.DonorRepository
	campaigns *memory.CampaignRepository
	at        time.Time
	once      sync.Once
}

func (r *lateWriteDonors) ListByDonationID(ctx context.Context, donationID string) ([]domain.Donor, error) {
	donors, err := r.DonorRepository.ListByDonationID(ctx, donationID)
	r.once.Do(func() {
		_, _ = r.campaigns.ApplyContribution(ctx, ports.ApplyContributionParams{
			CampaignID: donationID,
			DonorID:    uuid.NewString(),
			Amount:     10,
			At:         r.at,
		})
	})
	return donors, err
}

func TestReconcileSkipsWhenContributionLandsMidPass(t *testing.T) {
	t.Parallel()

	f := newFixture(application.Config{})
	c := f.seedCampaign(t, "owner@example.com", 100, 0, time.Now().UTC())
	f.contribute(t, c.CampaignID, "a@example.com", 20)
	f.repos.Donors.Put(domain.Donor{
		DonorID:    uuid.NewString(),
		DonationID: c.CampaignID,
		Email:      "b@example.com",
		Amount:     35,
		CreatedAt:  time.Now().UTC(),
	})
	ctx := context.Background()

	racing := application.NewService(application.Dependencies{
		Campaigns:  f.repos.Campaigns,
		Donors:     &lateWriteDonors{DonorRepository: f.repos.Donors, campaigns: f.repos.Campaigns, at: time.Now().UTC().Add(time.Minute)},
		Outbox:     f.repos.Outbox,
		Transactor: f.repos.Transactor,
		Cache:      f.repos.Cache,
	})
	res, err := racing.ReconcileCampaign(ctx, c.CampaignID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !res.Skipped || res.Drifted {
		t.Fatalf("expected a skipped pass, got %+v", res)
	}
	if got := f.campaign(t, c.CampaignID).CollectedAmount; got != 30 {
		t.Fatalf("late contribution overwritten, collected=%v", got)
	}

	res, err = f.service.ReconcileCampaign(ctx, c.CampaignID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if res.Skipped || !res.Drifted || res.CollectedAmount != 55 {
		t.Fatalf("expected the next pass to repair from donor rows, got %+v", res)
	}
}

func TestConcurrentContributionsFromOneDonor(t *testing.T) {
	t.Parallel()

	f := newFixture(application.Config{})
	c := f.seedCampaign(t, "owner@example.com", 1000, 0, time.Now().UTC())
	ctx := context.Background()
	const workers = 20
	const amount = 5.0

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.service.RecordContribution(ctx, actorFor("donor@example.com"), application.RecordContributionInput{
				DonationID:    c.CampaignID,
				Email:         "donor@example.com",
				Amount:        amount,
				TransactionID: fmt.Sprintf("pi_concurrent_%d", i),
				PaymentMethod: "card",
			})
			if err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("record contribution: %v", err)
	}

	donors, err := f.repos.Donors.ListByDonationID(ctx, c.CampaignID)
	if err != nil {
		t.Fatalf("list donors: %v", err)
	}
	if len(donors) != 1 {
		t.Fatalf("expected one donor row, got %d", len(donors))
	}
	if donors[0].Amount != workers*amount || len(donors[0].TransactionHistory) != workers {
		t.Fatalf("expected amount %v over %d entries, got %v over %d", workers*amount, workers, donors[0].Amount, len(donors[0].TransactionHistory))
	}
	if got := f.campaign(t, c.CampaignID).CollectedAmount; got != workers*amount {
		t.Fatalf("expected collected %v, got %v", workers*amount, got)
	}
}

type failingCompletion struct {
	*memory.IdempotencyRepository
}

func (failingCompletion) Complete(context.Context, string, int, []byte, time.Time) error {
	return errors.New("idempotency store offline")
}

func TestContributionSurvivesIdempotencyCompletionFailure(t *testing.T) {
	t.Parallel()

	repos := memory.NewRepositories()
	svc := application.NewService(application.Dependencies{
		Campaigns:   repos.Campaigns,
		Donors:      repos.Donors,
		Outbox:      repos.Outbox,
		Transactor:  repos.Transactor,
		Idempotency: failingCompletion{repos.Idempotency},
		Cache:       repos.Cache,
	})
	f := fixture{service: svc, repos: repos}
	c := f.seedCampaign(t, "owner@example.com", 100, 0, time.Now().UTC())
	actor := actorFor("donor@example.com")
	actor.IdempotencyKey = "complete-fails"

	res, err := svc.RecordContribution(context.Background(), actor, application.RecordContributionInput{
		DonationID:    c.CampaignID,
		Email:         "donor@example.com",
		Amount:        10,
		TransactionID: "pi_complete_fails",
		PaymentMethod: "card",
	})
	if err != nil {
		t.Fatalf("record contribution: %v", err)
	}
	if res.DonorID == "" {
		t.Fatalf("expected a donor id")
	}
	if got := f.campaign(t, c.CampaignID).CollectedAmount; got != 10 {
		t.Fatalf("expected collected 10, got %v", got)
	}
}
