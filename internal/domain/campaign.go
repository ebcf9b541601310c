package domain

import (
	"strings"
	"time"
)

const (
	CampaignStatusNotDonate = "notDonate"
	CampaignStatusOngoing   = "ongoing"
	CampaignStatusDonated   = "donated"

	PauseStatePaused  = "pause"
	PauseStateResumed = "resume"
)

// Campaign is a donation drive for one pet. CollectedAmount and DonorIDs are
// aggregates over the Donor rows that reference the campaign.
type Campaign struct {
	CampaignID       string
	OwnerEmail       string
	PetName          string
	PetImage         string
	MaxDonation      float64
	CollectedAmount  float64
	Status           string
	Pause            string
	DonorIDs         []string
	LastDate         string
	ShortDescription string
	LongDescription  string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// DeriveStatus maps a collected total against a goal onto the campaign status.
func DeriveStatus(collected, goal float64) string {
	switch {
	case collected >= goal:
		return CampaignStatusDonated
	case collected > 0:
		return CampaignStatusOngoing
	default:
		return CampaignStatusNotDonate
	}
}

// ContributionStatus is the status written when a contribution lands. A
// contribution always moves the campaign out of notDonate.
func ContributionStatus(newTotal, goal float64) string {
	if newTotal >= goal {
		return CampaignStatusDonated
	}
	return CampaignStatusOngoing
}

func IsRecommendable(status string) bool {
	return status == CampaignStatusNotDonate || status == CampaignStatusOngoing
}

func (c Campaign) OwnedBy(email string) bool {
	return c.OwnerEmail == email
}

// OwnedByFold compares owners ignoring case. Only the donor batch listing uses it.
func (c Campaign) OwnedByFold(email string) bool {
	return strings.EqualFold(c.OwnerEmail, email)
}

func (c Campaign) HasDonor(donorID string) bool {
	for _, id := range c.DonorIDs {
		if id == donorID {
			return true
		}
	}
	return false
}

func TogglePause(state string) string {
	if state == PauseStatePaused {
		return PauseStateResumed
	}
	return PauseStatePaused
}

// GoalCrossed reports whether adding amount moved the total from below the goal
// to at or above it.
func GoalCrossed(after, amount, goal float64) bool {
	return after-amount < goal && after >= goal
}
