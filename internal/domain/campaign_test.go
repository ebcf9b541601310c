package domain

import (
	"errors"
	"testing"
)

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		collected, goal float64
		want            string
	}{
		{0, 100, CampaignStatusNotDonate},
		{0.01, 100, CampaignStatusOngoing},
		{99.99, 100, CampaignStatusOngoing},
		{100, 100, CampaignStatusDonated},
		{140, 100, CampaignStatusDonated},
	}
	for _, tc := range cases {
		if got := DeriveStatus(tc.collected, tc.goal); got != tc.want {
			t.Fatalf("DeriveStatus(%v, %v) = %s, want %s", tc.collected, tc.goal, got, tc.want)
		}
	}
}

func TestContributionStatusNeverReturnsNotDonate(t *testing.T) {
	if got := ContributionStatus(95, 100); got != CampaignStatusOngoing {
		t.Fatalf("expected ongoing, got %s", got)
	}
	if got := ContributionStatus(100, 100); got != CampaignStatusDonated {
		t.Fatalf("expected donated at the goal, got %s", got)
	}
}

func TestGoalCrossed(t *testing.T) {
	if !GoalCrossed(100, 10, 100) {
		t.Fatalf("90 -> 100 should cross a goal of 100")
	}
	if GoalCrossed(95, 5, 100) {
		t.Fatalf("90 -> 95 must not cross")
	}
	if GoalCrossed(120, 10, 100) {
		t.Fatalf("already past the goal must not cross again")
	}
}

func TestOwnership(t *testing.T) {
	c := Campaign{OwnerEmail: "Owner@Example.com"}
	if c.OwnedBy("owner@example.com") {
		t.Fatalf("OwnedBy must be case sensitive")
	}
	if !c.OwnedByFold("owner@example.com") {
		t.Fatalf("OwnedByFold must ignore case")
	}
}

func TestTogglePause(t *testing.T) {
	if TogglePause(PauseStatePaused) != PauseStateResumed {
		t.Fatalf("pause should toggle to resume")
	}
	if TogglePause(PauseStateResumed) != PauseStatePaused || TogglePause("") != PauseStatePaused {
		t.Fatalf("anything but pause should toggle to pause")
	}
}

func TestNormalizeRecommendCount(t *testing.T) {
	if n, err := NormalizeRecommendCount(0); err != nil || n != DefaultRecommendCount {
		t.Fatalf("expected default count, got %d err=%v", n, err)
	}
	if n, err := NormalizeRecommendCount(7); err != nil || n != 7 {
		t.Fatalf("expected 7, got %d err=%v", n, err)
	}
	if _, err := NormalizeRecommendCount(MaxRecommendCount + 1); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input above max, got %v", err)
	}
}

func TestValidateStructWrapsInvalidInput(t *testing.T) {
	type payload struct {
		Email  string  `validate:"required,email"`
		Amount float64 `validate:"gt=0"`
	}
	err := ValidateStruct(payload{Email: "nope", Amount: 0})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if err := ValidateStruct(payload{Email: "a@example.com", Amount: 1}); err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}
}

func TestEventsShareCampaignPartitionKey(t *testing.T) {
	for _, eventType := range []string{EventContributionRecorded, EventDonorRefunded, EventCampaignGoalReached, EventCampaignReconciled} {
		if !IsEmittedEvent(eventType) || PartitionKeyPath(eventType) != "data.donation_id" {
			t.Fatalf("unexpected partition key path for %s", eventType)
		}
	}
	if IsEmittedEvent("donor.unknown") || PartitionKeyPath("donor.unknown") != "" {
		t.Fatalf("unknown events must not be emitted")
	}
}
