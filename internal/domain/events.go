package domain

const (
	EventContributionRecorded = "donor.contribution_recorded"
	EventDonorRefunded        = "donor.refunded"
	EventCampaignGoalReached  = "campaign.goal_reached"
	EventCampaignReconciled   = "campaign.reconciled"
)

func IsEmittedEvent(eventType string) bool {
	switch eventType {
	case EventContributionRecorded, EventDonorRefunded, EventCampaignGoalReached, EventCampaignReconciled:
		return true
	default:
		return false
	}
}

// PartitionKeyPath names the payload field every event is keyed by. All
// ledger events for one campaign land on the same partition.
func PartitionKeyPath(eventType string) string {
	if IsEmittedEvent(eventType) {
		return "data.donation_id"
	}
	return ""
}
