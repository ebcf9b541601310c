package ports

type LedgerMetrics interface {
	ContributionRecorded(status string, amount float64, newDonor bool)
	DonorRefunded(amount float64)
	CampaignReconciled(drifted bool)
	RecommendationServed(cacheHit bool)
}
