package database

// ScrapeGateway bundles the target and price repositories behind the
// single surface the orchestrator reads from and writes to.
type ScrapeGateway struct {
	*TargetRepository
	*PriceRepository
}

func NewScrapeGateway(targets *TargetRepository, prices *PriceRepository) *ScrapeGateway {
	return &ScrapeGateway{
		TargetRepository: targets,
		PriceRepository:  prices,
	}
}
