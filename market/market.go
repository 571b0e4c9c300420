package market

// Market describes the traded instrument as reported by the venue.
// Fetched once at engine start and treated as immutable afterwards.
type Market struct {
	Epic         string
	Name         string
	LotSize      float64
	ContractSize float64
	Currency     string
	MinDealSize  float64
}
