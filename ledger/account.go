package ledger

// Account is the cash side of the ledger. Balance moves only when a
// position closes; unrealized profit lives on the Position.
type Account struct {
	ID       string
	Currency string
	Balance  float64
	Realized float64
}
