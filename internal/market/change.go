package market

import "github.com/hoanghai1803/pushkit/internal/models"

// ComputeChange fills the change fields of q from its price, previous close
// and open. The previous close is the reference; when it is missing the
// change is taken against the open and the quote is marked as such, and
// when both are missing the change is zero.
func ComputeChange(q *models.QuoteEntry) {
	switch {
	case q.PrevClose > 0:
		q.Change = q.Price - q.PrevClose
		q.ChangePct = q.Change / q.PrevClose * 100
		q.Basis = models.BasisPrevClose
	case q.Open > 0:
		q.Change = q.Price - q.Open
		q.ChangePct = q.Change / q.Open * 100
		q.Basis = models.BasisOpen
	default:
		q.Change = 0
		q.ChangePct = 0
		q.Basis = models.BasisNone
	}
}
