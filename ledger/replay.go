package ledger

import (
	"fmt"
	"sort"

	"github.com/ExcursionClub/ExCSystem/models"
)

// ReplayStatus folds a gear's transaction history, oldest first, into
// the status the gear should currently hold. The stored status column is
// a cache of this fold; the two must agree after every operation.
func ReplayStatus(txs []models.Transaction) (models.GearStatus, error) {
	if len(txs) == 0 {
		return 0, fmt.Errorf("%w: empty transaction history", ErrStructuralMismatch)
	}
	ordered := make([]models.Transaction, len(txs))
	copy(ordered, txs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})
	if ordered[0].Type != models.TxCreate {
		return 0, fmt.Errorf("%w: history does not begin with a create entry", ErrStructuralMismatch)
	}

	status := models.StatusInStock
	var holder *string
	for _, entry := range ordered[1:] {
		switch entry.Type {
		case models.TxCreate:
			return 0, fmt.Errorf("%w: duplicate create entry %s", ErrStructuralMismatch, entry.ID)
		case models.TxCheckOut:
			status = models.StatusCheckedOut
			holder = entry.MemberID
		case models.TxCheckIn:
			status = models.StatusInStock
			holder = nil
		case models.TxMissing:
			status = models.StatusMissing
		case models.TxExpire:
			status = models.StatusDormant
		case models.TxBreak:
			// Holder is frozen so a later fix can restore the rental.
			status = models.StatusBroken
		case models.TxFix:
			if holder != nil {
				status = models.StatusCheckedOut
			} else {
				status = models.StatusInStock
			}
		case models.TxDelete:
			status = models.StatusRemoved
			holder = nil
		case models.TxReTag, models.TxOverride:
			// Identity and field edits leave the state machine alone.
		default:
			return 0, fmt.Errorf("%w: unknown transaction type %q", ErrStructuralMismatch, entry.Type)
		}
	}
	return status, nil
}
