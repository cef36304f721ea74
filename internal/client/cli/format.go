package cli

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/giftvault/internal/client/models"
	"github.com/dmitrijs2005/giftvault/internal/txlife"
	"github.com/holiman/uint256"
)

func formatStatus(st txlife.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", st.Key, st.State)
	if st.TxHash != "" {
		fmt.Fprintf(&b, " tx=%s", st.TxHash)
	}
	if st.Detached {
		b.WriteString(" (detached)")
	}
	if st.Reason != "" {
		fmt.Fprintf(&b, ": %s", st.Reason)
	}
	return b.String()
}

// provenance marks values that are not yet ledger facts.
func provenance[T any](v models.Tagged[T]) string {
	if v.IsConfirmed() {
		return ""
	}
	return fmt.Sprintf(" [%s %s]", v.Provenance, v.Key)
}

func formatGiftCard(c models.GiftCard) string {
	return fmt.Sprintf("#%s %s expires %s", dec(c.TokenID), c.Vendor, c.ExpiryDate.Format(dateLayout))
}

func formatVendorToken(v models.VendorToken) string {
	var detail string
	if len(v.RedeemableItems) > 0 {
		detail = "items: " + strings.Join(v.RedeemableItems, ", ")
	} else {
		detail = dec(v.Value) + "% off"
	}
	return fmt.Sprintf("#%s %s %s (%s) uses=%d amount=%s expires %s",
		dec(v.TokenID), v.Type, v.Vendor, detail, v.RemainingUses, dec(v.Amount), v.ExpiryDate.Format(dateLayout))
}

func dec(n *uint256.Int) string {
	if n == nil {
		return "0"
	}
	return n.Dec()
}
