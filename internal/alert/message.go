// Package alert evaluates user alert rules against scan events and delivers
// notifications over webhook channels.
package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/whale-tracker/internal/models"
)

// formatMessage renders the notification text for a triggered alert.
// The layout is shared by every channel; channels wrap it in their own
// payload envelope.
func formatMessage(alert *models.Alert, event models.Event) string {
	var b strings.Builder

	fmt.Fprintf(&b, "🐋 **%s** Alert!\n", alert.Name)

	if event.Whale != nil {
		fmt.Fprintf(&b, "Whale: %s\n", event.Whale.ShortAddress())
		fmt.Fprintf(&b, "Balance: %s tokens (~$%s)\n",
			event.Whale.Balance.StringFixed(0),
			event.Whale.BalanceUSD.StringFixed(2),
		)
	}

	if event.Transaction != nil {
		fmt.Fprintf(&b, "Transaction: %s of %s tokens (~$%s)\n",
			event.Transaction.Type,
			event.Transaction.Amount.Abs().StringFixed(0),
			event.Transaction.AmountUSD.Abs().StringFixed(2),
		)
		if event.Transaction.PriceImpact != nil {
			fmt.Fprintf(&b, "Price Impact: %s%%\n", event.Transaction.PriceImpact.StringFixed(2))
		}
	}

	fmt.Fprintf(&b, "Time: %s\n", event.Timestamp.UTC().Format(time.RFC1123))
	b.WriteString("View details on the whale dashboard")

	return b.String()
}
