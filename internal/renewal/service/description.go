package service

import (
	"fmt"
	"strings"

	"github.com/smallbiznis/tenantdesk/internal/clock"
	"github.com/smallbiznis/tenantdesk/internal/renewal/domain"
	tenantdomain "github.com/smallbiznis/tenantdesk/internal/tenant/domain"
)

// describe builds the text shared by every treasury entry of one renewal. It lists all
// legs so any single entry explains the whole payment, and names the credit flow with the
// cycle it came from.
func describe(ref string, prior tenantdomain.Tenant, summary domain.Summary) string {
	res := summary.Proration
	var b strings.Builder

	switch summary.ChangeKind {
	case domain.ChangeKindUpgrade:
		fmt.Fprintf(&b, "Upgrade %s from %s to %s", prior.Name, prior.Tier, summary.TargetTier)
	case domain.ChangeKindDowngrade:
		fmt.Fprintf(&b, "Downgrade %s from %s to %s", prior.Name, prior.Tier, summary.TargetTier)
	default:
		fmt.Fprintf(&b, "Renewal of %s on %s", prior.Name, summary.TargetTier)
	}
	fmt.Fprintf(&b, " until %s (ref %s).", clock.FormatDate(res.NextExpiryDate), ref)

	parts := make([]string, 0, len(summary.Legs))
	for _, leg := range summary.Legs {
		part := fmt.Sprintf("%s %s", leg.Method.Label(), leg.Amount.StringFixed(2))
		if leg.Reference != "" {
			part += " [" + leg.Reference + "]"
		}
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		b.WriteString(" No payment collected.")
	} else {
		fmt.Fprintf(&b, " Payments: %s, total %s %s.",
			strings.Join(parts, "; "), summary.LegsTotal.StringFixed(2), summary.Currency)
	}

	cycle := clock.FormatDate(prior.SubscriptionEnd)
	if res.CreditApplied.IsPositive() {
		fmt.Fprintf(&b, " Credit applied %s from cycle ending %s.", res.CreditApplied.StringFixed(2), cycle)
	}
	if res.CreditToGenerate.IsPositive() {
		fmt.Fprintf(&b, " Credit issued %s for unused days of cycle ending %s.", res.CreditToGenerate.StringFixed(2), cycle)
	}
	if summary.ChangeDue.IsPositive() {
		fmt.Fprintf(&b, " Change due %s.", summary.ChangeDue.StringFixed(2))
	}

	return b.String()
}
