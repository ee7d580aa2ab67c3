package respond

import (
	"fmt"
	"strings"

	"github.com/david/issue-hunter/internal/models"
)

// QuickFix is the free sample offered before payment.
type QuickFix struct {
	Code        string
	Explanation string
	Limitations string
}

// DefaultQuickFix is a placeholder guard-clause snippet.
func DefaultQuickFix() QuickFix {
	return QuickFix{
		Code:        "// Guard against the failing input before it reaches the handler.\nif value == nil {\n\treturn errInvalidInput\n}",
		Explanation: "This snippet addresses the immediate problem by adding a nil check.",
		Limitations: "This is a preliminary fix. A complete solution needs full testing and handling of all edge cases.",
	}
}

// TrialOffer builds a reply pairing a free quick fix with a paid complete
// solution.
func TrialOffer(opp models.FilteredOpportunity, fix QuickFix, quote models.PriceQuote, timeline string) string {
	if timeline == "" {
		timeline = "2-3 days"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "@%s,\n\n", authorOrDefault(opp.Author))
	b.WriteString("I've analyzed your issue and here's a working snippet to get you started:\n\n")
	fmt.Fprintf(&b, "```\n%s\n```\n\n", fix.Code)
	fmt.Fprintf(&b, "**This handles:** %s\n", fix.Explanation)
	fmt.Fprintf(&b, "**Limitations:** %s\n\n", fix.Limitations)
	b.WriteString("---\n\n## Complete Solution Offer\n")
	b.WriteString("For a production-ready solution, I can provide:\n")
	b.WriteString("- A fully implemented, robust fix\n")
	b.WriteString("- Comprehensive testing for all edge cases\n")
	b.WriteString("- Performance optimization and documentation\n")
	b.WriteString("- 30-day support guarantee\n\n")
	fmt.Fprintf(&b, "**Investment:** %d %s\n", quote.TotalAmount, quote.Currency)
	fmt.Fprintf(&b, "**Timeline:** ~%s\n", timeline)
	fmt.Fprintf(&b, "**Payment:** %s %s -> `%s`\n\n", quote.Currency, quote.Network, quote.WalletAddress)
	b.WriteString("The quick fix above shows my approach. If you're ready for the complete, reliable solution, let me know!")
	return b.String()
}
