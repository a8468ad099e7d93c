package classify

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// BonAppetit selects detail-page fields from the bonappetit.com markup. Its
// selector rules are the one site-specific piece of the classifier.
type BonAppetit struct{}

// IsDetailPage reports whether the URL points at a recipe detail page.
func (BonAppetit) IsDetailPage(rawURL string) bool {
	return strings.Contains(rawURL, "/recipe/")
}

// Fields returns the recipe title and description, or empty strings for
// whichever the page does not carry.
func (BonAppetit) Fields(doc *goquery.Document) (string, string) {
	title := strings.TrimSpace(doc.Find("h1[data-testid='ContentHeaderHed']").First().Text())
	description := strings.TrimSpace(doc.Find("div.container--body-inner p").First().Text())
	return title, description
}
