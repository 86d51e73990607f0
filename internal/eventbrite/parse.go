package eventbrite

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shanehull/classmonitor/internal/types"

	"golang.org/x/net/html"
)

const (
	gridSelector    = "div.organizer-profile__event-renderer__grid"
	cardSelector    = "div[class*='event-card']"
	badgeSelector   = ".event-card-badge p"
	titleSelector   = "h3"
	detailsSelector = "section.event-card-details p"

	unknownTitle = "Unknown Event"
	unknownDate  = "Unknown Date"
)

var whitespace = regexp.MustCompile(`[\n\t\r\s\xA0]+`)

// ParseEvents extracts event cards from a rendered organizer page. A page
// without the events grid yields no records.
func ParseEvents(r io.Reader) ([]types.EventRecord, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	records := make([]types.EventRecord, 0)

	grid := doc.Find(gridSelector).First()
	if grid.Length() == 0 {
		return records, nil
	}

	grid.ChildrenFiltered(cardSelector).Each(func(_ int, card *goquery.Selection) {
		records = append(records, parseCard(card))
	})

	return records, nil
}

func parseCard(card *goquery.Selection) types.EventRecord {
	status := types.StatusAvailable
	if badge := card.Find(badgeSelector).First(); badge.Length() > 0 {
		status = cleanText(badge.Text())
	}

	title := unknownTitle
	if h := card.Find(titleSelector).First(); h.Length() > 0 {
		title = cleanText(h.Text())
	}

	dates := unknownDate
	if p := card.Find(detailsSelector).First(); p.Length() > 0 {
		dates = cleanText(p.Text())
	}

	return types.EventRecord{
		Title:       title,
		DatesDetail: dates,
		Status:      status,
	}
}

func cleanText(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
