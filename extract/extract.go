// Package extract locates listing containers inside arbitrary HTML and
// turns each one into a models.Listing. It carries no per-site knowledge:
// a single candidacy test plus the deepest-unique-container rule segment
// any page layout, and the field heuristics fill in the record.
package extract

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/aptscout/aptscout/heuristics"
	"github.com/aptscout/aptscout/models"
)

var (
	priceTokens = []string{"$", "rent", "per month", "price"}
	bedTokens   = []string{"bed", "bd", "br", "studio"}
	bathTokens  = []string{"bath", "ba"}
	hoodTokens  = []string{"neighborhood", "hood", "district", "area", "breadcrumb"}
	addrTokens  = []string{"address", "addr", "location"}
)

// Extract parses html and returns one Listing per detected container, in
// document order. Records are not deduplicated here; two identical sibling
// containers yield two records. Repeated calls on identical input produce
// identical output.
//
// Container-level problems are absorbed: a field that fails to parse is
// nil, a container with no rent/bedrooms/bathrooms signal is dropped.
// Only a document-level parse failure returns an error.
func Extract(htmlText, sourceURL string) ([]*models.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	containers := findContainers(doc)
	slog.Debug("selected listing containers",
		slog.Int("containers", len(containers)),
		slog.String("source_url", sourceURL),
	)

	listings := make([]*models.Listing, 0, len(containers))
	for _, container := range containers {
		listing := fromContainer(container, sourceURL)
		if !listing.HasSignal() {
			slog.Debug("dropping container without identity fields",
				slog.String("snippet", snippet(container)),
			)
			continue
		}
		listings = append(listings, listing)
	}
	return listings, nil
}

// findContainers returns the deepest non-overlapping elements whose text
// mentions both a price-like token and a bedroom/bathroom-like token. A
// parent aggregating several child listings fails the selection because a
// candidate lives below it; distinct siblings are independent containers.
func findContainers(doc *goquery.Document) []*html.Node {
	var candidates []*html.Node
	isCandidate := make(map[*html.Node]bool)

	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		node := s.Nodes[0]
		text := strings.ToLower(nodeText(node))
		if text == "" {
			return
		}
		if !containsAny(text, priceTokens) {
			return
		}
		if !containsAny(text, bedTokens) && !containsAny(text, bathTokens) {
			return
		}
		candidates = append(candidates, node)
		isCandidate[node] = true
	})

	// Mark every candidate that has another candidate somewhere below it.
	// Walking parent pointers keeps each check O(depth).
	hasCandidateBelow := make(map[*html.Node]bool)
	for _, node := range candidates {
		for parent := node.Parent; parent != nil; parent = parent.Parent {
			if isCandidate[parent] {
				hasCandidateBelow[parent] = true
			}
		}
	}

	selected := make([]*html.Node, 0, len(candidates))
	for _, node := range candidates {
		if !hasCandidateBelow[node] {
			selected = append(selected, node)
		}
	}
	return selected
}

// fromContainer extracts each field independently; one unparseable field
// never aborts the container.
func fromContainer(node *html.Node, sourceURL string) *models.Listing {
	container := goquery.NewDocumentFromNode(node)
	lines := textLines(node)

	return &models.Listing{
		Address:      findAddress(container, lines),
		Bedrooms:     firstBedrooms(lines),
		Bathrooms:    firstBathrooms(lines),
		Rent:         firstRent(lines),
		Neighborhood: findNeighborhood(container, lines),
		SourceURL:    sourceURL,
	}
}

// findAddress prefers explicit markup (an <address> element or an element
// whose class/id/aria metadata names an address), then the first text line
// that looks like a street address, then the container's heading.
func findAddress(container *goquery.Document, lines []string) string {
	address := ""
	container.Find("address").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if text := heuristics.CollapseWhitespace(s.Text()); text != "" {
			address = text
			return false
		}
		return true
	})
	if address != "" {
		return address
	}

	container.Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !containsAny(attrText(s), addrTokens) {
			return true
		}
		if text := heuristics.CollapseWhitespace(s.Text()); text != "" {
			address = text
			return false
		}
		return true
	})
	if address != "" {
		return address
	}

	for _, line := range lines {
		if heuristics.LooksLikeAddress(line) {
			return line
		}
	}

	container.Find("h1, h2, h3, h4, h5, h6").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if text := heuristics.CollapseWhitespace(s.Text()); text != "" {
			address = text
			return false
		}
		return true
	})
	return address
}

func findNeighborhood(container *goquery.Document, lines []string) string {
	neighborhood := ""
	container.Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !containsAny(attrText(s), hoodTokens) {
			return true
		}
		if cleaned := heuristics.CleanNeighborhood(s.Text()); cleaned != "" {
			neighborhood = cleaned
			return false
		}
		return true
	})
	if neighborhood != "" {
		return neighborhood
	}

	for _, line := range lines {
		if containsAny(strings.ToLower(line), hoodTokens) {
			if cleaned := heuristics.CleanNeighborhood(line); cleaned != "" {
				return cleaned
			}
		}
	}
	return ""
}

func firstBedrooms(lines []string) *int {
	for _, line := range lines {
		if v := heuristics.ParseBedrooms(line); v != nil {
			return v
		}
	}
	return nil
}

func firstBathrooms(lines []string) *float64 {
	for _, line := range lines {
		if v := heuristics.ParseBathrooms(line); v != nil {
			return v
		}
	}
	return nil
}

func firstRent(lines []string) *int {
	for _, line := range lines {
		if v := heuristics.MoneyToInt(line); v != nil {
			return v
		}
	}
	return nil
}

// attrText joins the attribute values that commonly label a node's role
// on the page (class, id, role, aria-label), lowercased.
func attrText(s *goquery.Selection) string {
	var tokens []string
	for _, name := range []string{"class", "id", "role", "aria-label"} {
		if value, ok := s.Attr(name); ok && value != "" {
			tokens = append(tokens, strings.ToLower(value))
		}
	}
	return strings.Join(tokens, " ")
}

// textLines yields the container's non-empty text nodes in document
// pre-order, whitespace-collapsed. Script and style bodies are skipped.
func textLines(node *html.Node) []string {
	var lines []string
	walkText(node, func(text string) {
		if cleaned := heuristics.CollapseWhitespace(text); cleaned != "" {
			lines = append(lines, cleaned)
		}
	})
	return lines
}

// nodeText flattens a subtree's text with single-space separators.
func nodeText(node *html.Node) string {
	var parts []string
	walkText(node, func(text string) {
		if cleaned := heuristics.CollapseWhitespace(text); cleaned != "" {
			parts = append(parts, cleaned)
		}
	})
	return strings.Join(parts, " ")
}

func walkText(node *html.Node, fn func(string)) {
	if node.Type == html.ElementNode && (node.Data == "script" || node.Data == "style") {
		return
	}
	if node.Type == html.TextNode {
		fn(node.Data)
		return
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		walkText(child, fn)
	}
}

func containsAny(text string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(text, token) {
			return true
		}
	}
	return false
}

func snippet(node *html.Node) string {
	text := nodeText(node)
	if len(text) > 80 {
		text = text[:80]
	}
	return text
}
