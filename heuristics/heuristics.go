// Package heuristics contains the pure text parsers that turn free-form
// listing copy into typed field values. Every parser returns nil (or false,
// or an empty string) on ambiguous input instead of erroring; callers treat
// nil as "field unknown".
package heuristics

import (
	"regexp"
	"strconv"
	"strings"
)

// RangeBound selects which end of a "$X – $Y" rent range wins.
type RangeBound int

const (
	// RangeLower takes the low end of a range as the canonical rent.
	RangeLower RangeBound = iota
	// RangeUpper takes the high end.
	RangeUpper
)

// RangePolicy controls MoneyToInt's range handling. The default is the
// conservative lower bound.
var RangePolicy = RangeLower

// StudioBedrooms is the bedroom count assigned to "studio" listings.
var StudioBedrooms = 0

var (
	moneyPattern = regexp.MustCompile(`\$\s*(\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?`)
	rangePattern = regexp.MustCompile(`\$\s*(\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?\s*[\x{2013}\x{2014}-]\s*\$?\s*(\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?`)
	bedPattern   = regexp.MustCompile(`(?i)(\d+)\s*(?:bedrooms|bedroom|beds|bed|brs|br|bds|bdrm|bdr|bd)\b`)
	bathPattern  = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:bathrooms|bathroom|baths|bath|bth|ba)\b`)
	// Leading street number followed by a street-type token.
	addressPattern = regexp.MustCompile(`(?i)\b\d+\s+[A-Za-z0-9.'\- ]+\s+(?:St|Street|Ave|Avenue|Rd|Road|Blvd|Boulevard|Dr|Drive|Way|Ct|Court|Ln|Lane|Ter|Terrace|Pl|Place|Pkwy|Parkway|Cir|Circle)\b`)
	digitPattern   = regexp.MustCompile(`\d`)
	spacePattern   = regexp.MustCompile(`\s+`)
	separatorSplit = regexp.MustCompile("[,/|•]")
	cityStateNoise = regexp.MustCompile(`(?i)\b(San\s+Francisco|CA|California)\b`)
)

var unitMarkers = []string{"#", "unit", "apt", "apartment", "suite"}

var noPricePhrases = []string{"contact us", "price upon request", "upon request"}

// Neighborhood names whose canonical casing is not plain title case.
var neighborhoodCasing = map[string]string{
	"soma":  "SoMa",
	"nopa":  "NoPa",
	"socal": "SoCal",
	"fidi":  "FiDi",
	"of":    "of",
	"the":   "the",
	"de":    "de",
}

// MoneyToInt extracts a whole-dollar amount from text. Ranges such as
// "$2,100 – $2,400" resolve per RangePolicy (lower bound by default).
// Known no-price language ("call for pricing", "contact us", "price upon
// request") and text without a currency token yield nil, so bare bedroom or
// square-footage numbers are never mistaken for rent.
func MoneyToInt(text string) *int {
	if text == "" {
		return nil
	}

	lowered := strings.ToLower(text)
	if strings.Contains(lowered, "call") && strings.Contains(lowered, "price") {
		return nil
	}
	for _, phrase := range noPricePhrases {
		if strings.Contains(lowered, phrase) {
			return nil
		}
	}

	text = strings.ReplaceAll(text, "\u00a0", " ")
	if m := rangePattern.FindStringSubmatch(text); m != nil {
		group := m[1]
		if RangePolicy == RangeUpper {
			group = m[2]
		}
		if v, err := strconv.Atoi(strings.ReplaceAll(group, ",", "")); err == nil {
			return &v
		}
		return nil
	}

	m := moneyPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return nil
	}
	return &v
}

// ParseBedrooms parses a bedroom count. "Studio" maps to StudioBedrooms;
// lofts are ambiguous and yield nil. Absence never defaults to zero.
func ParseBedrooms(text string) *int {
	if text == "" {
		return nil
	}

	lowered := strings.ToLower(text)
	if strings.Contains(lowered, "studio") {
		v := StudioBedrooms
		return &v
	}
	if strings.Contains(lowered, "loft") {
		return nil
	}

	normalized := strings.NewReplacer("-", " ", "/", " ").Replace(lowered)
	m := bedPattern.FindStringSubmatch(normalized)
	if m == nil {
		return nil
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &v
}

// ParseBathrooms parses a bathroom count, including half-bath increments
// such as "1.5 ba".
func ParseBathrooms(text string) *float64 {
	if text == "" {
		return nil
	}

	normalized := strings.NewReplacer("-", " ", "/", " ").Replace(strings.ToLower(text))
	m := bathPattern.FindStringSubmatch(normalized)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &v
}

// LooksLikeAddress reports whether text resembles a street address: a
// leading street number plus street-type token, or a unit marker ("#",
// "Apt", "Suite") alongside a number. It selects candidate address text;
// it does not validate correctness.
func LooksLikeAddress(text string) bool {
	cleaned := CollapseWhitespace(text)
	if cleaned == "" {
		return false
	}

	if addressPattern.MatchString(cleaned) {
		return true
	}

	lowered := strings.ToLower(cleaned)
	for _, marker := range unitMarkers {
		if strings.Contains(lowered, marker) && digitPattern.MatchString(cleaned) {
			return true
		}
	}
	return false
}

// CleanNeighborhood normalizes a neighborhood label: label prefixes and
// city/state boilerplate are stripped, whitespace collapsed, and multi-word
// names title-cased with a small exception table ("SoMa" stays "SoMa").
func CleanNeighborhood(text string) string {
	cleaned := CollapseWhitespace(text)
	if cleaned == "" {
		return ""
	}

	cleaned = stripLabelPrefix(cleaned)

	candidate := cleaned
	for _, part := range separatorSplit.Split(cleaned, -1) {
		if p := strings.TrimSpace(part); p != "" {
			candidate = p
			break
		}
	}

	candidate = cityStateNoise.ReplaceAllString(candidate, "")
	candidate = strings.TrimRight(candidate, " .,;:-–—")
	candidate = CollapseWhitespace(candidate)
	if candidate == "" {
		return ""
	}
	return titleCaseName(candidate)
}

// CollapseWhitespace trims text and folds internal runs of whitespace into
// single spaces.
func CollapseWhitespace(text string) string {
	return strings.TrimSpace(spacePattern.ReplaceAllString(text, " "))
}

func stripLabelPrefix(text string) string {
	lowered := strings.ToLower(text)
	for _, label := range []string{"neighborhood:", "neighbourhood:", "hood:", "district:", "area:"} {
		if strings.HasPrefix(lowered, label) {
			return strings.TrimSpace(text[len(label):])
		}
	}
	return text
}

func titleCaseName(name string) string {
	words := strings.Fields(name)
	for i, word := range words {
		if canonical, ok := neighborhoodCasing[strings.ToLower(word)]; ok {
			if i == 0 && len(canonical) > 0 && canonical == strings.ToLower(canonical) {
				// Connector words keep their casing only mid-name.
				words[i] = upperFirst(canonical)
			} else {
				words[i] = canonical
			}
			continue
		}
		words[i] = upperFirst(strings.ToLower(word))
	}
	return strings.Join(words, " ")
}

func upperFirst(word string) string {
	if word == "" {
		return word
	}
	return strings.ToUpper(word[:1]) + word[1:]
}
