package heuristics

import "testing"

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestMoneyToInt(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected *int
	}{
		{name: "plain amount", input: "$2,100/mo", expected: intPtr(2100)},
		{name: "no thousands separator", input: "$950 per month", expected: intPtr(950)},
		{name: "range takes lower bound", input: "$2,100 – $2,400", expected: intPtr(2100)},
		{name: "hyphen range", input: "$1,800-$2,000", expected: intPtr(1800)},
		{name: "call for pricing", input: "Call for pricing", expected: nil},
		{name: "contact us", input: "Contact us for availability", expected: nil},
		{name: "price upon request", input: "Price upon request", expected: nil},
		{name: "no currency token", input: "2 bed, 1000 sqft", expected: nil},
		{name: "empty", input: "", expected: nil},
		{name: "decimal amount truncates", input: "$1,500.50", expected: intPtr(1500)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MoneyToInt(tt.input)
			if !intEq(got, tt.expected) {
				t.Errorf("MoneyToInt(%q) = %v, want %v", tt.input, fmtInt(got), fmtInt(tt.expected))
			}
		})
	}
}

func TestMoneyToIntRangePolicy(t *testing.T) {
	defer func() { RangePolicy = RangeLower }()

	RangePolicy = RangeUpper
	got := MoneyToInt("$2,100 – $2,400")
	if got == nil || *got != 2400 {
		t.Fatalf("upper-bound policy returned %v, want 2400", fmtInt(got))
	}
}

func TestParseBedrooms(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected *int
	}{
		{name: "studio maps to zero", input: "Studio", expected: intPtr(0)},
		{name: "plain count", input: "2 bed", expected: intPtr(2)},
		{name: "abbreviated", input: "3br", expected: intPtr(3)},
		{name: "slash separated", input: "3bd/2ba", expected: intPtr(3)},
		{name: "long form", input: "4 Bedrooms", expected: intPtr(4)},
		{name: "loft is ambiguous", input: "Open loft", expected: nil},
		{name: "no signal", input: "Great light, hardwood floors", expected: nil},
		{name: "empty", input: "", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseBedrooms(tt.input)
			if !intEq(got, tt.expected) {
				t.Errorf("ParseBedrooms(%q) = %v, want %v", tt.input, fmtInt(got), fmtInt(tt.expected))
			}
		})
	}
}

func TestParseBathrooms(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected *float64
	}{
		{name: "plain count", input: "1 bath", expected: floatPtr(1)},
		{name: "half bath", input: "2.5 bath", expected: floatPtr(2.5)},
		{name: "slash separated", input: "3bd/2ba", expected: floatPtr(2)},
		{name: "abbreviated", input: "1.5 ba", expected: floatPtr(1.5)},
		{name: "no signal", input: "2 bed", expected: nil},
		{name: "empty", input: "", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseBathrooms(tt.input)
			if !floatEq(got, tt.expected) {
				t.Errorf("ParseBathrooms(%q) = %v, want %v", tt.input, fmtFloat(got), fmtFloat(tt.expected))
			}
		})
	}
}

func TestLooksLikeAddress(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{name: "street suffix", input: "123 Fake St", expected: true},
		{name: "avenue", input: "1260 Fell Street, San Francisco", expected: true},
		{name: "boulevard", input: "100 Ocean Blvd", expected: true},
		{name: "unit marker with number", input: "Apt 4B", expected: true},
		{name: "hash marker", input: "#12, second floor", expected: true},
		{name: "marker without number", input: "Apartment living at its finest", expected: false},
		{name: "plain prose", input: "Call for pricing", expected: false},
		{name: "empty", input: "", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LooksLikeAddress(tt.input); got != tt.expected {
				t.Errorf("LooksLikeAddress(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCleanNeighborhood(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "title cases", input: "  hayes   valley ", expected: "Hayes Valley"},
		{name: "strips label prefix", input: "Neighborhood: lower haight,", expected: "Lower Haight"},
		{name: "keeps casing exception", input: "soma", expected: "SoMa"},
		{name: "drops city suffix", input: "SoMa, San Francisco, CA", expected: "SoMa"},
		{name: "pipe separated", input: "Mission | San Francisco", expected: "Mission"},
		{name: "trailing punctuation", input: "Alamo Square.", expected: "Alamo Square"},
		{name: "empty", input: "   ", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanNeighborhood(tt.input); got != tt.expected {
				t.Errorf("CleanNeighborhood(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func intEq(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func floatEq(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func fmtInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func fmtFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
