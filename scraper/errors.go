package scraper

import "fmt"

// FetchErrorKind labels the category of a failed page fetch. The labels
// double as the error_type dimension on the Prometheus counters.
type FetchErrorKind string

const (
	KindTimeout     FetchErrorKind = "timeout"
	KindConnection  FetchErrorKind = "connection"
	KindForbidden   FetchErrorKind = "forbidden"
	KindNotFound    FetchErrorKind = "not_found"
	KindRateLimited FetchErrorKind = "rate_limited"
	KindExtract     FetchErrorKind = "extract"
	KindOther       FetchErrorKind = "other"
)

// FetchError wraps a transport or extraction failure with its category.
type FetchError struct {
	Kind FetchErrorKind
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	if fe, ok := err.(*FetchError); ok {
		return string(fe.Kind)
	}
	return string(KindOther)
}
