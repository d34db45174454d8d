package ingest

import (
	"net/url"
	"strconv"
)

// Options configures one ingestion session. The filter fields are
// forwarded to the streaming endpoint as query parameters and are not
// interpreted by the pipeline itself.
type Options struct {
	// Endpoint is the URL of the NDJSON streaming endpoint.
	Endpoint string

	// RiskLevel filters the feed to one risk level ("low", "medium" or
	// "high"). Empty means all levels.
	RiskLevel string

	// Location filters the feed to one location (zip code).
	Location string

	// BatchSize asks the feed for batches of this many items. Zero
	// leaves the feed's default in place.
	BatchSize int

	// IncludeSuggestions asks the feed to attach AI suggestions.
	IncludeSuggestions bool

	// IncludeNotifications asks the feed to attach notifications.
	IncludeNotifications bool

	// ChunkSize is the read size for the underlying byte stream. Zero
	// means source.DefaultChunkSize.
	ChunkSize int
}

// query renders the forwarded request parameters.
func (o Options) query() url.Values {
	q := url.Values{}
	if o.RiskLevel != "" {
		q.Set("risk_level", o.RiskLevel)
	}
	if o.Location != "" {
		q.Set("location", o.Location)
	}
	if o.BatchSize > 0 {
		q.Set("batch_size", strconv.Itoa(o.BatchSize))
	}
	if o.IncludeSuggestions {
		q.Set("include_suggestions", "true")
	}
	if o.IncludeNotifications {
		q.Set("include_notifications", "true")
	}
	return q
}
