package ports

import "context"

// MetadataProvider fetches market resolution metadata from the external
// Gamma-style API, paginated, for the Resolution Tracker (spec §4.2).
type MetadataProvider interface {
	// FetchResolutions returns resolution metadata for the given condition
	// IDs, paginating internally until every ID is covered or the adapter's
	// safety cap is hit.
	FetchResolutions(ctx context.Context, conditionIDs []string) ([]RawResolution, error)
}

// RawResolution is the external API's resolution payload shape, ahead of
// domain parsing (outcomePrices/outcomes arrive as either a JSON array or a
// JSON-encoded string, per the upstream API's inconsistency).
type RawResolution struct {
	ConditionID    string
	MarketSlug     string
	Title          string
	Closed         bool
	OutcomePrices  any
	Outcomes       any
	EndDate        string
	UpdatedAt      string
}
