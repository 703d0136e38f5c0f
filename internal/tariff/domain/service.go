package domain

import "context"

type Service interface {
	// Table loads the full schedule for a country. An unknown country yields an empty table.
	Table(ctx context.Context, country string) (Table, error)
	// Lookup returns nil when no code in the schedule prefixes code.
	Lookup(ctx context.Context, country, code string) (*TariffRate, error)
	List(ctx context.Context, country string) ([]TariffRate, error)
	Upsert(ctx context.Context, req UpsertRequest) (*TariffRate, error)
}
