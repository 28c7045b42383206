package types

import "context"

type PriceTableProvider interface {
	GetPriceTable(ctx context.Context) (*PriceTable, error)
}

type IntervalTableProvider interface {
	GetIntervalTable(ctx context.Context) (*IntervalTable, error)
}

type WeatherTableProvider interface {
	GetWeatherTable(ctx context.Context) (*WeatherTable, error)
}
