package opendata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/angas/imbalance-go/convert"
	"github.com/angas/imbalance-go/types"
)

const (
	DefaultPriceField = "fields.imbalanceprice"
	DefaultTimeField  = "fields.datetime"
)

// Record is a flattened API record, nested objects joined with dots:
// {"fields": {"imbalanceprice": 5}} becomes {"fields.imbalanceprice": 5}.
type Record map[string]any

// Schema names the field paths projected into a price table.
type Schema struct {
	PriceField string
	TimeField  string
}

func DefaultSchema() Schema {
	return Schema{PriceField: DefaultPriceField, TimeField: DefaultTimeField}
}

func (s Schema) validate() error {
	if s.PriceField == "" || s.TimeField == "" {
		return fmt.Errorf("schema needs both a price and a time field")
	}
	return nil
}

// Query holds the search parameters of an opendatasoft style records API.
type Query struct {
	Q     string
	Rows  int
	Start int
	Facet string
}

func DefaultQuery() Query {
	return Query{Q: "", Rows: 1000, Start: 1, Facet: "datetime,area"}
}

func (q Query) values() url.Values {
	values := url.Values{}
	values.Set("q", q.Q)
	values.Set("rows", strconv.Itoa(q.Rows))
	values.Set("start", strconv.Itoa(q.Start))
	values.Set("facet", q.Facet)
	return values
}

type response struct {
	Records []map[string]any `json:"records"`
}

type OpenData struct {
	logger *slog.Logger
	client *http.Client
	url    string
	query  Query
	schema Schema
	loc    *time.Location
}

func New(client *http.Client, url string, query Query, schema Schema, loc *time.Location) *OpenData {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &OpenData{
		logger: slog.Default().With("module", "opendata"),
		client: client,
		url:    url,
		query:  query,
		schema: schema,
		loc:    loc,
	}
}

func (o *OpenData) GetPriceTable(ctx context.Context) (*types.PriceTable, error) {
	records, err := o.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return Parse(o.logger, records, o.schema, o.loc)
}

// Fetch retrieves and flattens the records of the configured dataset.
func (o *OpenData) Fetch(ctx context.Context) ([]Record, error) {
	u, err := url.Parse(o.url)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", o.url, err)
	}
	values := u.Query()
	for k, v := range o.query.values() {
		values[k] = v
	}
	u.RawQuery = values.Encode()

	o.logger.Info("fetching imbalance prices...", slog.String("url", u.String()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch records: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var body response
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	records := make([]Record, len(body.Records))
	for i, raw := range body.Records {
		records[i] = Flatten(raw)
	}
	return records, nil
}

// Flatten joins nested object keys with dots. Arrays are kept as values.
func Flatten(raw map[string]any) Record {
	record := make(Record)
	flattenInto(record, "", raw)
	return record
}

func flattenInto(record Record, prefix string, raw map[string]any) {
	for k, v := range raw {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok && len(nested) > 0 {
			flattenInto(record, key, nested)
			continue
		}
		record[key] = v
	}
}

// Parse projects records onto (price, timestamp). Every record must carry both
// schema fields. Records whose timestamp cannot be resolved are dropped.
func Parse(logger *slog.Logger, records []Record, schema Schema, loc *time.Location) (*types.PriceTable, error) {
	if err := schema.validate(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, types.ErrNoRecords
	}

	for i, r := range records {
		for _, field := range []string{schema.PriceField, schema.TimeField} {
			if _, ok := r[field]; !ok {
				return nil, fmt.Errorf("%w: %q absent in record %d", types.ErrMissingField, field, i)
			}
		}
	}

	table := &types.PriceTable{Records: make([]types.PriceRecord, 0, len(records))}
	for i, r := range records {
		ts, err := timestamp(r[schema.TimeField], loc)
		if err != nil {
			logger.Warn("dropping record without a valid timestamp",
				slog.Int("record", i),
				slog.Any("error", err))
			continue
		}
		table.Records = append(table.Records, types.PriceRecord{
			Timestamp: ts,
			Price:     convert.PriceFromScalar(r[schema.PriceField]),
		})
	}

	return table, nil
}

func timestamp(v any, loc *time.Location) (time.Time, error) {
	str, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("timestamp is %T, not a string", v)
	}
	return convert.ParseTime(str, loc)
}
