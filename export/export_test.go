package export

import (
	"os"
	"testing"
	"time"

	"github.com/angas/imbalance-go/types"
	"github.com/angas/imbalance-go/types/maybe"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(b)
}

func TestWritePriceTable(t *testing.T) {
	e, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	path, err := e.WritePriceTable(&types.PriceTable{Records: []types.PriceRecord{
		{Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Price: maybe.Some(5.0)},
		{Timestamp: time.Date(2024, 1, 1, 0, 15, 0, 0, time.UTC), Price: maybe.None[float64]()},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := "imbalance_price,datetime\n" +
		"5,2024-01-01T00:00:00Z\n" +
		",2024-01-01T00:15:00Z\n"
	if got := readFile(t, path); got != expected {
		t.Errorf("expected\n%s\ngot\n%s", expected, got)
	}
}

func TestWriteIntervalTables(t *testing.T) {
	e, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rawPath, err := e.WriteIntervalRaw(&types.IntervalTable{Rows: []types.IntervalRow{
		{Label: "08:00 - 08:15", RawPrice: "12,5"},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectedRaw := "Timestamp,Imbalance Price\n08:00 - 08:15,\"12,5\"\n"
	if got := readFile(t, rawPath); got != expectedRaw {
		t.Errorf("expected\n%s\ngot\n%s", expectedRaw, got)
	}

	start := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	normPath, err := e.WriteIntervalNormalized(&types.NormalizedIntervalTable{Records: []types.IntervalPrice{
		{Label: "08:00 - 08:15", RawPrice: "12,5", Start: maybe.Some(start), End: maybe.Some(start.Add(15 * time.Minute)), Price: maybe.Some(12.5)},
		{Label: "bad", RawPrice: "x"},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectedNorm := "Timestamp,Imbalance Price,DateTime Start,DateTime End,Hour\n" +
		"08:00 - 08:15,12.5,2024-01-01T08:00:00Z,2024-01-01T08:15:00Z,8\n" +
		"bad,,,,\n"
	if got := readFile(t, normPath); got != expectedNorm {
		t.Errorf("expected\n%s\ngot\n%s", expectedNorm, got)
	}
}

func TestWriteCombinedTable(t *testing.T) {
	e, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	path, err := e.WriteCombinedTable(&types.CombinedTable{Records: []types.CombinedRecord{
		{
			Timestamp: t0,
			Price:     maybe.Some(10.0),
			Weather: maybe.Some(types.WeatherRecord{
				Timestamp:   t0,
				Temperature: maybe.Some(1.5),
				Humidity:    maybe.Some(80.0),
				WindSpeed:   maybe.None[float64](),
			}),
			Interval: maybe.Some(types.IntervalPrice{
				Label: "09:00 - 09:15",
				Start: maybe.Some(t0.Add(9 * time.Hour)),
				End:   maybe.Some(t0.Add(9*time.Hour + 15*time.Minute)),
				Price: maybe.Some(-2.0),
			}),
		},
		{Timestamp: t0.Add(15 * time.Minute), Price: maybe.Some(20.0)},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := "datetime,imbalance_price,Temperature,Humidity,Wind Speed,Timestamp,Imbalance Price,DateTime End,Hour\n" +
		"2024-01-01T00:00:00Z,10,1.5,80,,09:00 - 09:15,-2,2024-01-01T09:15:00Z,9\n" +
		"2024-01-01T00:15:00Z,20,,,,,,,\n"
	if got := readFile(t, path); got != expected {
		t.Errorf("expected\n%s\ngot\n%s", expected, got)
	}
}

func TestWriteWeatherTable(t *testing.T) {
	e, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path, err := e.WriteWeatherTable(&types.WeatherTable{Records: []types.WeatherRecord{
		{Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Temperature: maybe.Some(-0.4), Humidity: maybe.Some(91.0), WindSpeed: maybe.Some(11.2)},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := "Timestamp,Temperature,Humidity,Wind Speed\n2024-01-01T00:00:00Z,-0.4,91,11.2\n"
	if got := readFile(t, path); got != expected {
		t.Errorf("expected\n%s\ngot\n%s", expected, got)
	}
}

func TestRemove(t *testing.T) {
	e, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path, err := e.WriteWeatherTable(&types.WeatherTable{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	removed, err := e.Remove(WeatherFile, CombinedFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(removed) != 1 || removed[0] != path {
		t.Errorf("expected [%s], got %v", path, removed)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected %s to be gone, got %v", path, err)
	}
}
