package pricepage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/angas/imbalance-go/types"
	"golang.org/x/net/html"
)

func mustParse(t *testing.T, page string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		t.Fatalf("html.Parse failed: %v", err)
	}
	return doc
}

func TestParseHeaderAndTwoRows(t *testing.T) {
	doc := mustParse(t, `<html><body>
		<h1>Imbalance prices</h1>
		<table>
			<tr><th>Period</th><th>Price</th></tr>
			<tr><td> 00:00 - 00:15 </td><td>12,5</td></tr>
			<tr><td>00:15 - 00:30</td><td><b>-3,75</b></td></tr>
		</table>
		<table><tr><td>x</td><td>y</td></tr></table>
	</body></html>`)

	table, err := Parse(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []types.IntervalRow{
		{Label: "00:00 - 00:15", RawPrice: "12,5"},
		{Label: "00:15 - 00:30", RawPrice: "-3,75"},
	}
	if len(table.Rows) != len(expected) {
		t.Fatalf("expected %d rows, got %d", len(expected), len(table.Rows))
	}
	for i, row := range expected {
		if table.Rows[i] != row {
			t.Errorf("row %d expected %+v, got %+v", i, row, table.Rows[i])
		}
	}
}

func TestParseSkipsShortRows(t *testing.T) {
	doc := mustParse(t, `<table>
		<tr><td>Period</td><td>Price</td></tr>
		<tr><td colspan="2">No data yet</td></tr>
		<tr><td>01:00 - 01:15</td><td>n/a</td><td>extra</td></tr>
	</table>`)

	table, err := Parse(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(table.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(table.Rows))
	}
	if table.Rows[0].RawPrice != "n/a" {
		t.Errorf("expected raw price %q, got %q", "n/a", table.Rows[0].RawPrice)
	}
}

func TestParseNoTable(t *testing.T) {
	doc := mustParse(t, `<html><body><p>maintenance</p></body></html>`)
	if _, err := Parse(doc); !errors.Is(err, types.ErrNoTable) {
		t.Errorf("expected ErrNoTable, got %v", err)
	}
}

func TestGetIntervalTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<table><tr><th>t</th><th>p</th></tr><tr><td>08:00 - 08:15</td><td>1,5</td></tr></table>`)
	}))
	defer srv.Close()

	table, err := New(srv.Client(), srv.URL).GetIntervalTable(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.Len() != 1 || table.Rows[0].Label != "08:00 - 08:15" {
		t.Errorf("unexpected table %+v", table.Rows)
	}
}
