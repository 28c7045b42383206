package pricepage

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/angas/imbalance-go/types"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type PricePage struct {
	logger *slog.Logger
	client *http.Client
	url    string
}

func New(client *http.Client, url string) *PricePage {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &PricePage{
		logger: slog.Default().With("module", "pricepage"),
		client: client,
		url:    url,
	}
}

func (p *PricePage) GetIntervalTable(ctx context.Context) (*types.IntervalTable, error) {
	doc, err := p.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return Parse(doc)
}

func (p *PricePage) Fetch(ctx context.Context) (*html.Node, error) {
	p.logger.Info("fetching price page...", slog.String("url", p.url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return doc, nil
}

// Parse reads the first table of doc. The first row is a header, rows with
// less than two cells are skipped and cell text is kept verbatim.
func Parse(doc *html.Node) (*types.IntervalTable, error) {
	table := findFirst(doc, atom.Table)
	if table == nil {
		return nil, types.ErrNoTable
	}

	rows := findAll(table, atom.Tr)
	result := &types.IntervalTable{Rows: make([]types.IntervalRow, 0, len(rows))}
	for i, row := range rows {
		if i == 0 {
			continue
		}
		cells := findAll(row, atom.Td)
		if len(cells) < 2 {
			continue
		}
		result.Rows = append(result.Rows, types.IntervalRow{
			Label:    text(cells[0]),
			RawPrice: text(cells[1]),
		})
	}

	return result, nil
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}

// findAll returns the descendants of n (not n itself) of kind a in document order.
func findAll(n *html.Node, a atom.Atom) []*html.Node {
	var result []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.DataAtom == a {
				result = append(result, c)
			}
			walk(c)
		}
	}
	walk(n)
	return result
}

// text concatenates the trimmed text nodes below n.
func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(strings.TrimSpace(n.Data))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
