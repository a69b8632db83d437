package boc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/sig-0/bocrates/provider/currencies"
	"github.com/sig-0/bocrates/storage/types"
)

const (
	DefaultURL           = "https://www.boc.cn/sourcedb/whpj/"
	DefaultTimeout       = 30 * time.Second
	DefaultTableSelector = `table[align="left"]`
	DefaultTimeLayout    = "2006.01.02 15:04:05"

	defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.114 Safari/537.36"
)

var (
	// ErrRetrieval is returned when the page can't be retrieved
	ErrRetrieval = errors.New("unable to retrieve quotations")

	// ErrUnexpectedFormat is returned when the page was retrieved,
	// but the quotation table can't be located
	ErrUnexpectedFormat = errors.New("unexpected page format")
)

// Config is the Bank of China quotation page configuration
type Config struct {
	// Location is the time zone the publication times are expressed in
	Location *time.Location

	// Names maps the published currency names to the tracked codes
	Names map[string]types.Currency

	URL           string
	TableSelector string
	TimeLayout    string
	UserAgent     string

	Timeout time.Duration
}

// DefaultConfig returns the default quotation page configuration
func DefaultConfig() Config {
	return Config{
		Location:      shanghaiLocation(),
		Names:         currencies.PublishedNames(),
		URL:           DefaultURL,
		TableSelector: DefaultTableSelector,
		TimeLayout:    DefaultTimeLayout,
		UserAgent:     defaultUserAgent,
		Timeout:       DefaultTimeout,
	}
}

// Fetcher is the Bank of China quotation page scraping provider
type Fetcher struct {
	client *http.Client
	parser *Parser
	cfg    Config
}

// NewFetcher creates a new instance of the quotation page provider
func NewFetcher(cfg Config) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		parser: NewParser(cfg.Names, cfg.TimeLayout, cfg.Location),
		cfg:    cfg,
	}
}

func (f *Fetcher) Name() string {
	return "BOC"
}

// Fetch retrieves the quotation table once, and parses every data row.
// Row level failures are counted, and never fail the fetch
func (f *Fetcher) Fetch(ctx context.Context) (*types.FetchResult, error) {
	// Prepare the request
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.URL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to create new GET request: %w", ErrRetrieval, err)
	}

	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}

	// Execute the request
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to execute GET request: %w", ErrRetrieval, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: invalid status code received: %d", ErrRetrieval, resp.StatusCode)
	}

	// Construct document for parsing
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		// The body is read while parsing, so this is a transport failure
		return nil, fmt.Errorf("%w: unable to construct query doc: %w", ErrRetrieval, err)
	}

	table := doc.Find(f.cfg.TableSelector).First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("%w: missing table %q", ErrUnexpectedFormat, f.cfg.TableSelector)
	}

	rows := table.Find("tr")
	if rows.Length() < 2 {
		return nil, fmt.Errorf("%w: table %q has no data rows", ErrUnexpectedFormat, f.cfg.TableSelector)
	}

	result := &types.FetchResult{
		Records: make([]*types.RateRecord, 0, rows.Length()-1),
	}

	// Skip the header row
	rows.Slice(1, goquery.ToEnd).Each(func(_ int, tr *goquery.Selection) {
		record, err := f.parser.Parse(toRawRow(tr))

		switch {
		case err == nil:
			result.Records = append(result.Records, record)
		case errors.Is(err, ErrUntracked):
		case errors.Is(err, ErrBadTimestamp):
			result.Skipped++

			var rowErr *RowError
			if errors.As(err, &rowErr) && rowErr.Record != nil {
				result.Degraded = append(result.Degraded, rowErr.Record)
			}
		default:
			result.Skipped++
		}
	})

	return result, nil
}

// toRawRow extracts the data cell texts of the table row
func toRawRow(tr *goquery.Selection) RawRow {
	cells := tr.Find("td").Map(func(_ int, td *goquery.Selection) string {
		return td.Text()
	})

	return NewRawRow(cells...)
}

func shanghaiLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err == nil {
		return loc
	}

	return time.FixedZone("CST", 8*60*60)
}
