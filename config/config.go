package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"
	_ "time/tzdata" // zone data for the configured source location

	"github.com/pelletier/go-toml"
	"github.com/shopspring/decimal"

	"github.com/sig-0/bocrates/provider/boc"
	"github.com/sig-0/bocrates/provider/currencies"
	"github.com/sig-0/bocrates/storage/types"
	"github.com/sig-0/bocrates/trend"
)

const (
	DefaultListenAddress  = "0.0.0.0:8545"
	DefaultIngestInterval = "24h"
	DefaultLocation       = "Asia/Shanghai"
)

var (
	ErrInvalidListenAddress = errors.New("invalid listen address")
	ErrInvalidTimeout       = errors.New("invalid source timeout")
	ErrInvalidInterval      = errors.New("invalid ingest interval")
	ErrInvalidThresholds    = errors.New("invalid trend thresholds")
	ErrUnknownLocation      = errors.New("unknown source location")
	ErrNoCurrencies         = errors.New("no currencies configured")
	ErrInvalidCurrency      = errors.New("invalid currency")
	ErrUnknownMajor         = errors.New("major currency is not configured")
	ErrMissingKafkaTopic    = errors.New("missing kafka topic")
)

var (
	listenAddressRegex = regexp.MustCompile(`^\d{1,3}(\.\d{1,3}){3}:\d+$`)
	currencyCodeRegex  = regexp.MustCompile(`^[A-Z]{3}$`)
)

// Config defines the base-level service configuration
type Config struct {
	// The associated CORS config, if any
	CORSConfig *CORS `toml:"cors_config"`

	// The quotation source config
	Source *Source `toml:"source"`

	// The trend classification config
	Trend *Trend `toml:"trend"`

	// The ingestion config
	Ingest *Ingest `toml:"ingest"`

	// The address at which the server will be served.
	// Format should be: <IP>:<PORT>
	ListenAddress string `toml:"listen_address"`
}

// CORS is the server CORS configuration
type CORS struct {
	AllowedOrigins []string `toml:"allowed_origins"`
	AllowedMethods []string `toml:"allowed_methods"`
	AllowedHeaders []string `toml:"allowed_headers"`
}

// Currency maps a published currency name to a tracked code
type Currency struct {
	Name string `toml:"name"`
	Code string `toml:"code"`
}

// Source is the Bank of China quotation page configuration
type Source struct {
	URL           string `toml:"url"`
	TableSelector string `toml:"table_selector"`
	TimeLayout    string `toml:"time_layout"`
	Location      string `toml:"location"`

	// Go duration format (30s, 1m...)
	Timeout string `toml:"timeout"`

	// The tracked currencies, in display order.
	// A code may be listed under more than one published name
	Currencies []Currency `toml:"currencies"`
}

// Messages are the summary suggestion texts
type Messages struct {
	Rising   string `toml:"rising"`
	Dropping string `toml:"dropping"`
	Stable   string `toml:"stable"`
	Watch    string `toml:"watch"`
}

// Trend is the trend classification configuration
type Trend struct {
	Messages *Messages `toml:"messages"`

	Majors []string `toml:"majors"`

	// Percent changes
	RiseThreshold float64 `toml:"rise_threshold"`
	DropThreshold float64 `toml:"drop_threshold"`
}

// Kafka is the ingestion report publishing configuration
type Kafka struct {
	Topic   string   `toml:"topic"`
	Brokers []string `toml:"brokers"`
}

// Ingest is the ingestion configuration
type Ingest struct {
	// Reports are published only if configured
	Kafka *Kafka `toml:"kafka"`

	// Go duration format (24h, 1h30m...)
	Interval string `toml:"interval"`

	// Store records with an unparseable publication time, at the ingestion time
	IngestTimeFallback bool `toml:"ingest_time_fallback"`
}

// DefaultCORSConfig returns the default CORS configuration
func DefaultCORSConfig() *CORS {
	return &CORS{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}
}

// DefaultSourceConfig returns the default quotation page configuration
func DefaultSourceConfig() *Source {
	return &Source{
		URL:           boc.DefaultURL,
		TableSelector: boc.DefaultTableSelector,
		TimeLayout:    boc.DefaultTimeLayout,
		Location:      DefaultLocation,
		Timeout:       boc.DefaultTimeout.String(),
		Currencies: []Currency{
			{Name: "美元", Code: currencies.USD.String()},
			{Name: "日元", Code: currencies.JPY.String()},
			{Name: "泰国铢", Code: currencies.THB.String()},
			{Name: "泰铢", Code: currencies.THB.String()},
			{Name: "林吉特", Code: currencies.MYR.String()},
			{Name: "新加坡元", Code: currencies.SGD.String()},
			{Name: "菲律宾比索", Code: currencies.PHP.String()},
		},
	}
}

// DefaultTrendConfig returns the default trend configuration
func DefaultTrendConfig() *Trend {
	msgs := trend.DefaultMessages()

	return &Trend{
		Messages: &Messages{
			Rising:   msgs.Rising,
			Dropping: msgs.Dropping,
			Stable:   msgs.Stable,
			Watch:    msgs.Watch,
		},
		Majors:        []string{currencies.USD.String(), currencies.SGD.String()},
		RiseThreshold: 0.5,
		DropThreshold: -0.5,
	}
}

// DefaultIngestConfig returns the default ingestion configuration
func DefaultIngestConfig() *Ingest {
	return &Ingest{
		Interval: DefaultIngestInterval,
	}
}

// DefaultConfig returns the default service configuration
func DefaultConfig() *Config {
	return &Config{
		ListenAddress: DefaultListenAddress,
		CORSConfig:    DefaultCORSConfig(),
		Source:        DefaultSourceConfig(),
		Trend:         DefaultTrendConfig(),
		Ingest:        DefaultIngestConfig(),
	}
}

// ValidateConfig validates the service configuration
func ValidateConfig(config *Config) error {
	// Validate the listen address
	if !listenAddressRegex.MatchString(config.ListenAddress) {
		return ErrInvalidListenAddress
	}

	if err := validateSource(config.Source); err != nil {
		return err
	}

	if err := validateTrend(config.Trend, config.Source); err != nil {
		return err
	}

	return validateIngest(config.Ingest)
}

func validateSource(s *Source) error {
	if s == nil {
		return ErrNoCurrencies
	}

	if d, err := time.ParseDuration(s.Timeout); err != nil || d <= 0 {
		return ErrInvalidTimeout
	}

	if _, err := time.LoadLocation(s.Location); err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownLocation, s.Location)
	}

	if len(s.Currencies) == 0 {
		return ErrNoCurrencies
	}

	for _, c := range s.Currencies {
		if c.Name == "" || !currencyCodeRegex.MatchString(c.Code) {
			return fmt.Errorf("%w: %q (%s)", ErrInvalidCurrency, c.Name, c.Code)
		}
	}

	return nil
}

func validateTrend(t *Trend, s *Source) error {
	if t == nil {
		return nil
	}

	if t.RiseThreshold < t.DropThreshold {
		return ErrInvalidThresholds
	}

	supported := make(map[string]struct{}, len(s.Currencies))
	for _, c := range s.Currencies {
		supported[c.Code] = struct{}{}
	}

	for _, major := range t.Majors {
		if _, ok := supported[major]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownMajor, major)
		}
	}

	return nil
}

func validateIngest(i *Ingest) error {
	if i == nil {
		return ErrInvalidInterval
	}

	if d, err := time.ParseDuration(i.Interval); err != nil || d <= 0 {
		return ErrInvalidInterval
	}

	if i.Kafka != nil && i.Kafka.Topic == "" {
		return ErrMissingKafkaTopic
	}

	return nil
}

// Read reads the configuration from the given path.
// Sections missing from the file keep their defaults
func Read(path string) (*Config, error) {
	// Read the config file
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Parse it
	var cfg Config

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}

	if cfg.Source == nil {
		cfg.Source = DefaultSourceConfig()
	} else {
		def := DefaultSourceConfig()

		setDefault(&cfg.Source.URL, def.URL)
		setDefault(&cfg.Source.TableSelector, def.TableSelector)
		setDefault(&cfg.Source.TimeLayout, def.TimeLayout)
		setDefault(&cfg.Source.Location, def.Location)
		setDefault(&cfg.Source.Timeout, def.Timeout)

		if len(cfg.Source.Currencies) == 0 {
			cfg.Source.Currencies = def.Currencies
		}
	}

	if cfg.Trend == nil {
		cfg.Trend = DefaultTrendConfig()
	} else if cfg.Trend.Messages == nil {
		cfg.Trend.Messages = DefaultTrendConfig().Messages
	}

	if cfg.Ingest == nil {
		cfg.Ingest = DefaultIngestConfig()
	} else {
		setDefault(&cfg.Ingest.Interval, DefaultIngestInterval)
	}
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// Supported returns the configured currencies, in display order
func (s *Source) Supported() []types.Currency {
	var (
		seen = make(map[string]struct{}, len(s.Currencies))
		out  = make([]types.Currency, 0, len(s.Currencies))
	)

	for _, c := range s.Currencies {
		if _, ok := seen[c.Code]; ok {
			continue
		}

		seen[c.Code] = struct{}{}
		out = append(out, types.Currency(c.Code))
	}

	return out
}

// FetcherConfig converts the source configuration to the fetcher configuration.
// The source is expected to be validated
func (s *Source) FetcherConfig() (boc.Config, error) {
	cfg := boc.DefaultConfig()

	timeout, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return boc.Config{}, fmt.Errorf("%w: %w", ErrInvalidTimeout, err)
	}

	loc, err := time.LoadLocation(s.Location)
	if err != nil {
		return boc.Config{}, fmt.Errorf("%w: %w", ErrUnknownLocation, err)
	}

	names := make(map[string]types.Currency, len(s.Currencies))
	for _, c := range s.Currencies {
		names[c.Name] = types.Currency(c.Code)
	}

	cfg.URL = s.URL
	cfg.TableSelector = s.TableSelector
	cfg.TimeLayout = s.TimeLayout
	cfg.Location = loc
	cfg.Timeout = timeout
	cfg.Names = names

	return cfg, nil
}

// AnalyzerConfig converts the trend configuration to the analyzer configuration
func (t *Trend) AnalyzerConfig() trend.Config {
	cfg := trend.DefaultConfig()

	if t.Messages != nil {
		cfg.Messages = trend.Messages{
			Rising:   t.Messages.Rising,
			Dropping: t.Messages.Dropping,
			Stable:   t.Messages.Stable,
			Watch:    t.Messages.Watch,
		}
	}

	majors := make([]types.Currency, 0, len(t.Majors))
	for _, m := range t.Majors {
		majors = append(majors, types.Currency(m))
	}

	cfg.Majors = majors
	cfg.RiseThreshold = decimal.NewFromFloat(t.RiseThreshold)
	cfg.DropThreshold = decimal.NewFromFloat(t.DropThreshold)

	return cfg
}

// IntervalDuration returns the parsed ingestion interval
func (i *Ingest) IntervalDuration() (time.Duration, error) {
	d, err := time.ParseDuration(i.Interval)
	if err != nil || d <= 0 {
		return 0, ErrInvalidInterval
	}

	return d, nil
}
