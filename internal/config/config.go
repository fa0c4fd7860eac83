// Package config parses and validates the `-d<Key>=<Value>` configuration
// tokens that drive a simulation run. Splitting os.Args into tokens is
// cmd/heapothesys's job (the out-of-scope "command-line parsing"
// collaborator); this package only parses and validates already-split
// tokens.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/corretto/heapothesys-go/internal/arraylet"
)

// Config holds every recognised setting, one field per table row.
type Config struct {
	AllowAnyMatch bool
	FastAndFurious bool
	PhasedUpdates bool

	ReportCSV              bool
	ReportIndividualThreads bool

	DictionarySize uint32
	DictionaryFile string

	NumProducts  uint32
	NumCustomers uint32

	ProductNameLength        uint32
	ProductDescriptionLength uint32
	ProductReviewLength      uint32

	CustomerThreads uint32
	ServerThreads   uint32

	CustomerPeriod    time.Duration
	CustomerThinkTime time.Duration
	ServerPeriod      time.Duration

	BrowsingExpiration time.Duration

	BrowsingHistoryQueueCount uint32
	SalesTransactionQueueCount uint32

	CustomerReplacementPeriod time.Duration
	CustomerReplacementCount  uint32

	ProductReplacementPeriod time.Duration
	ProductReplacementCount  uint32

	PhasedUpdateInterval time.Duration

	SimulationDuration time.Duration
	WarmupDuration     time.Duration

	KeywordSearchCount     uint32
	SelectionCriteriaCount uint32

	BuyThreshold          float64
	SaveForLaterThreshold float64

	MaxArrayLength uint32

	RandomSeed uint64

	// MetricsListenAddr, if non-empty, is the address cmd/heapothesys
	// serves Prometheus exposition on (e.g. ":9090"). Empty disables it.
	MetricsListenAddr string

	ResponseTimeMeasurements uint32

	MaxP50CustomerPrepMicroseconds    uint32
	MaxP95CustomerPrepMicroseconds    uint32
	MaxP99CustomerPrepMicroseconds    uint32
	MaxP999CustomerPrepMicroseconds   uint32
	MaxP9999CustomerPrepMicroseconds  uint32
	MaxP99999CustomerPrepMicroseconds uint32
	MaxP100CustomerPrepMicroseconds   uint32
}

// Default returns a Config populated with reasonable defaults for a small
// local run, overridden by whatever tokens ParseTokens is given.
func Default() *Config {
	return &Config{
		AllowAnyMatch: true,

		DictionarySize: 10000,

		NumProducts:  1000,
		NumCustomers: 1000,

		ProductNameLength:        3,
		ProductDescriptionLength: 8,
		ProductReviewLength:      12,

		CustomerThreads: 4,
		ServerThreads:   2,

		CustomerPeriod:    10 * time.Millisecond,
		CustomerThinkTime: 5 * time.Millisecond,
		ServerPeriod:      10 * time.Millisecond,

		BrowsingExpiration: time.Minute,

		BrowsingHistoryQueueCount:  2,
		SalesTransactionQueueCount: 2,

		CustomerReplacementPeriod: time.Second,
		CustomerReplacementCount:  1,

		ProductReplacementPeriod: time.Second,
		ProductReplacementCount:  1,

		PhasedUpdateInterval: 100 * time.Millisecond,

		SimulationDuration: 30 * time.Second,
		WarmupDuration:     time.Second,

		KeywordSearchCount:     2,
		SelectionCriteriaCount: 2,

		BuyThreshold:          0.3,
		SaveForLaterThreshold: 0.3,

		MaxArrayLength: 0,

		RandomSeed: 1,

		ResponseTimeMeasurements: 4096,
	}
}

// ConfigError aggregates every rule ParseTokens/Validate found violated,
// so a single invalid run reports all problems at once.
type ConfigError struct {
	Violations []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %d violation(s): %s", len(e.Violations), strings.Join(e.Violations, "; "))
}

func (e *ConfigError) add(format string, args ...any) {
	e.Violations = append(e.Violations, fmt.Sprintf(format, args...))
}

func (e *ConfigError) errOrNil() error {
	if len(e.Violations) == 0 {
		return nil
	}
	return e
}

// ParseTokens accepts pre-split `-dKey=Value` strings and returns a
// Config built atop Default(), with every recognised key applied. An
// unrecognised key or malformed value is a violation, not a panic;
// ParseTokens collects every parse failure before returning.
func ParseTokens(tokens []string) (*Config, error) {
	cfg := Default()
	cerr := &ConfigError{}

	for _, tok := range tokens {
		key, value, err := splitToken(tok)
		if err != nil {
			cerr.add("%v", err)
			continue
		}
		if err := applyKey(cfg, key, value); err != nil {
			cerr.add("%v", err)
		}
	}

	return cfg, cerr.errOrNil()
}

func splitToken(tok string) (key, value string, err error) {
	if !strings.HasPrefix(tok, "-d") {
		return "", "", fmt.Errorf("malformed token %q: must start with -d", tok)
	}
	rest := tok[2:]
	eq := strings.IndexByte(rest, '=')
	if eq < 0 {
		return "", "", fmt.Errorf("malformed token %q: missing '='", tok)
	}
	return rest[:eq], rest[eq+1:], nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, errors.New("empty duration")
	}
	if strings.HasSuffix(s, "ms") {
		n, err := strconv.ParseInt(s[:len(s)-2], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("malformed duration %q: %w", s, err)
		}
		return time.Duration(n) * time.Millisecond, nil
	}
	unit := s[len(s)-1:]
	var mul time.Duration
	switch unit {
	case "s":
		mul = time.Second
	case "m":
		mul = time.Minute
	case "h":
		mul = time.Hour
	case "d":
		mul = 24 * time.Hour
	default:
		return 0, fmt.Errorf("malformed duration %q: unrecognised unit", s)
	}
	n, err := strconv.ParseInt(s[:len(s)-1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed duration %q: %w", s, err)
	}
	return time.Duration(n) * mul, nil
}

func parseUint32(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("malformed integer %q: %w", s, err)
	}
	return uint32(n), nil
}

func parseBool(s string) (bool, error) {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("malformed bool %q: %w", s, err)
	}
	return b, nil
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed float %q: %w", s, err)
	}
	return f, nil
}

// applyKey dispatches one recognised key to its typed field setter.
func applyKey(cfg *Config, key, value string) error {
	switch key {
	case "AllowAnyMatch":
		return setBool(&cfg.AllowAnyMatch, value)
	case "FastAndFurious":
		return setBool(&cfg.FastAndFurious, value)
	case "PhasedUpdates":
		return setBool(&cfg.PhasedUpdates, value)
	case "ReportCSV":
		return setBool(&cfg.ReportCSV, value)
	case "ReportIndividualThreads":
		return setBool(&cfg.ReportIndividualThreads, value)
	case "DictionarySize":
		return setUint32(&cfg.DictionarySize, value)
	case "DictionaryFile":
		cfg.DictionaryFile = value
		return nil
	case "MetricsListenAddr":
		cfg.MetricsListenAddr = value
		return nil
	case "NumProducts":
		return setUint32(&cfg.NumProducts, value)
	case "NumCustomers":
		return setUint32(&cfg.NumCustomers, value)
	case "ProductNameLength":
		return setUint32(&cfg.ProductNameLength, value)
	case "ProductDescriptionLength":
		return setUint32(&cfg.ProductDescriptionLength, value)
	case "ProductReviewLength":
		return setUint32(&cfg.ProductReviewLength, value)
	case "CustomerThreads":
		return setUint32(&cfg.CustomerThreads, value)
	case "ServerThreads":
		return setUint32(&cfg.ServerThreads, value)
	case "CustomerPeriod":
		return setDuration(&cfg.CustomerPeriod, value)
	case "CustomerThinkTime":
		return setDuration(&cfg.CustomerThinkTime, value)
	case "ServerPeriod":
		return setDuration(&cfg.ServerPeriod, value)
	case "BrowsingExpiration":
		return setDuration(&cfg.BrowsingExpiration, value)
	case "BrowsingHistoryQueueCount":
		return setUint32(&cfg.BrowsingHistoryQueueCount, value)
	case "SalesTransactionQueueCount":
		return setUint32(&cfg.SalesTransactionQueueCount, value)
	case "CustomerReplacementPeriod":
		return setDuration(&cfg.CustomerReplacementPeriod, value)
	case "CustomerReplacementCount":
		return setUint32(&cfg.CustomerReplacementCount, value)
	case "ProductReplacementPeriod":
		return setDuration(&cfg.ProductReplacementPeriod, value)
	case "ProductReplacementCount":
		return setUint32(&cfg.ProductReplacementCount, value)
	case "PhasedUpdateInterval":
		return setDuration(&cfg.PhasedUpdateInterval, value)
	case "SimulationDuration":
		return setDuration(&cfg.SimulationDuration, value)
	case "WarmupDuration":
		return setDuration(&cfg.WarmupDuration, value)
	case "KeywordSearchCount":
		return setUint32(&cfg.KeywordSearchCount, value)
	case "SelectionCriteriaCount":
		return setUint32(&cfg.SelectionCriteriaCount, value)
	case "BuyThreshold":
		return setFloat(&cfg.BuyThreshold, value)
	case "SaveForLaterThreshold":
		return setFloat(&cfg.SaveForLaterThreshold, value)
	case "MaxArrayLength":
		return setUint32(&cfg.MaxArrayLength, value)
	case "RandomSeed":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("malformed RandomSeed %q: %w", value, err)
		}
		cfg.RandomSeed = n
		return nil
	case "ResponseTimeMeasurements":
		return setUint32(&cfg.ResponseTimeMeasurements, value)
	case "MaxP50CustomerPrepMicroseconds":
		return setUint32(&cfg.MaxP50CustomerPrepMicroseconds, value)
	case "MaxP95CustomerPrepMicroseconds":
		return setUint32(&cfg.MaxP95CustomerPrepMicroseconds, value)
	case "MaxP99CustomerPrepMicroseconds":
		return setUint32(&cfg.MaxP99CustomerPrepMicroseconds, value)
	case "MaxP99.9CustomerPrepMicroseconds":
		return setUint32(&cfg.MaxP999CustomerPrepMicroseconds, value)
	case "MaxP99.99CustomerPrepMicroseconds":
		return setUint32(&cfg.MaxP9999CustomerPrepMicroseconds, value)
	case "MaxP99.999CustomerPrepMicroseconds":
		return setUint32(&cfg.MaxP99999CustomerPrepMicroseconds, value)
	case "MaxP100CustomerPrepMicroseconds":
		return setUint32(&cfg.MaxP100CustomerPrepMicroseconds, value)
	default:
		return fmt.Errorf("unrecognised key %q", key)
	}
}

func setBool(dst *bool, value string) error {
	b, err := parseBool(value)
	if err != nil {
		return err
	}
	*dst = b
	return nil
}

func setUint32(dst *uint32, value string) error {
	n, err := parseUint32(value)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, value string) error {
	d, err := parseDuration(value)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

func setFloat(dst *float64, value string) error {
	f, err := parseFloat(value)
	if err != nil {
		return err
	}
	*dst = f
	return nil
}

// Validate checks every cross-field rule in one pass, returning a
// *ConfigError aggregating every violation found (not just the first).
func (c *Config) Validate() error {
	cerr := &ConfigError{}

	if c.PhasedUpdates && c.FastAndFurious {
		cerr.add("PhasedUpdates and FastAndFurious are mutually exclusive")
	}
	if c.CustomerThinkTime >= c.CustomerPeriod {
		cerr.add("CustomerThinkTime (%s) must be less than CustomerPeriod (%s)", c.CustomerThinkTime, c.CustomerPeriod)
	}
	if c.BuyThreshold+c.SaveForLaterThreshold > 1 {
		cerr.add("BuyThreshold + SaveForLaterThreshold must be <= 1, got %v", c.BuyThreshold+c.SaveForLaterThreshold)
	}
	if c.ServerPeriod*5 >= c.CustomerReplacementPeriod {
		cerr.add("ServerPeriod*5 (%s) must be less than CustomerReplacementPeriod (%s)", c.ServerPeriod*5, c.CustomerReplacementPeriod)
	}
	if c.ServerPeriod*5 >= c.ProductReplacementPeriod {
		cerr.add("ServerPeriod*5 (%s) must be less than ProductReplacementPeriod (%s)", c.ServerPeriod*5, c.ProductReplacementPeriod)
	}
	if c.BrowsingHistoryQueueCount > c.CustomerThreads {
		cerr.add("BrowsingHistoryQueueCount (%d) must be <= CustomerThreads (%d)", c.BrowsingHistoryQueueCount, c.CustomerThreads)
	}
	if c.BrowsingHistoryQueueCount > c.ServerThreads {
		cerr.add("BrowsingHistoryQueueCount (%d) must be <= ServerThreads (%d)", c.BrowsingHistoryQueueCount, c.ServerThreads)
	}
	if c.SalesTransactionQueueCount > c.CustomerThreads {
		cerr.add("SalesTransactionQueueCount (%d) must be <= CustomerThreads (%d)", c.SalesTransactionQueueCount, c.CustomerThreads)
	}
	if c.SalesTransactionQueueCount > c.ServerThreads {
		cerr.add("SalesTransactionQueueCount (%d) must be <= ServerThreads (%d)", c.SalesTransactionQueueCount, c.ServerThreads)
	}
	if c.MaxArrayLength != 0 && c.MaxArrayLength < arraylet.MinChunk {
		cerr.add("MaxArrayLength (%d) must be 0 or >= %d", c.MaxArrayLength, arraylet.MinChunk)
	}

	// Dictionary size must support NumProducts distinct ProductNameLength-
	// word names and NumCustomers distinct two-word names; this is a
	// coarse necessary-condition check (exact distinctness depends on
	// runtime draws), not a guarantee.
	dictSize := uint64(c.DictionarySize)
	if dictSize > 0 {
		nameSpace := uint64(1)
		for i := uint32(0); i < c.ProductNameLength && nameSpace < uint64(c.NumProducts); i++ {
			nameSpace *= dictSize
		}
		if uint64(c.NumProducts) > nameSpace {
			cerr.add("DictionarySize (%d) too small to name NumProducts (%d) distinct products", dictSize, c.NumProducts)
		}
		if uint64(c.NumCustomers) > dictSize*dictSize {
			cerr.add("DictionarySize (%d) too small to generate NumCustomers (%d) distinct two-word names", dictSize, c.NumCustomers)
		}
	} else if c.DictionaryFile == "" {
		cerr.add("either DictionarySize or DictionaryFile must be set")
	}

	return cerr.errOrNil()
}
