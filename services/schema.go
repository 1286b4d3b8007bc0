package services

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v2"
)

// Logical sheet names of the four-sheet convention.
const (
	SheetTitle        = "title"
	SheetWorkOrder    = "work_order"
	SheetBillQuantity = "bill_quantity"
	SheetExtraItems   = "extra_items"
)

// Logical column names of an item sheet.
const (
	ColSerial      = "serial"
	ColDescription = "description"
	ColUnit        = "unit"
	ColQuantity    = "quantity"
	ColRate        = "rate"
	ColAmount      = "amount"
	ColRemark      = "remark"
	ColApprovalRef = "approval_ref"
)

// Config controls one ingestion pass. The zero value is not usable; start
// from DefaultConfig and overlay a YAML file if present.
type Config struct {
	Version string

	SheetAliases  map[string][]string
	ColumnAliases map[string][]string

	// MinConfidence is the smallest alias score accepted when resolving a
	// mandatory sheet or column.
	MinConfidence int

	// MatchStrategy pairs work-order and bill items: "positional" (default)
	// or "serial".
	MatchStrategy string

	PremiumPercent    float64
	DeductionSchedule []DeductionRate

	MaxUploadBytes int64

	LatexCommand string
	LatexTimeout time.Duration

	CacheTTL      time.Duration
	CacheCapacity int
}

// DeductionRate is one configured line of the deduction schedule.
type DeductionRate struct {
	Label   string  `yaml:"label"`
	Percent float64 `yaml:"percent"`
}

// DefaultConfig returns the built-in configuration matching departmental
// convention: 10% tender premium, SD 10% / IT 2% / GST 2% / LC 1%.
func DefaultConfig() Config {
	return Config{
		Version: "v1",
		SheetAliases: map[string][]string{
			SheetTitle:        {"title", "cover", "front", "project", "header"},
			SheetWorkOrder:    {"work order", "work_order", "workorder", "wo", "order"},
			SheetBillQuantity: {"bill quantity", "bill_quantity", "billquantity", "bq", "quantity", "bill"},
			SheetExtraItems:   {"extra items", "extra_items", "extraitems", "extra", "additional"},
		},
		ColumnAliases: map[string][]string{
			ColSerial:      {"s.no", "serial", "sr.no", "no", "item no", "sl.no"},
			ColDescription: {"description", "particulars", "item of work", "item", "work", "details"},
			ColUnit:        {"unit", "units", "measurement", "measure", "uom"},
			ColQuantity:    {"quantity executed", "quantity", "qty executed", "qty", "executed qty", "nos"},
			ColRate:        {"rate", "unit rate", "approved rate", "price", "cost per unit"},
			ColAmount:      {"amount", "total amount", "total", "value"},
			ColRemark:      {"remark", "remarks", "note", "comment", "justification"},
			ColApprovalRef: {"approval", "sanction", "reference"},
		},
		MinConfidence:  40,
		MatchStrategy:  "positional",
		PremiumPercent: 0.10,
		DeductionSchedule: []DeductionRate{
			{Label: "Security Deposit", Percent: 0.10},
			{Label: "Income Tax", Percent: 0.02},
			{Label: "GST", Percent: 0.02},
			{Label: "Labour Cess", Percent: 0.01},
		},
		MaxUploadBytes: 10 << 20,
		LatexCommand:   "pdflatex",
		LatexTimeout:   30 * time.Second,
		CacheTTL:       time.Hour,
		CacheCapacity:  128,
	}
}

// configOverlay mirrors Config for YAML decoding. Durations arrive as
// strings ("30s", "1h") since yaml.v2 cannot decode into time.Duration.
type configOverlay struct {
	Version string `yaml:"version"`

	SheetAliases  map[string][]string `yaml:"sheet_aliases"`
	ColumnAliases map[string][]string `yaml:"column_aliases"`

	MinConfidence int    `yaml:"min_confidence"`
	MatchStrategy string `yaml:"match_strategy"`

	PremiumPercent    float64         `yaml:"premium_percent"`
	DeductionSchedule []DeductionRate `yaml:"deduction_schedule"`

	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	LatexCommand string `yaml:"latex_command"`
	LatexTimeout string `yaml:"latex_timeout"`

	CacheTTL      string `yaml:"cache_ttl"`
	CacheCapacity int    `yaml:"cache_capacity"`
}

// LoadConfig overlays a YAML document onto the defaults. Only keys present
// in the document override; alias maps replace per logical name.
func LoadConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()

	var overlay configOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if overlay.Version != "" {
		cfg.Version = overlay.Version
	}
	for name, aliases := range overlay.SheetAliases {
		cfg.SheetAliases[name] = aliases
	}
	for name, aliases := range overlay.ColumnAliases {
		cfg.ColumnAliases[name] = aliases
	}
	if overlay.MinConfidence > 0 {
		cfg.MinConfidence = overlay.MinConfidence
	}
	if overlay.MatchStrategy != "" {
		if overlay.MatchStrategy != "positional" && overlay.MatchStrategy != "serial" {
			return Config{}, fmt.Errorf("unknown match strategy %q", overlay.MatchStrategy)
		}
		cfg.MatchStrategy = overlay.MatchStrategy
	}
	if overlay.PremiumPercent != 0 {
		cfg.PremiumPercent = overlay.PremiumPercent
	}
	if len(overlay.DeductionSchedule) > 0 {
		cfg.DeductionSchedule = overlay.DeductionSchedule
	}
	if overlay.MaxUploadBytes > 0 {
		cfg.MaxUploadBytes = overlay.MaxUploadBytes
	}
	if overlay.LatexCommand != "" {
		cfg.LatexCommand = overlay.LatexCommand
	}
	if overlay.LatexTimeout != "" {
		d, err := time.ParseDuration(overlay.LatexTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse latex_timeout: %w", err)
		}
		cfg.LatexTimeout = d
	}
	if overlay.CacheTTL != "" {
		d, err := time.ParseDuration(overlay.CacheTTL)
		if err != nil {
			return Config{}, fmt.Errorf("parse cache_ttl: %w", err)
		}
		cfg.CacheTTL = d
	}
	if overlay.CacheCapacity > 0 {
		cfg.CacheCapacity = overlay.CacheCapacity
	}

	return cfg, nil
}
