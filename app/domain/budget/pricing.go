package budget

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
	"solara.ai/insights-gateway/config/environment_variables"
)

var unitsPerMillion = decimal.NewFromInt(1_000_000)

// ModelPrice is USD per million units.
type ModelPrice struct {
	InputPerMillion  decimal.Decimal
	OutputPerMillion decimal.Decimal
}

// PricingTable is versioned so usage rows recorded under an older table
// stay explainable after prices change.
type PricingTable struct {
	Version string
	Models  map[string]ModelPrice
	Default ModelPrice
}

type pricingFile struct {
	Version string                      `yaml:"version"`
	Default pricingFileEntry            `yaml:"default"`
	Models  map[string]pricingFileEntry `yaml:"models"`
}

type pricingFileEntry struct {
	Input  string `yaml:"input_per_million"`
	Output string `yaml:"output_per_million"`
}

func DefaultPricingTable() *PricingTable {
	return &PricingTable{
		Version: "2025-01",
		Models: map[string]ModelPrice{
			"gpt-4o-mini":  price("0.15", "0.60"),
			"gpt-4o":       price("2.50", "10.00"),
			"gpt-4.1-mini": price("0.40", "1.60"),
			"gpt-4.1":      price("2.00", "8.00"),
		},
		Default: price("2.50", "10.00"),
	}
}

func price(in, out string) ModelPrice {
	return ModelPrice{
		InputPerMillion:  decimal.RequireFromString(in),
		OutputPerMillion: decimal.RequireFromString(out),
	}
}

// LoadPricingTable reads a YAML price table. An empty path returns the
// built-in table.
func LoadPricingTable(path string) (*PricingTable, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultPricingTable(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pricing table: %w", err)
	}
	return ParsePricingTable(raw)
}

func ParsePricingTable(raw []byte) (*PricingTable, error) {
	var file pricingFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse pricing table: %w", err)
	}
	if strings.TrimSpace(file.Version) == "" {
		return nil, errors.New("pricing table: version is required")
	}
	table := &PricingTable{Version: file.Version, Models: make(map[string]ModelPrice, len(file.Models))}

	def, err := file.Default.toPrice()
	if err != nil {
		return nil, fmt.Errorf("pricing table: default: %w", err)
	}
	table.Default = def
	for model, entry := range file.Models {
		p, err := entry.toPrice()
		if err != nil {
			return nil, fmt.Errorf("pricing table: %s: %w", model, err)
		}
		table.Models[strings.ToLower(model)] = p
	}
	return table, nil
}

func (e pricingFileEntry) toPrice() (ModelPrice, error) {
	in, err := decimal.NewFromString(strings.TrimSpace(e.Input))
	if err != nil {
		return ModelPrice{}, fmt.Errorf("input_per_million: %w", err)
	}
	out, err := decimal.NewFromString(strings.TrimSpace(e.Output))
	if err != nil {
		return ModelPrice{}, fmt.Errorf("output_per_million: %w", err)
	}
	if in.IsNegative() || out.IsNegative() {
		return ModelPrice{}, errors.New("prices must not be negative")
	}
	return ModelPrice{InputPerMillion: in, OutputPerMillion: out}, nil
}

// Lookup matches the model exactly, then by longest prefix
// ("gpt-4o-mini-2024-07-18" -> "gpt-4o-mini"), then falls back to Default.
func (t *PricingTable) Lookup(model string) ModelPrice {
	model = strings.ToLower(strings.TrimSpace(model))
	if p, ok := t.Models[model]; ok {
		return p
	}
	names := make([]string, 0, len(t.Models))
	for name := range t.Models {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	for _, name := range names {
		if strings.HasPrefix(model, name) {
			return t.Models[name]
		}
	}
	return t.Default
}

// Estimate prices measured usage in USD.
func (t *PricingTable) Estimate(model string, inputUnits, outputUnits int64) decimal.Decimal {
	p := t.Lookup(model)
	in := decimal.NewFromInt(inputUnits).Mul(p.InputPerMillion)
	out := decimal.NewFromInt(outputUnits).Mul(p.OutputPerMillion)
	return in.Add(out).Div(unitsPerMillion)
}

// NewPricingTableFromEnv loads PRICING_TABLE_PATH, or the built-in table
// when it is unset.
func NewPricingTableFromEnv() (*PricingTable, error) {
	return LoadPricingTable(environment_variables.EnvironmentVariables.PRICING_TABLE_PATH)
}
