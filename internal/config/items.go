package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Item is one monitored tradable item.
type Item struct {
	ID        int64    `yaml:"id"`
	Name      string   `yaml:"name"`
	Platforms []string `yaml:"platforms"`
	Enabled   bool     `yaml:"enabled"`
	// NotifyThreshold overrides monitor.price_threshold for this item.
	NotifyThreshold *float64 `yaml:"notify_threshold,omitempty"`
}

// Threshold resolves the effective trigger ratio for the item.
func (i Item) Threshold(global float64) decimal.Decimal {
	if i.NotifyThreshold != nil {
		return decimal.NewFromFloat(*i.NotifyThreshold)
	}
	return decimal.NewFromFloat(global)
}

type itemsFile struct {
	Items []Item `yaml:"items"`
}

// LoadItems reads the monitored item list from its YAML file.
func LoadItems(path string) ([]Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read items file: %w", err)
	}

	var file itemsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse items file: %w", err)
	}

	for idx, item := range file.Items {
		if item.ID <= 0 {
			return nil, fmt.Errorf("items[%d]: id must be positive", idx)
		}
		if item.Name == "" {
			return nil, fmt.Errorf("items[%d]: name is required", idx)
		}
		if len(item.Platforms) == 0 {
			return nil, fmt.Errorf("items[%d] (%s): at least one platform is required", idx, item.Name)
		}
		if item.NotifyThreshold != nil && *item.NotifyThreshold <= 0 {
			return nil, fmt.Errorf("items[%d] (%s): notify_threshold must be positive", idx, item.Name)
		}
	}

	return file.Items, nil
}

// EnabledItems filters the list down to items that should be monitored.
func EnabledItems(items []Item) []Item {
	enabled := make([]Item, 0, len(items))
	for _, item := range items {
		if item.Enabled {
			enabled = append(enabled, item)
		}
	}
	return enabled
}
