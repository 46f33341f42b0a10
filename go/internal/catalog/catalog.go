// Package catalog loads auction listings from YAML and searches them.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/carauction/go/internal/models"
)

//go:embed seed.yaml
var defaultSeed []byte

type seedFile struct {
	Auctions []seedAuction `yaml:"auctions"`
}

type seedAuction struct {
	models.Auction `yaml:",inline"`
	Status         string `yaml:"status"`
}

// Load reads listings from path, or the built-in seed when path is empty.
func Load(path string) ([]models.CreateAuctionParams, error) {
	if path == "" {
		return Parse(defaultSeed)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a seed document. The status field only distinguishes
// upcoming listings; open statuses are re-derived from remaining time.
func Parse(data []byte) ([]models.CreateAuctionParams, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed: %w", err)
	}

	params := make([]models.CreateAuctionParams, 0, len(f.Auctions))
	for i, sa := range f.Auctions {
		var upcoming bool
		switch strings.ToLower(sa.Status) {
		case "upcoming":
			upcoming = true
		case "", "active", "ending":
		default:
			return nil, fmt.Errorf("seed auction %d (%s): unknown status %q", i, sa.ID, sa.Status)
		}
		params = append(params, models.CreateAuctionParams{Auction: sa.Auction, Upcoming: upcoming})
	}
	return params, nil
}

// Query narrows a listing. Zero values match everything.
type Query struct {
	Text  string
	Brand string
	Year  int
}

// ParseYear accepts an empty string as "any year".
func ParseYear(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	y, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid year %q", s)
	}
	return y, nil
}

// Filter returns the auctions matching q, keeping their order. Text and
// brand are case-insensitive substring matches on the title.
func Filter(auctions []models.Auction, q Query) []models.Auction {
	text := strings.ToLower(strings.TrimSpace(q.Text))
	brand := strings.ToLower(strings.TrimSpace(q.Brand))

	out := make([]models.Auction, 0, len(auctions))
	for _, a := range auctions {
		title := strings.ToLower(a.Title)
		if text != "" && !strings.Contains(title, text) {
			continue
		}
		if brand != "" && !strings.Contains(title, brand) {
			continue
		}
		if q.Year != 0 && a.Year != q.Year {
			continue
		}
		out = append(out, a)
	}
	return out
}
