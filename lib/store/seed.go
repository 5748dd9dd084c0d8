package store

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/fiffu/tickerwatch/lib/models"
	"gopkg.in/yaml.v3"
)

//go:embed companies.yaml
var companiesYAML []byte

type companyList struct {
	Companies models.Companies `yaml:"companies"`
}

// DefaultCompanies returns the embedded company seed list.
func DefaultCompanies() (models.Companies, error) {
	var list companyList
	if err := yaml.Unmarshal(companiesYAML, &list); err != nil {
		return nil, fmt.Errorf("parsing embedded companies: %w", err)
	}
	return list.Companies, nil
}

// Seed inserts the default companies that are not yet stored.
func Seed(ctx context.Context, repo Companies) (int, error) {
	companies, err := DefaultCompanies()
	if err != nil {
		return 0, err
	}
	return repo.InsertCompanies(ctx, companies)
}

// SeedIfEmpty seeds only when no companies are stored yet.
func SeedIfEmpty(ctx context.Context, repo Companies) (int, error) {
	existing, err := repo.ListCompanies(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}
	return Seed(ctx, repo)
}
