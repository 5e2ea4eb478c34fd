// Package catalog loads the classification catalog from its YAML seed.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/itrc/evaluation-workflow/internal/domain/catalog"
)

//go:embed seed.yaml
var embeddedSeed []byte

type seedFile struct {
	ProductTypes []seedProductType `yaml:"product_types"`
}

type seedProductType struct {
	Code              string      `yaml:"code"`
	NameEn            string      `yaml:"name_en"`
	NameFa            string      `yaml:"name_fa"`
	DescriptionEn     string      `yaml:"description_en"`
	DescriptionFa     string      `yaml:"description_fa"`
	ProtectionProfile string      `yaml:"protection_profile"`
	EstimatedDays     int         `yaml:"estimated_days"`
	RequiredDocuments []string    `yaml:"required_documents"`
	Inactive          bool        `yaml:"inactive"`
	Classes           []seedClass `yaml:"classes"`
}

type seedClass struct {
	Code          string         `yaml:"code"`
	NameEn        string         `yaml:"name_en"`
	NameFa        string         `yaml:"name_fa"`
	DescriptionEn string         `yaml:"description_en"`
	DescriptionFa string         `yaml:"description_fa"`
	Weight        string         `yaml:"weight"`
	Order         int            `yaml:"order"`
	Subclasses    []seedSubclass `yaml:"subclasses"`
	Help          *seedHelp      `yaml:"help"`
}

type seedSubclass struct {
	Code          string    `yaml:"code"`
	NameEn        string    `yaml:"name_en"`
	NameFa        string    `yaml:"name_fa"`
	DescriptionEn string    `yaml:"description_en"`
	DescriptionFa string    `yaml:"description_fa"`
	Order         int       `yaml:"order"`
	Help          *seedHelp `yaml:"help"`
}

type seedHelp struct {
	TextEn   string            `yaml:"text_en"`
	TextFa   string            `yaml:"text_fa"`
	Criteria map[string]string `yaml:"criteria"`
	Examples []string          `yaml:"examples"`
}

// Load builds the catalog from the YAML file at path, or from the embedded
// seed when path is empty.
func Load(path string) (*catalog.Catalog, error) {
	data := embeddedSeed
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("reading catalog seed %s: %w", path, err)
		}
	}
	return Parse(data)
}

// Default returns the catalog of the embedded seed.
func Default() (*catalog.Catalog, error) {
	return Parse(embeddedSeed)
}

// Parse builds a catalog from YAML seed data.
func Parse(data []byte) (*catalog.Catalog, error) {
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parsing catalog seed: %w", err)
	}

	var (
		types   []catalog.ProductType
		classes []catalog.Class
		help    []catalog.Help
	)
	for _, spt := range seed.ProductTypes {
		pt := catalog.ProductType{
			ID:                catalog.ProductTypeID(spt.Code),
			Code:              spt.Code,
			NameEn:            spt.NameEn,
			NameFa:            spt.NameFa,
			DescriptionEn:     spt.DescriptionEn,
			DescriptionFa:     spt.DescriptionFa,
			ProtectionProfile: spt.ProtectionProfile,
			EstimatedDays:     spt.EstimatedDays,
			RequiredDocuments: spt.RequiredDocuments,
			Active:            !spt.Inactive,
		}
		types = append(types, pt)

		for _, sc := range spt.Classes {
			weight := decimal.Zero
			if sc.Weight != "" {
				w, err := decimal.NewFromString(sc.Weight)
				if err != nil {
					return nil, fmt.Errorf("class %s: invalid weight %q: %w", sc.Code, sc.Weight, err)
				}
				weight = w
			}
			cl := catalog.Class{
				ID:            catalog.ClassID(sc.Code),
				ProductTypeID: pt.ID,
				Code:          sc.Code,
				NameEn:        sc.NameEn,
				NameFa:        sc.NameFa,
				DescriptionEn: sc.DescriptionEn,
				DescriptionFa: sc.DescriptionFa,
				Weight:        weight,
				DisplayOrder:  sc.Order,
			}
			if sc.Help != nil {
				help = append(help, sc.Help.toHelp(cl.ID, nil))
			}
			for _, ss := range sc.Subclasses {
				sub := catalog.Subclass{
					ID:            catalog.SubclassID(ss.Code),
					ClassID:       cl.ID,
					Code:          ss.Code,
					NameEn:        ss.NameEn,
					NameFa:        ss.NameFa,
					DescriptionEn: ss.DescriptionEn,
					DescriptionFa: ss.DescriptionFa,
					DisplayOrder:  ss.Order,
				}
				if sub.DescriptionEn == "" {
					sub.DescriptionEn = "Detailed evaluation of " + strings.ToLower(ss.NameEn)
				}
				if ss.Help != nil {
					id := sub.ID
					help = append(help, ss.Help.toHelp(cl.ID, &id))
				}
				cl.Subclasses = append(cl.Subclasses, sub)
			}
			classes = append(classes, cl)
		}
	}

	return catalog.New(types, classes, help)
}

func (h *seedHelp) toHelp(classID uuid.UUID, subclassID *uuid.UUID) catalog.Help {
	return catalog.Help{
		ClassID:    classID,
		SubclassID: subclassID,
		TextEn:     h.TextEn,
		TextFa:     h.TextFa,
		Criteria:   h.Criteria,
		Examples:   h.Examples,
	}
}
