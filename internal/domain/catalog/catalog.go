// Package catalog models the immutable classification hierarchy that drives
// security-target selections and evaluation scoring: product types own
// weighted classes, classes own subclasses, and evaluation help is attached
// to either level.
package catalog

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/itrc/evaluation-workflow/internal/domain/errors"
)

// namespace seeds deterministic catalog identifiers.
var namespace = uuid.MustParse("6f1c9a52-3d0e-4b7a-9c61-2f8d0c4e7a10")

// ProductTypeID derives the stable identifier of a product type code.
func ProductTypeID(code string) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte("product_type:"+code))
}

// ClassID derives the stable identifier of a class code.
func ClassID(code string) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte("class:"+code))
}

// SubclassID derives the stable identifier of a subclass code.
func SubclassID(code string) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte("subclass:"+code))
}

var defaultWeight = decimal.NewFromInt(1)

type ProductType struct {
	ID                uuid.UUID `json:"id"`
	Code              string    `json:"code"`
	NameEn            string    `json:"name_en"`
	NameFa            string    `json:"name_fa"`
	DescriptionEn     string    `json:"description_en,omitempty"`
	DescriptionFa     string    `json:"description_fa,omitempty"`
	ProtectionProfile string    `json:"protection_profile"`
	EstimatedDays     int       `json:"estimated_days"`
	RequiredDocuments []string  `json:"required_documents"`
	Active            bool      `json:"active"`
}

type Class struct {
	ID            uuid.UUID       `json:"id"`
	ProductTypeID uuid.UUID       `json:"product_type_id"`
	Code          string          `json:"code"`
	NameEn        string          `json:"name_en"`
	NameFa        string          `json:"name_fa"`
	DescriptionEn string          `json:"description_en,omitempty"`
	DescriptionFa string          `json:"description_fa,omitempty"`
	Weight        decimal.Decimal `json:"weight"`
	DisplayOrder  int             `json:"display_order"`
	Subclasses    []Subclass      `json:"subclasses"`
}

type Subclass struct {
	ID            uuid.UUID `json:"id"`
	ClassID       uuid.UUID `json:"class_id"`
	Code          string    `json:"code"`
	NameEn        string    `json:"name_en"`
	NameFa        string    `json:"name_fa"`
	DescriptionEn string    `json:"description_en,omitempty"`
	DescriptionFa string    `json:"description_fa,omitempty"`
	DisplayOrder  int       `json:"display_order"`
}

// Help is guidance shown to evaluators for a class or one of its subclasses.
type Help struct {
	ClassID    uuid.UUID         `json:"class_id"`
	SubclassID *uuid.UUID        `json:"subclass_id,omitempty"`
	TextEn     string            `json:"help_text_en"`
	TextFa     string            `json:"help_text_fa"`
	Criteria   map[string]string `json:"evaluation_criteria,omitempty"`
	Examples   []string          `json:"examples,omitempty"`
}

// Catalog is read-only after construction. Accessors return copies.
type Catalog struct {
	productTypes []ProductType
	typesByID    map[uuid.UUID]int
	classes      []Class
	classesByID  map[uuid.UUID]int
	classByCode  map[string]int
	subclasses   map[uuid.UUID]Subclass
	help         []Help
}

// New validates and indexes the given reference data.
func New(types []ProductType, classes []Class, help []Help) (*Catalog, error) {
	c := &Catalog{
		typesByID:   make(map[uuid.UUID]int, len(types)),
		classesByID: make(map[uuid.UUID]int, len(classes)),
		classByCode: make(map[string]int, len(classes)),
		subclasses:  make(map[uuid.UUID]Subclass),
	}

	for _, pt := range types {
		if pt.ID == uuid.Nil || pt.Code == "" {
			return nil, fmt.Errorf("product type requires id and code")
		}
		if _, dup := c.typesByID[pt.ID]; dup {
			return nil, fmt.Errorf("duplicate product type %s", pt.Code)
		}
		if pt.EstimatedDays < 0 {
			return nil, fmt.Errorf("product type %s: estimated days cannot be negative", pt.Code)
		}
		pt.RequiredDocuments = append([]string(nil), pt.RequiredDocuments...)
		c.typesByID[pt.ID] = len(c.productTypes)
		c.productTypes = append(c.productTypes, pt)
	}

	sorted := make([]Class, 0, len(classes))
	for _, cl := range classes {
		if _, ok := c.typesByID[cl.ProductTypeID]; !ok {
			return nil, fmt.Errorf("class %s references unknown product type", cl.Code)
		}
		if cl.Weight.IsNegative() {
			return nil, fmt.Errorf("class %s: weight cannot be negative", cl.Code)
		}
		if cl.Weight.IsZero() {
			cl.Weight = defaultWeight
		}
		subs := append([]Subclass(nil), cl.Subclasses...)
		sort.SliceStable(subs, func(i, j int) bool {
			if subs[i].DisplayOrder != subs[j].DisplayOrder {
				return subs[i].DisplayOrder < subs[j].DisplayOrder
			}
			return subs[i].Code < subs[j].Code
		})
		for i := range subs {
			subs[i].ClassID = cl.ID
			if _, dup := c.subclasses[subs[i].ID]; dup {
				return nil, fmt.Errorf("duplicate subclass %s", subs[i].Code)
			}
			c.subclasses[subs[i].ID] = subs[i]
		}
		cl.Subclasses = subs
		sorted = append(sorted, cl)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].DisplayOrder != sorted[j].DisplayOrder {
			return sorted[i].DisplayOrder < sorted[j].DisplayOrder
		}
		return sorted[i].Code < sorted[j].Code
	})
	for i, cl := range sorted {
		if _, dup := c.classesByID[cl.ID]; dup {
			return nil, fmt.Errorf("duplicate class %s", cl.Code)
		}
		c.classesByID[cl.ID] = i
		c.classByCode[cl.Code] = i
	}
	c.classes = sorted

	for _, h := range help {
		if _, ok := c.classesByID[h.ClassID]; !ok {
			return nil, fmt.Errorf("help entry references unknown class %s", h.ClassID)
		}
		if h.SubclassID != nil {
			sub, ok := c.subclasses[*h.SubclassID]
			if !ok || sub.ClassID != h.ClassID {
				return nil, fmt.Errorf("help entry references unknown subclass %s", h.SubclassID)
			}
		}
		c.help = append(c.help, h)
	}

	return c, nil
}

// ProductTypes returns all product types in load order.
func (c *Catalog) ProductTypes() []ProductType {
	out := make([]ProductType, len(c.productTypes))
	for i, pt := range c.productTypes {
		out[i] = copyProductType(pt)
	}
	return out
}

func (c *Catalog) ProductType(id uuid.UUID) (ProductType, error) {
	i, ok := c.typesByID[id]
	if !ok {
		return ProductType{}, errors.NewNotFoundError("product type").
			WithDetails(map[string]interface{}{"product_type_id": id})
	}
	return copyProductType(c.productTypes[i]), nil
}

// Classes returns the ordered classes of a product type with nested ordered subclasses.
func (c *Catalog) Classes(productTypeID uuid.UUID) ([]Class, error) {
	if _, ok := c.typesByID[productTypeID]; !ok {
		return nil, errors.NewNotFoundError("product type").
			WithDetails(map[string]interface{}{"product_type_id": productTypeID})
	}
	out := make([]Class, 0)
	for _, cl := range c.classes {
		if cl.ProductTypeID == productTypeID {
			out = append(out, copyClass(cl))
		}
	}
	return out, nil
}

func (c *Catalog) Class(id uuid.UUID) (Class, error) {
	i, ok := c.classesByID[id]
	if !ok {
		return Class{}, errors.NewNotFoundError("product class").
			WithDetails(map[string]interface{}{"class_id": id})
	}
	return copyClass(c.classes[i]), nil
}

func (c *Catalog) ClassByCode(code string) (Class, error) {
	i, ok := c.classByCode[code]
	if !ok {
		return Class{}, errors.NewNotFoundError("product class").
			WithDetails(map[string]interface{}{"code": code})
	}
	return copyClass(c.classes[i]), nil
}

func (c *Catalog) Subclass(id uuid.UUID) (Subclass, error) {
	sub, ok := c.subclasses[id]
	if !ok {
		return Subclass{}, errors.NewNotFoundError("product subclass").
			WithDetails(map[string]interface{}{"subclass_id": id})
	}
	return sub, nil
}

// Weight returns the scoring weight of a class.
func (c *Catalog) Weight(classID uuid.UUID) (decimal.Decimal, bool) {
	i, ok := c.classesByID[classID]
	if !ok {
		return decimal.Zero, false
	}
	return c.classes[i].Weight, true
}

// Help looks up guidance for a class (subclassID nil) or a specific subclass.
func (c *Catalog) Help(classID uuid.UUID, subclassID *uuid.UUID) (Help, error) {
	for _, h := range c.help {
		if h.ClassID != classID {
			continue
		}
		if subclassID == nil && h.SubclassID == nil {
			return copyHelp(h), nil
		}
		if subclassID != nil && h.SubclassID != nil && *subclassID == *h.SubclassID {
			return copyHelp(h), nil
		}
	}
	return Help{}, errors.NewNotFoundError("evaluation help")
}

// ValidateSelection checks that a class/subclass pair is selectable for a product type.
func (c *Catalog) ValidateSelection(productTypeID, classID uuid.UUID, subclassID *uuid.UUID) error {
	i, ok := c.classesByID[classID]
	if !ok {
		return errors.NewValidationError("UNKNOWN_CLASS", "product class does not exist").
			WithDetails(map[string]interface{}{"class_id": classID})
	}
	if c.classes[i].ProductTypeID != productTypeID {
		return errors.NewValidationError("CLASS_NOT_IN_PRODUCT_TYPE",
			fmt.Sprintf("class %s does not belong to the application's product type", c.classes[i].Code))
	}
	if subclassID == nil {
		return nil
	}
	sub, ok := c.subclasses[*subclassID]
	if !ok {
		return errors.NewValidationError("UNKNOWN_SUBCLASS", "product subclass does not exist").
			WithDetails(map[string]interface{}{"subclass_id": *subclassID})
	}
	if sub.ClassID != classID {
		return errors.NewValidationError("SUBCLASS_NOT_IN_CLASS",
			fmt.Sprintf("subclass %s does not belong to class %s", sub.Code, c.classes[i].Code))
	}
	return nil
}

func copyProductType(pt ProductType) ProductType {
	pt.RequiredDocuments = append([]string(nil), pt.RequiredDocuments...)
	return pt
}

func copyClass(cl Class) Class {
	cl.Subclasses = append([]Subclass(nil), cl.Subclasses...)
	return cl
}

func copyHelp(h Help) Help {
	if h.Criteria != nil {
		criteria := make(map[string]string, len(h.Criteria))
		for k, v := range h.Criteria {
			criteria[k] = v
		}
		h.Criteria = criteria
	}
	h.Examples = append([]string(nil), h.Examples...)
	return h
}
