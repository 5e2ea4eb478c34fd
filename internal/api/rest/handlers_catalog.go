package rest

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/itrc/evaluation-workflow/internal/domain/catalog"
)

// CatalogReader is the read-only catalog surface.
type CatalogReader interface {
	ProductTypes() []catalog.ProductType
	Classes(productTypeID uuid.UUID) ([]catalog.Class, error)
	Help(classID uuid.UUID, subclassID *uuid.UUID) (catalog.Help, error)
}

type CatalogHandler struct {
	*BaseHandler
	catalog CatalogReader
}

func NewCatalogHandler(base *BaseHandler, c CatalogReader) *CatalogHandler {
	return &CatalogHandler{BaseHandler: base, catalog: c}
}

func (h *CatalogHandler) listProductTypes(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, r, http.StatusOK, h.catalog.ProductTypes())
}

func (h *CatalogHandler) listClasses(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	classes, err := h.catalog.Classes(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, classes)
}

func (h *CatalogHandler) getHelp(w http.ResponseWriter, r *http.Request) {
	classID, err := pathUUID(r, "classID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	subclassID, err := queryUUID(r, "subclass_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	help, err := h.catalog.Help(classID, subclassID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, help)
}
