package http

import (
	"errors"
	"fmt"
	"net/http"

	"nfcescan/internal/core"
	"nfcescan/internal/log"
	"nfcescan/internal/storage"
)

// categoryForm is the query of POST /categorias.
type categoryForm struct {
	Name  string `validate:"min=2,max=50"`
	Icon  string `validate:"min=1,max=10"`
	Color string `validate:"rgbhex"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.withTimeout(r)
	defer cancel()

	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		writeStoreError(w, r, "list_categories", err)
		return
	}
	NewJSONResponse().JSON(core.CategoryList{Total: len(cats), Categories: cats}).Write(w)
}

// handleCreateCategory creates a category from the nome, icone and cor
// query parameters. A name already in use is a 400.
func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	form := categoryForm{
		Name:  sanitizeInput(q.Get("nome")),
		Icon:  sanitizeInput(q.Get("icone")),
		Color: sanitizeInput(q.Get("cor")),
	}
	if form.Color == "" {
		form.Color = core.DefaultCategoryColor
	}
	if err := s.validate.Struct(form); err != nil {
		UnprocessableEntityError(validationMessage(err)).Write(w)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	cat, err := s.store.CreateCategory(ctx, core.Category{Name: form.Name, Icon: form.Icon, Color: form.Color})
	if errors.Is(err, storage.ErrCategoryExists) {
		BadRequestError(fmt.Sprintf("Categoria '%s' já existe", form.Name)).Write(w)
		return
	}
	if err != nil {
		writeStoreError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().JSON(cat).Write(w)
}
