package http

import (
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"

	"nfcescan/internal/core"
	"nfcescan/internal/log"
	"nfcescan/internal/storage"
)

const (
	minSearchTerm  = 2
	maxSearchLimit = 200
	maxDrillLimit  = 500
)

// handleSearchProducts serves GET /itens/busca over the whole history.
func (s *Server) handleSearchProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	term := sanitizeInput(q.Get("q"))
	if utf8.RuneCountInString(term) < minSearchTerm {
		UnprocessableEntityError(fmt.Sprintf("q deve ter no mínimo %d caracteres", minSearchTerm)).Write(w)
		return
	}
	limit, err := ParseLimitParam(q, "limit", storage.DefaultSearchLimit, 1, maxSearchLimit)
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	products, err := s.store.SearchProducts(ctx, term, limit)
	if err != nil {
		writeStoreError(w, r, log.OpSearch, err)
		return
	}
	NewJSONResponse().JSON(core.ProductPage{
		Term:     term,
		Total:    len(products),
		Products: products,
	}).Write(w)
}

func (s *Server) handleSetItemCategory(w http.ResponseWriter, r *http.Request) {
	itemID, err := ParseIDParam(r, "id")
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	categoryID, err := ParseRequiredInt(r.URL.Query(), "categoria_id")
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	cat, err := s.store.SetItemCategory(ctx, itemID, categoryID)
	if err != nil {
		writeStoreError(w, r, log.OpRecategorize, err)
		return
	}
	NewJSONResponse().JSON(core.ItemCategoryResult{
		Message:  "Categoria atualizada com sucesso",
		ItemID:   itemID,
		Category: cat,
	}).Write(w)
}

// handleRenameVendor renames a vendor on every receipt that carries it.
func (s *Server) handleRenameVendor(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	current := sanitizeInput(q.Get("nome_atual"))
	renamed := sanitizeInput(q.Get("novo_nome"))
	if current == "" || renamed == "" {
		UnprocessableEntityError("nome_atual e novo_nome são obrigatórios").Write(w)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	n, err := s.store.RenameVendor(ctx, current, renamed)
	if errors.Is(err, storage.ErrVendorNotFound) {
		NotFoundError(fmt.Sprintf("Nenhuma nota encontrada com o estabelecimento '%s'", current)).Write(w)
		return
	}
	if err != nil {
		writeStoreError(w, r, log.OpRename, err)
		return
	}
	NewJSONResponse().JSON(core.RenameResult{
		Message:  "Estabelecimento renomeado com sucesso",
		Previous: current,
		New:      renamed,
		Updated:  n,
	}).Write(w)
}

// handleItemsByCategory serves the category drill-down. Dates are optional
// and bound the range as [data_inicio, data_fim).
func (s *Server) handleItemsByCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, err := ParseIDParam(r, "id")
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	q := r.URL.Query()
	rng, err := ParseOptionalRange(q)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	limit, err := ParseLimitParam(q, "limit", storage.DefaultDrillLimit, 1, maxDrillLimit)
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	b, err := s.store.ItemsByCategory(ctx, categoryID, rng, limit)
	if err != nil {
		writeStoreError(w, r, log.OpDrillDown, err)
		return
	}
	NewJSONResponse().JSON(b).Write(w)
}

func (s *Server) handleItemsByVendor(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	vendor := sanitizeInput(q.Get("estabelecimento"))
	if vendor == "" {
		UnprocessableEntityError("estabelecimento é obrigatório").Write(w)
		return
	}
	rng, err := ParseOptionalRange(q)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	limit, err := ParseLimitParam(q, "limit", storage.DefaultDrillLimit, 1, maxDrillLimit)
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	b, err := s.store.ItemsByVendor(ctx, vendor, rng, limit)
	if err != nil {
		writeStoreError(w, r, log.OpDrillDown, err)
		return
	}
	NewJSONResponse().JSON(b).Write(w)
}
