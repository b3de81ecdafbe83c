package http

import (
	"fmt"
	"net/http"
	"strings"

	"nfcescan/internal/core"
	"nfcescan/internal/log"
	"nfcescan/internal/storage"
)

const (
	maxListLimit  = 500
	minScanURLLen = 20
)

// handleListReceipts serves GET /notas. Unparsable dates are ignored.
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := ParseLimitParam(q, "limit", storage.DefaultListLimit, 1, maxListLimit)
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	f := storage.ReceiptFilter{Search: sanitizeInput(q.Get("busca")), Limit: limit}
	var filters []string
	if f.Search != "" {
		filters = append(filters, "busca: "+f.Search)
	}
	if d, ok, err := ParseDateParam(q, "data_inicio"); ok && err == nil {
		f.Since = d
		filters = append(filters, "desde: "+d.String())
	}
	if d, ok, err := ParseDateParam(q, "data_fim"); ok && err == nil {
		f.Until = d
		filters = append(filters, "até: "+d.String())
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	receipts, err := s.store.ListReceipts(ctx, f)
	if err != nil {
		writeStoreError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().JSON(core.ReceiptPage{
		Total:    len(receipts),
		Filters:  filters,
		Receipts: receipts,
	}).Write(w)
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := ParseIDParam(r, "id")
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	rec, err := s.store.GetReceipt(ctx, id)
	if err != nil {
		writeStoreError(w, r, log.OpDetail, err)
		return
	}
	NewJSONResponse().JSON(rec).Write(w)
}

func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := ParseIDParam(r, "id")
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	if err := s.store.DeleteReceipt(ctx, id); err != nil {
		writeStoreError(w, r, "delete", err)
		return
	}
	log.FromContext(ctx).InfoContext(ctx, "Receipt deleted", log.FieldReceiptID, id)
	NewJSONResponse().JSON(map[string]any{
		"message": "Nota deletada com sucesso",
		"id":      id,
	}).Write(w)
}

// handleCreateManualReceipt stores a receipt typed in by hand. Every item
// must reference an existing category.
func (s *Server) handleCreateManualReceipt(w http.ResponseWriter, r *http.Request) {
	var entry core.ManualEntry
	if err := DecodeJSONBody(w, r, &entry); err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	entry.Vendor = sanitizeInput(entry.Vendor)
	if entry.Vendor == "" {
		entry.Vendor = core.ManualVendorFallback
	}
	for i := range entry.Items {
		entry.Items[i].Name = strings.ToUpper(sanitizeInput(entry.Items[i].Name))
	}
	if err := s.validate.Struct(entry); err != nil {
		UnprocessableEntityError(validationMessage(err)).Write(w)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		writeStoreError(w, r, log.OpManual, err)
		return
	}

	nr := storage.NewReceipt{Vendor: entry.Vendor, IssueDate: entry.IssueDate}
	if nr.IssueDate.IsZero() {
		nr.IssueDate = s.today()
	}
	for i, it := range entry.Items {
		if err := it.Value.Validate(); err != nil {
			UnprocessableEntityError(fmt.Sprintf("itens[%d].valor deve ser positivo", i)).Write(w)
			return
		}
		if _, ok := core.FindCategory(cats, it.CategoryID); !ok {
			UnprocessableEntityError(fmt.Sprintf("itens[%d].categoria_id %d inexistente", i, it.CategoryID)).Write(w)
			return
		}
		nr.Items = append(nr.Items, storage.NewItem{
			Name:       it.Name,
			Quantity:   it.Quantity,
			UnitValue:  it.Value,
			CategoryID: it.CategoryID,
		})
	}

	rec, err := s.store.CreateReceipt(ctx, nr)
	if err != nil {
		writeStoreError(w, r, log.OpManual, err)
		return
	}
	NewJSONResponse().JSON(core.ManualResult{
		Success: true,
		ID:      rec.ID,
		Items:   len(rec.Items),
		Total:   rec.Total,
	}).Write(w)
}

// handleScanURL answers POST /scan/url. Receipts already stored under the
// URL come back flagged as cached; fetching new ones from the tax
// authority site is not available here, so those fail as upstream errors.
func (s *Server) handleScanURL(w http.ResponseWriter, r *http.Request) {
	rawURL := strings.TrimSpace(r.URL.Query().Get("url"))
	if len(rawURL) < minScanURLLen {
		DetailErrorResponse(http.StatusBadRequest, "invalid_url", "URL inválida").Write(w)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	rec, found, err := s.store.ReceiptBySource(ctx, rawURL)
	if err != nil {
		writeStoreError(w, r, log.OpScan, err)
		return
	}
	if found {
		rec.Cached = true
		log.FromContext(ctx).InfoContext(ctx, "Scan served from store",
			log.FieldOperation, log.OpScan,
			log.FieldReceiptID, rec.ID,
			log.FieldCached, true)
		NewJSONResponse().JSON(rec).Write(w)
		return
	}

	log.FromContext(ctx).WarnContext(ctx, "Scan of unknown receipt refused",
		log.FieldOperation, log.OpScan,
		log.FieldErrorType, log.ErrorTypeUpstream)
	DetailErrorResponse(http.StatusInternalServerError, "fetch_failed",
		"Erro ao acessar NFC-e: leitura remota indisponível neste servidor").Write(w)
}
