package core

// Response envelopes of the remote data service.

type ReceiptPage struct {
	Total    int       `json:"total"`
	Filters  []string  `json:"filtros"`
	Receipts []Receipt `json:"notas"`
}

type ProductPage struct {
	Term     string    `json:"termo"`
	Total    int       `json:"total"`
	Products []Product `json:"itens"`
}

type CategoryList struct {
	Total      int        `json:"total"`
	Categories []Category `json:"categorias"`
}

type ItemCategoryResult struct {
	Message  string   `json:"message"`
	ItemID   int64    `json:"item_id"`
	Category Category `json:"nova_categoria"`
}

type RenameResult struct {
	Message  string `json:"message"`
	Previous string `json:"nome_anterior"`
	New      string `json:"novo_nome"`
	Updated  int    `json:"notas_atualizadas"`
}

type Health struct {
	Status  string            `json:"status"`
	Modules map[string]string `json:"modules,omitempty"`
}

// APIError is the error body: detail is either a plain string or an
// object with error and message keys.
type APIError struct {
	Detail any `json:"detail"`
}

// ErrorDetail is the structured form of APIError.Detail.
type ErrorDetail struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
