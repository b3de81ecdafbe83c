package coordinator

import (
	"errors"

	"nfcescan/internal/core"
	"nfcescan/internal/log"
	"nfcescan/internal/remote"
)

type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notice is a user-facing message produced by an operation.
type Notice struct {
	Level   Level
	Op      string
	Message string
	Err     error
}

var validationMessages = []struct {
	err error
	msg string
}{
	{core.ErrEmptyName, "Informe o nome"},
	{core.ErrEmptyIcon, "Preencha o nome e o emoji"},
	{core.ErrInvalidAmount, "Informe um valor válido"},
	{core.ErrNoCategory, "Selecione uma categoria"},
	{core.ErrEmptyDraft, "Adicione pelo menos um item"},
	{ErrNotURL, "Isso não parece um link de nota fiscal"},
	{ErrScanLocked, "Aguarde, uma leitura já está em andamento"},
}

var genericMessages = map[string]string{
	log.OpList:         "Não foi possível carregar as notas",
	log.OpSearch:       "Não foi possível buscar produtos",
	log.OpDetail:       "Não foi possível abrir a nota",
	log.OpRecategorize: "Não foi possível atualizar",
	log.OpCreate:       "Não foi possível criar",
	log.OpRename:       "Não foi possível renomear o fornecedor",
	log.OpDashboard:    "Não foi possível carregar o painel",
	log.OpDrillDown:    "Não foi possível carregar os itens",
	log.OpManual:       "Falha ao salvar lançamento",
	log.OpScan:         "Não foi possível ler a nota",
}

// messageFor maps an error to the text shown to the user. Specific kinds
// win over the per-operation generic message.
func messageFor(op string, err error) string {
	for _, vm := range validationMessages {
		if errors.Is(err, vm.err) {
			return vm.msg
		}
	}
	switch {
	case errors.Is(err, remote.ErrNotReceipt):
		return "Não parece ser um QR Code de NFC-e válido. Procure o QR Code no cupom fiscal."
	case errors.Is(err, remote.ErrUpstreamUnavailable):
		return "O site da nota fiscal está fora do ar."
	case errors.Is(err, remote.ErrCategoryExists):
		return "Essa categoria já existe"
	case errors.Is(err, remote.ErrConnectivity):
		return "Erro de conexão. Verifique a internet e se o servidor está no ar."
	}
	if msg, ok := genericMessages[op]; ok {
		return msg
	}
	return "Algo deu errado"
}

func errorType(err error) string {
	for _, vm := range validationMessages {
		if errors.Is(err, vm.err) {
			return log.ErrorTypeValidation
		}
	}
	switch {
	case errors.Is(err, remote.ErrConnectivity):
		return log.ErrorTypeNetwork
	case errors.Is(err, remote.ErrUpstreamUnavailable), errors.Is(err, remote.ErrNotReceipt):
		return log.ErrorTypeUpstream
	case errors.Is(err, remote.ErrCategoryExists):
		return log.ErrorTypeConflict
	case errors.Is(err, remote.ErrNotFound):
		return log.ErrorTypeNotFound
	default:
		return log.ErrorTypeInternal
	}
}
