package http

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"nfcescan/internal/log"
	"nfcescan/internal/storage"
)

var hexColorRE = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// newValidator registers the rules the request structs refer to.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("rgbhex", func(fl validator.FieldLevel) bool {
		return hexColorRE.MatchString(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("register rgbhex validation: %v", err))
	}
	return v
}

// validationMessage flattens validator errors into one readable line.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// writeStoreError maps repository errors onto API responses. Anything not
// recognised is logged and answered with 500.
func writeStoreError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, storage.ErrReceiptNotFound):
		NotFoundError("Nota não encontrada").Write(w)
	case errors.Is(err, storage.ErrItemNotFound):
		NotFoundError("Item não encontrado").Write(w)
	case errors.Is(err, storage.ErrCategoryNotFound):
		NotFoundError("Categoria não encontrada").Write(w)
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Store operation failed",
			log.FieldOperation, op,
			log.FieldErrorType, log.ErrorTypeDatabase,
			log.FieldError, err)
		InternalServerError("Erro interno").Write(w)
	}
}
