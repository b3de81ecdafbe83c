package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldErrorType  = "error_type"

	FieldMode       = "mode"
	FieldTerm       = "term"
	FieldPeriod     = "period"
	FieldRangeStart = "range_start"
	FieldRangeEnd   = "range_end"
	FieldReceiptID  = "receipt_id"
	FieldItemID     = "item_id"
	FieldCategoryID = "category_id"
	FieldVendor     = "vendor"
	FieldCount      = "count"
	FieldGeneration = "generation"
	FieldCached     = "cached"
)

// Components defines standard component names
const (
	ComponentApp         = "app"
	ComponentShell       = "shell"
	ComponentCoordinator = "coordinator"
	ComponentRemote      = "remote"
	ComponentCache       = "cache"
	ComponentHTTP        = "http"
	ComponentStorage     = "storage"
	ComponentTrace       = "trace"
)

// Operations defines standard operation names
const (
	OpList         = "list"
	OpSearch       = "search"
	OpDetail       = "detail"
	OpRecategorize = "recategorize"
	OpCreate       = "create"
	OpRename       = "rename"
	OpDashboard    = "dashboard"
	OpDrillDown    = "drill_down"
	OpManual       = "manual_entry"
	OpScan         = "scan"
	OpHealth       = "health"
	OpMigrate      = "migrate"
	OpShutdown     = "shutdown"
	OpStartup      = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation = "validation_error"
	ErrorTypeNetwork    = "network_error"
	ErrorTypeUpstream   = "upstream_error"
	ErrorTypeNotFound   = "not_found_error"
	ErrorTypeConflict   = "conflict_error"
	ErrorTypeDatabase   = "database_error"
	ErrorTypeStale      = "stale_response"
	ErrorTypeInternal   = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if query != "" {
		f[FieldQuery] = query
	}
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
