package logger

// Standard field names for structured logging. Use these instead of raw
// strings so log queries stay stable across packages.
const (
	FieldComponent  = "component"
	FieldOperation  = "operation"
	FieldURI        = "uri"
	FieldName       = "name"
	FieldKind       = "kind"
	FieldMode       = "mode"
	FieldDriver     = "driver"
	FieldFragment   = "fragment"
	FieldRows       = "rows"
	FieldColumns    = "columns"
	FieldDurationMS = "duration_ms"
	FieldError      = "error"
)
