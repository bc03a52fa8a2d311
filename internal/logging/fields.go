package logging

// Structured keys shared by every component. The console handler folds the
// first few into the line header; JSON output keeps them as top-level fields.
const (
	FieldComponent     = "component"
	FieldSessionID     = "session_id"
	FieldEventID       = "event_id"
	FieldStem          = "stem"
	FieldSequence      = "sequence"
	FieldCatalogNumber = "catalog_number"
	FieldPath          = "path"
	// FieldEventType classifies a log line for filtering, e.g. "image_renamed".
	FieldEventType = "event_type"
	// FieldErrorHint carries the operator's next step for a failure.
	FieldErrorHint = "error_hint"
	// FieldImpact states what the operator loses when a warning fires.
	FieldImpact = "impact"
	// FieldAlert marks anomalies the operator must act on before the session ends.
	FieldAlert = "alert"
	FieldError = "error"
)
