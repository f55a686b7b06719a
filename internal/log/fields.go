package log

// Field names shared across packages so log lines stay greppable.
const (
	FieldComponent = "component"
	FieldRequestID = "request_id"
	FieldClientIP  = "client_ip"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldDuration  = "duration_ms"
	FieldError     = "error"

	FieldMonth    = "month"
	FieldYear     = "year"
	FieldCurrency = "currency"
	FieldRate     = "rate"
	FieldRecords  = "records"
	FieldSheet    = "sheet"
	FieldRowIndex = "row_index"
	FieldSnapshot = "snapshot_id"
	FieldModel    = "model"
)

// Component names.
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentSession  = "session"
	ComponentRecords  = "records"
	ComponentFX       = "fx"
	ComponentAdvisor  = "advisor"
	ComponentSnapshot = "snapshot"
	ComponentAMQP     = "amqp"
	ComponentWorker   = "worker"
)
