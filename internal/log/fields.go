package log

import "sort"

// Field names shared by every component.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"
)

// Journal field names.
const (
	FieldDateKey  = "date"
	FieldCategory = "category"
	FieldEntryID  = "entry_id"
	FieldLabel    = "label"
	FieldCalories = "kcal"
	FieldSource   = "source"
)

const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentJournal  = "journal"
	ComponentEstimate = "estimate"
	ComponentStorage  = "storage"
	ComponentWorker   = "worker"
	ComponentBackend  = "backend"
	ComponentCLI      = "cli"
)

// OpAppend tags the log line of a new ledger entry.
const OpAppend = "append"

// LogFields collects key/value pairs before they are handed to slog.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds the error message; nil is ignored.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithDay adds the date and, when set, the meal category.
func (f LogFields) WithDay(date, category string) LogFields {
	f[FieldDateKey] = date
	if category != "" {
		f[FieldCategory] = category
	}
	return f
}

// WithEntry adds the fields identifying one logged food.
func (f LogFields) WithEntry(id, label string, kcal float64) LogFields {
	f[FieldEntryID] = id
	f[FieldLabel] = label
	f[FieldCalories] = kcal
	return f
}

func (f LogFields) WithSource(source string) LogFields {
	f[FieldSource] = source
	return f
}

// WithHTTPRequest adds the request line; empty query and agent are left out.
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if query != "" {
		f[FieldQuery] = query
	}
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to key/value pairs for slog, ordered by key.
func (f LogFields) ToSlice() []any {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	slice := make([]any, 0, len(f)*2)
	for _, k := range keys {
		slice = append(slice, k, f[k])
	}
	return slice
}
