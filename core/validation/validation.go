package validation

// FieldError describes one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result collects field errors from a request validator.
type Result struct {
	Errors []FieldError `json:"errors"`
}

func NewResult() *Result {
	return &Result{Errors: []FieldError{}}
}

func (r *Result) Add(field, message string) {
	r.Errors = append(r.Errors, FieldError{Field: field, Message: message})
}

func (r *Result) HasError() bool {
	return len(r.Errors) > 0
}
