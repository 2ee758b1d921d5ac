package core

import "errors"

// Warning is a non-fatal problem recorded in the report.
type Warning struct {
	Stage   string `json:"stage"`
	Symbol  string `json:"symbol,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewWarning converts err into a report warning. Coded errors keep their code.
func NewWarning(stage, symbol string, err error) Warning {
	w := Warning{Stage: stage, Symbol: symbol, Code: "UNKNOWN", Message: err.Error()}
	var ce *Error
	if errors.As(err, &ce) {
		w.Code = ce.Code
	}
	return w
}
