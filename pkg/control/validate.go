package control

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validatorOnce sync.Once
	validatorInst *validator.Validate
)

// getValidator lazily builds the shared validator.Validate instance;
// per go-playground/validator's own guidance it should be constructed
// once and reused, not per-request.
func getValidator() *validator.Validate {
	validatorOnce.Do(func() {
		validatorInst = validator.New()
	})
	return validatorInst
}

// validateStruct runs struct tag validation and returns the validator's
// error unchanged; when several fields fail, that error names each of
// them.
func validateStruct(s any) error {
	return getValidator().Struct(s)
}
