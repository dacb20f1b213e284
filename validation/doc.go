// Package validation turns invalid input into errors.AppError values.
//
// Struct tags are checked with go-playground/validator; field names in
// messages follow the json tag. Ad hoc checks use the collecting Validator.
//
//	type CreateRequest struct {
//	    Username string `json:"username" validate:"omitempty,min=3,max=32,alphanum"`
//	}
//	err := validation.Validate(req)
//
//	v := validation.New().Required("password", pw)
//	if appErr := v.Validate(); appErr != nil { ... }
package validation
