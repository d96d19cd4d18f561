package topic

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/temario/core"
)

var (
	visibilityTag  = "visibility"
	visibilityText = "visibility must be one of public, organization or private"
)

// InitValidators registers the topic validations & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(visibilityTag, visibilityValidation)
	core.RegisterCustomTranslation(validate, translator, visibilityTag, visibilityText)
}

func visibilityValidation(fl validator.FieldLevel) bool {
	if v, ok := fl.Field().Interface().(Visibility); ok {
		return v.Valid()
	}
	return false
}
