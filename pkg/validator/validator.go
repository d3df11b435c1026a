package validator

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var timeOfDayRe = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// Register installs the domain rules on a go-playground engine. The
// router applies it to gin's binding engine at startup, so request
// structs can carry `binding:"hhmm"` and `binding:"cpf"` tags.
func Register(v *validator.Validate) {
	// "hhmm" validates zero-padded wall-clock times like "08:30".
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return timeOfDayRe.MatchString(fl.Field().String())
	})

	// "cpf" validates the 11-digit national identifier format.
	_ = v.RegisterValidation("cpf", func(fl validator.FieldLevel) bool {
		return IsCPF(fl.Field().String())
	})
}

// IsTimeOfDay reports whether s is a zero-padded "HH:MM" value.
func IsTimeOfDay(s string) bool {
	return timeOfDayRe.MatchString(s)
}

var cpfDigitsRe = regexp.MustCompile(`^\d{11}$`)

// IsCPF reports whether s looks like a CPF after stripping punctuation.
// Only the shape is checked; verification digits are not recomputed, the
// identifier is treated as an opaque uniqueness key.
func IsCPF(s string) bool {
	return cpfDigitsRe.MatchString(NormalizeCPF(s))
}

// NormalizeCPF strips formatting so "529.982.247-25" and "52998224725"
// dedupe to the same key.
func NormalizeCPF(s string) string {
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, "-", "")
	return strings.TrimSpace(s)
}
