package main

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	phoneRE       = regexp.MustCompile(`^\d{10,15}$`)
	countryCodeRE = regexp.MustCompile(`^\+\d{1,4}$`)
)

// The binding engine is shared process-wide, so the custom rules and the
// json field naming are registered once at startup.
func init() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phoneRE.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("countrycode", func(fl validator.FieldLevel) bool {
		return countryCodeRE.MatchString(fl.Field().String())
	})
}
