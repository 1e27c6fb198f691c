package controllers

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/kendall-kelly/manuorder-api/models"
)

var registerOnce sync.Once

// RegisterValidators adds the custom binding rules used by request types.
// Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("order_status", func(fl validator.FieldLevel) bool {
			return models.OrderStatus(fl.Field().String()).IsValid()
		})
	})
}
