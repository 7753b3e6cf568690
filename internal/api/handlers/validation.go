package handlers

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"ridecore/internal/domain/entities"
)

// vehicletier restricts a bound tier field to the known vehicle classes, so
// an unknown tier fails request binding instead of silently ranking lowest.
func init() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	_ = v.RegisterValidation("vehicletier", func(fl validator.FieldLevel) bool {
		switch entities.VehicleTier(fl.Field().String()) {
		case entities.TierEconomy, entities.TierComfort, entities.TierXL:
			return true
		}
		return false
	})
}
