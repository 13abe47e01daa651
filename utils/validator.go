package utils

import (
	"errors"
	"net/http"

	"github.com/cutekitten000/backlog/models"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("gamestatus", func(fl validator.FieldLevel) bool {
		return models.GameStatus(fl.Field().String()).Valid()
	})
	_ = validate.RegisterValidation("dlcstatus", func(fl validator.FieldLevel) bool {
		return models.GameStatus(fl.Field().String()).ValidForDlc()
	})
	_ = validate.RegisterValidation("platform", func(fl validator.FieldLevel) bool {
		return models.Platform(fl.Field().String()).Valid()
	})
}

// ValidateStruct validates a struct and returns formatted errors
func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// ValidationErrors flattens validator errors into field -> message.
func ValidationErrors(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	out := make(map[string]string, len(validationErrors))
	for _, e := range validationErrors {
		out[e.Namespace()] = formatValidationError(e)
	}
	return out
}

// ValidationErrorResponse sends a formatted validation error response
func ValidationErrorResponse(c *gin.Context, err error) {
	if fields := ValidationErrors(err); fields != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": fields})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "email":
		return e.Field() + " must be a valid email"
	case "url":
		return e.Field() + " must be a valid URL"
	case "min":
		return e.Field() + " must have at least " + e.Param() + " items or characters"
	case "max":
		return e.Field() + " must have at most " + e.Param() + " items or characters"
	case "gte":
		return e.Field() + " must be greater than or equal to " + e.Param()
	case "lte":
		return e.Field() + " must be less than or equal to " + e.Param()
	case "unique":
		return e.Field() + " must not contain duplicates"
	case "gamestatus", "dlcstatus":
		return e.Field() + " is not a known status"
	case "platform":
		return e.Field() + " is not a known platform"
	default:
		return e.Field() + " is invalid"
	}
}
