package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"bp-tracker/internal/common"
	"bp-tracker/internal/logging"
)

var registerOnce sync.Once

// RegisterValidation makes binding errors report JSON field names.
func RegisterValidation() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
	})
}

// bindingError turns a ShouldBindJSON failure into a ValidationError.
func bindingError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return common.NewValidationError(fe.Field(), "is required")
		case "gt", "min":
			return common.NewValidationError(fe.Field(), "must be a positive integer")
		default:
			return common.NewValidationError(fe.Field(), fmt.Sprintf("failed %s validation", fe.Tag()))
		}
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return common.NewValidationError(typeErr.Field, "has the wrong type")
	}
	return common.NewValidationError("", "Invalid request body")
}

// respondError writes the {error} body for err. Unexpected errors are
// logged and hidden behind a generic message.
func respondError(c *gin.Context, log logging.Logger, err error) {
	var verr *common.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
	case errors.Is(err, common.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
	case errors.Is(err, common.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
	case errors.Is(err, common.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
	default:
		_ = c.Error(err)
		log.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
