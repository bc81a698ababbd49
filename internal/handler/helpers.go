package handler

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"carmen/internal/apierror"
	"carmen/internal/pricing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	// report fields by their JSON names
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes a 400 with one entry per bad field if either fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.NewValidation([]apierror.FieldError{
			{Field: "body", Message: "invalid JSON: " + err.Error()},
		}))
		return false
	}
	return validateStruct(c, req)
}

func validateStruct(c *gin.Context, req interface{}) bool {
	err := validate.Struct(req)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return false
	}
	fields := make([]apierror.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apierror.FieldError{Field: fieldPath(fe), Message: fieldMessage(fe)})
	}
	c.JSON(http.StatusBadRequest, apierror.NewValidation(fields))
	return false
}

// fieldPath drops the top-level struct name: "AssignPriceRequest.quantity" -> "quantity".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", name, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", name, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", name, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", name, fe.Param())
	case "email":
		return name + " must be a valid email address"
	default:
		return fmt.Sprintf("%s failed %s validation", name, fe.Tag())
	}
}

// bindQuery binds and validates query parameters.
func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.NewValidation([]apierror.FieldError{
			{Field: "query", Message: err.Error()},
		}))
		return false
	}
	return validateStruct(c, req)
}

// pathUUID parses the :name path parameter; on failure it records a
// validation error and returns false.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		verr := &pricing.ValidationError{}
		verr.Add(name, name+" must be a UUID")
		_ = c.Error(verr)
		return uuid.Nil, false
	}
	return id, true
}
