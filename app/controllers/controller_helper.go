package controllers

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// Stable error codes written to responses.
const (
	ErrCodeBadRequest        = "bad_request"
	ErrCodeValidation        = "validation_failed"
	ErrCodeInternal          = "internal_server_error"
	ErrCodeInvalidSignature  = "invalid_signature"
	ErrCodeMissingSignature  = "missing_signature"
	ErrCodeReconcileFailed   = "reconciliation_failed"
	ErrCodeUnknownPrice      = "unknown_price"
	ErrCodeCheckoutFailed    = "checkout_unavailable"
	ErrCodeTokenIssueFailed  = "token_issue_failed"
	ErrCodeForbiddenChannel  = "forbidden_channel"
	ErrCodeRealtimeDisabled  = "realtime_unavailable"
	ErrCodeRawBodyUnreadable = "raw_body_unavailable"
	ErrCodeUsageUnavailable  = "usage_unavailable"
)

func jsonError(c *fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{"error": code})
}

// bindJSON decodes a JSON body into dst and runs struct validation. It returns
// the error body to send with 400, or nil when dst is usable.
func bindJSON(c *fiber.Ctx, dst interface{}) fiber.Map {
	if err := c.BodyParser(dst); err != nil {
		return fiber.Map{"error": ErrCodeBadRequest}
	}
	if err := validate.Struct(dst); err != nil {
		fields := []string{}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
		}
		return fiber.Map{"error": ErrCodeValidation, "fields": fields}
	}
	return nil
}

func init() {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}
