package handler

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON names, not Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// parseBody decodes and validates a JSON body. Amount decoding errors keep
// their InvalidAmount kind.
func parseBody(c *fiber.Ctx, op string, out any) error {
	if err := c.BodyParser(out); err != nil {
		if domain.KindOf(err) != "" {
			return err
		}
		return domain.E(op, domain.KindInvalidArgument, "invalid request body")
	}

	if err := validate.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			if fe.Tag() == "required" {
				return domain.E(op, domain.KindInvalidArgument, "%s is required", fe.Field())
			}
			return domain.E(op, domain.KindInvalidArgument, "%s is invalid (%s)", fe.Field(), fe.Tag())
		}
		return domain.E(op, domain.KindInvalidArgument, "%v", err)
	}
	return nil
}

func parseID(op, name, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.E(op, domain.KindInvalidArgument, "invalid %s %q", name, raw)
	}
	return id, nil
}

func paramID(c *fiber.Ctx, op, name string) (uuid.UUID, error) {
	return parseID(op, name, c.Params("id"))
}
