package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/uniticket/internal/api/dto"
	"github.com/spec-kit/uniticket/internal/auth"
	"github.com/spec-kit/uniticket/internal/policy"
	apperrors "github.com/spec-kit/uniticket/pkg/util"
)

func actorFrom(c *fiber.Ctx) (policy.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return policy.Actor{}, apperrors.NewUnauthorized("Not authorized")
	}
	return principal.Actor(), nil
}

func parseBody(c *fiber.Ctx, dst any) error {
	return dto.DecodeStrict(c.Body(), dst)
}
