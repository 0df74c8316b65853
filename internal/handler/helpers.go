package handler

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/google/uuid"

	"github.com/resbook/service-booking/internal/domain/principal"
	"github.com/resbook/service-booking/pkg/auth"
	"github.com/resbook/service-booking/pkg/middleware"
	"github.com/resbook/service-booking/pkg/response"
)

var registerValidatorsOnce sync.Once

// registerValidators adds the custom binding tags used by request DTOs. It
// panics at route registration when a tag cannot be installed, since binding
// would otherwise panic on the first request that uses it.
func registerValidators() {
	registerValidatorsOnce.Do(func() {
		if err := installValidators(binding.Validator.Engine()); err != nil {
			panic(err)
		}
	})
}

func installValidators(engine any) error {
	v, ok := engine.(*validator.Validate)
	if !ok {
		return fmt.Errorf("binding engine is %T, not *validator.Validate", engine)
	}
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		return fmt.Errorf("register notblank validator: %w", err)
	}
	return nil
}

// currentPrincipal builds the acting principal from the verified token.
// It aborts with 401 and returns false when the context carries no identity.
func currentPrincipal(c *gin.Context) (principal.Principal, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return principal.Principal{}, false
	}
	email, _ := middleware.GetUserEmail(c)
	role, _ := middleware.GetUserRole(c)
	return principal.New(userID, email, strings.EqualFold(role, auth.RoleAdmin)), true
}

// parseIDParam reads a UUID path parameter, answering 400 when it is malformed.
func parseIDParam(c *gin.Context, name, entity string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, "invalid "+entity+" ID")
		return uuid.Nil, false
	}
	return id, true
}

// parsePagination extracts page and limit query parameters with defaults.
func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	return page, limit
}

// parseOptionalBool reads ?name=true|false. An absent or unparsable value yields nil.
func parseOptionalBool(c *gin.Context, name string) *bool {
	raw, ok := c.GetQuery(name)
	if !ok {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &v
}
