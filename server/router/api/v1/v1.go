package v1

import (
	"net/http"

	"github.com/labstack/echo/v5"
	"github.com/pkg/errors"

	"github.com/cce-project/relay/internal/attachment"
	"github.com/cce-project/relay/internal/profile"
	"github.com/cce-project/relay/plugin/backend"
	"github.com/cce-project/relay/server/auth"
	"github.com/cce-project/relay/store"
)

// APIV1Service serves the form entry point and the versioned resource endpoints.
type APIV1Service struct {
	Profile *profile.Profile
	Store   *store.Store
	Auth    *auth.Authenticator

	// resource records chat exchanges, form only relays them.
	resource *Dispatcher
	form     *Dispatcher
}

func NewAPIV1Service(profile *profile.Profile, store *store.Store, authenticator *auth.Authenticator, relay Relayer, stager attachment.Stager) *APIV1Service {
	return &APIV1Service{
		Profile: profile,
		Store:   store,
		Auth:    authenticator,
		resource: &Dispatcher{
			Relay:                relay,
			Transcript:           store,
			Stager:               stager,
			Persist:              true,
			DefaultCodeExecution: profile.EnableCodeExecution,
		},
		form: &Dispatcher{
			Relay:                relay,
			Transcript:           store,
			Stager:               stager,
			Persist:              false,
			DefaultCodeExecution: profile.EnableCodeExecution,
		},
	}
}

func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	s.registerFormRoutes(e)
	s.registerChatRoutes(e)
	s.registerConversationRoutes(e)
}

// authError maps an access gate denial to an HTTP error.
func authError(err error) error {
	if errors.Is(err, auth.ErrInvalidFormToken) {
		return echo.NewHTTPError(http.StatusForbidden, auth.ErrInvalidFormToken.Error())
	}
	return echo.NewHTTPError(http.StatusUnauthorized, auth.ErrUnauthorized.Error())
}

// respond writes a dispatcher outcome. Relay-level failures keep HTTP 200 and
// report success=false in the body.
func respond(c *echo.Context, result *backend.Result, err error) error {
	if err != nil {
		if IsValidationError(err) {
			return c.JSON(http.StatusBadRequest, backend.Failure(err.Error()))
		}
		return c.JSON(http.StatusInternalServerError, backend.Failure("Internal server error"))
	}
	return c.JSON(http.StatusOK, result)
}
