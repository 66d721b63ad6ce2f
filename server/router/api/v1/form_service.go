package v1

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v5"
	"github.com/lithammer/shortuuid/v4"

	"github.com/cce-project/relay/plugin/backend"
	"github.com/cce-project/relay/server/auth"
)

const formPath = "/relay/form"

// Form actions. The cce_ names are the ones embedded by older widget builds.
const (
	actionSendMessage       = "send-message"
	actionUploadFile        = "upload-file"
	legacyActionSendMessage = "cce_send_message"
	legacyActionUploadFile  = "cce_upload_file"
)

type bootstrapResponse struct {
	Nonce          string `json:"nonce"`
	ConversationID string `json:"conversation_id"`
	AjaxURL        string `json:"ajax_url"`
}

func (s *APIV1Service) registerFormRoutes(e *echo.Echo) {
	e.GET(formPath+"/bootstrap", s.handleFormBootstrap)
	e.POST(formPath, s.handleForm)
}

// NewConversationID returns a fresh client conversation id.
func NewConversationID() string {
	return "conv_" + shortuuid.New()[:12]
}

// handleFormBootstrap hands a page the anti-forgery token and a conversation id.
func (s *APIV1Service) handleFormBootstrap(c *echo.Context) error {
	principal, err := s.Auth.Identify(c.Request())
	if err != nil {
		return authError(err)
	}
	nonce, err := s.Auth.IssueFormToken(principal)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to issue form token")
	}
	return c.JSON(http.StatusOK, bootstrapResponse{
		Nonce:          nonce,
		ConversationID: NewConversationID(),
		AjaxURL:        formPath,
	})
}

func (s *APIV1Service) handleForm(c *echo.Context) error {
	if err := parseForm(c, s.Profile.MaxUploadBytes); err != nil {
		return c.JSON(http.StatusBadRequest, backend.Failure("Invalid form body"))
	}
	principal, err := s.Auth.AuthorizeForm(c.Request(), c.FormValue(auth.FormTokenField))
	if err != nil {
		return authError(err)
	}

	switch c.FormValue("action") {
	case actionSendMessage, legacyActionSendMessage:
		in, err := formChatInput(c)
		if err != nil {
			return respond(c, nil, err)
		}
		result, err := s.form.Chat(c.Request().Context(), principal, in)
		return respond(c, result, err)
	case actionUploadFile, legacyActionUploadFile:
		result, err := s.upload(c, s.form)
		return respond(c, result, err)
	default:
		return c.JSON(http.StatusBadRequest, backend.Failure("Unknown action"))
	}
}

func formChatInput(c *echo.Context) (*ChatInput, error) {
	in := &ChatInput{
		Message:        c.FormValue("message"),
		ConversationID: c.FormValue("conversation_id"),
	}
	if raw := c.FormValue("use_code_execution"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, invalid("Invalid use_code_execution")
		}
		in.UseCodeExecution = &v
	}
	if raw := c.FormValue("uploaded_files"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.UploadedFiles); err != nil {
			return nil, invalid("Invalid uploaded_files")
		}
	}
	return in, nil
}
