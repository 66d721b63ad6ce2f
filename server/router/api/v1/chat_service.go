package v1

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/cce-project/relay/internal/attachment"
	"github.com/cce-project/relay/plugin/backend"
)

const uploadFileField = "file"

func (s *APIV1Service) registerChatRoutes(e *echo.Echo) {
	g := e.Group("/relay/v1")
	g.POST("/chat", s.handleChat)
	g.POST("/upload", s.handleUpload)
}

func (s *APIV1Service) handleChat(c *echo.Context) error {
	principal, err := s.Auth.AuthorizeResource(c.Request())
	if err != nil {
		return authError(err)
	}
	var in ChatInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, backend.Failure("Invalid request body"))
	}
	result, err := s.resource.Chat(c.Request().Context(), principal, &in)
	return respond(c, result, err)
}

func (s *APIV1Service) handleUpload(c *echo.Context) error {
	if _, err := s.Auth.AuthorizeResource(c.Request()); err != nil {
		return authError(err)
	}
	result, err := s.upload(c, s.resource)
	return respond(c, result, err)
}

// upload reads the multipart file part and hands it to d.
func (s *APIV1Service) upload(c *echo.Context, d *Dispatcher) (*backend.Result, error) {
	if err := parseForm(c, s.Profile.MaxUploadBytes); err != nil {
		return nil, invalid("Invalid upload")
	}
	header, err := c.FormFile(uploadFileField)
	if err != nil {
		return nil, invalid(attachment.ErrNoFile.Error())
	}
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return d.Upload(c.Request().Context(), header.Filename, file)
}

// parseForm parses url-encoded and multipart bodies, bounding multipart memory.
func parseForm(c *echo.Context, maxMemory int64) error {
	r := c.Request()
	if strings.HasPrefix(r.Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return r.ParseMultipartForm(maxMemory)
	}
	return r.ParseForm()
}
