package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v5"

	"github.com/cce-project/relay/store"
)

type conversationResponse struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	StartedTs      int64  `json:"started_ts"`
	MessageCount   int64  `json:"message_count"`
}

type entryResponse struct {
	ID             int64  `json:"id"`
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
	Role           string `json:"role"`
	Content        string `json:"content"`
	CreatedTs      int64  `json:"created_ts"`
}

func (s *APIV1Service) registerConversationRoutes(e *echo.Echo) {
	g := e.Group("/relay/v1/conversations")
	g.GET("", s.listConversations)
	g.GET("/:id/entries", s.listConversationEntries)
}

// requireAdmin admits the shared key and sessions carrying the admin claim.
func (s *APIV1Service) requireAdmin(c *echo.Context) error {
	principal, err := s.Auth.AuthorizeResource(c.Request())
	if err != nil {
		return authError(err)
	}
	if !principal.Admin {
		return echo.NewHTTPError(http.StatusForbidden, "admin access required")
	}
	return nil
}

func (s *APIV1Service) listConversations(c *echo.Context) error {
	if err := s.requireAdmin(c); err != nil {
		return err
	}
	limit := store.DefaultRecentLimit
	if raw := c.QueryParam("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = v
	}
	list, err := s.Store.ListRecentConversations(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list conversations")
	}
	resp := make([]conversationResponse, 0, len(list))
	for _, conv := range list {
		resp = append(resp, conversationResponse{
			ConversationID: conv.ConversationID,
			UserID:         conv.UserID,
			StartedTs:      conv.StartedTs,
			MessageCount:   conv.MessageCount,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *APIV1Service) listConversationEntries(c *echo.Context) error {
	if err := s.requireAdmin(c); err != nil {
		return err
	}
	entries, err := s.Store.ListConversationEntries(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list entries")
	}
	resp := make([]entryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, entryResponse{
			ID:             entry.ID,
			UserID:         entry.UserID,
			ConversationID: entry.ConversationID,
			Role:           string(entry.Role),
			Content:        entry.Content,
			CreatedTs:      entry.CreatedTs,
		})
	}
	return c.JSON(http.StatusOK, resp)
}
