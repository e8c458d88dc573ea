package api

import (
	"net/http"
	"strconv"
	"strings"

	"access-workflow/internal/common/errors"
	"access-workflow/internal/models"
	"access-workflow/internal/workflow"

	"github.com/gin-gonic/gin"
)

type createRequestBody struct {
	RequesterID string `json:"requesterId"`
	TargetID    string `json:"targetId"`
	Message     string `json:"message"`
}

type respondBody struct {
	Response string `json:"response"`
	Message  string `json:"message"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func newListResponse[T any](items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items, Count: len(items)}
}

// handleCreateRequest: POST /access-requests
func (s *Server) handleCreateRequest(c *gin.Context) {
	var body createRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.respondError(c, errors.NewInvalidArgumentError("invalid JSON body: "+err.Error()))
		return
	}

	caller := CallerID(c)
	body.RequesterID = strings.TrimSpace(body.RequesterID)
	if body.RequesterID == "" {
		body.RequesterID = caller
	}
	if body.RequesterID != caller {
		s.respondError(c, errors.NewUnauthorizedError("requesterId must be the authenticated user"))
		return
	}

	req, err := s.workflow.Create(c.Request.Context(), workflow.CreateInput{
		RequesterID: body.RequesterID,
		TargetID:    body.TargetID,
		Message:     body.Message,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

// handleRespond: PUT /access-requests/:id
func (s *Server) handleRespond(c *gin.Context) {
	var body respondBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.respondError(c, errors.NewInvalidArgumentError("invalid JSON body: "+err.Error()))
		return
	}

	req, err := s.workflow.Respond(c.Request.Context(), workflow.RespondInput{
		RequestID: c.Param("id"),
		CallerID:  CallerID(c),
		Response:  body.Response,
		Message:   body.Message,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (s *Server) handleGetRequest(c *gin.Context) {
	req, err := s.workflow.Get(c.Request.Context(), c.Param("id"), CallerID(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (s *Server) handleListRequests(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		s.respondError(c, err)
		return
	}

	reqs, err := s.workflow.List(c.Request.Context(), workflow.ListInput{
		CallerID: CallerID(c),
		Role:     models.ListRole(c.Query("role")),
		Status:   models.RequestStatus(c.Query("status")),
		Limit:    limit,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListResponse(reqs))
}

func (s *Server) handleListNotifications(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		s.respondError(c, err)
		return
	}
	unread, err := queryBool(c, "unread")
	if err != nil {
		s.respondError(c, err)
		return
	}

	list, err := s.inbox.List(c.Request.Context(), CallerID(c), models.NotificationFilter{
		UnreadOnly: unread,
		Limit:      limit,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListResponse(list))
}

func (s *Server) handleMarkRead(c *gin.Context) {
	if err := s.inbox.MarkRead(c.Request.Context(), c.Param("id"), CallerID(c)); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleMarkAllRead(c *gin.Context) {
	changed, err := s.inbox.MarkAllRead(c.Request.Context(), CallerID(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": changed})
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.NewInvalidArgumentError(key + " must be an integer")
	}
	return v, nil
}

func queryBool(c *gin.Context, key string) (bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.NewInvalidArgumentError(key + " must be true or false")
	}
	return v, nil
}
