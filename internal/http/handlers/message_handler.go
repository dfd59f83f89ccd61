// Message HTTP handlers.
//
// This file exposes REST endpoints for doctor/patient messages:
//   - GET  /messages        (optionally ?patientId=, matching patient or sender)
//   - POST /messages        (send a message; Idempotency-Key aware)
//   - PUT  /messages/{id}   (mark read/unread, edit content)
//
// Content is normalized before it reaches the store: Unicode NFC, line
// endings become LF and runs of blank lines collapse to one.
package handlers

import (
	"errors"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/unicode/norm"

	"github.com/tbourn/scan-pipeline/internal/domain"
	"github.com/tbourn/scan-pipeline/internal/services"
)

//
// DTOs
//

// PostMessageRequest is the JSON payload for sending a message.
type PostMessageRequest struct {
	SenderID      string `json:"senderId" example:"DOC-001"`
	SenderRole    string `json:"senderRole" example:"doctor"`
	RecipientID   string `json:"recipientId" example:"PAT-042"`
	RecipientRole string `json:"recipientRole" example:"patient"`
	PatientID     string `json:"patientId" example:"PAT-042"`
	Content       string `json:"content" example:"Your results are ready."`
}

// UpdateMessageRequest updates a message. Read defaults to true when absent,
// so an empty body marks the message read.
type UpdateMessageRequest struct {
	Read    *bool   `json:"read"`
	Content *string `json:"content"`
}

// MessageResponse is the JSON envelope for one message.
type MessageResponse struct {
	Success bool            `json:"success"`
	Message *domain.Message `json:"message"`
}

// ListMessagesResponse wraps the message list.
type ListMessagesResponse struct {
	Messages []domain.Message `json:"messages"`
}

//
// Helpers
//

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent applies NFC, converts CRLF/CR to LF, collapses blank-line
// runs and trims.
func sanitizeContent(raw string) string {
	s := norm.NFC.String(raw)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

//
// Handlers
//

// ListMessages godoc
// @ID          listMessages
// @Summary     List messages
// @Description Returns messages in the order they were sent. Supports ETag / If-None-Match.
// @Tags        Messages
// @Produce     json
// @Param       patientId  query  string  false  "Only messages about or sent by this patient"
// @Param       limit      query  int     false  "Maximum number of messages"  maximum(500)
// @Success     200  {object} handlers.ListMessagesResponse
// @Success     304  "Not modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	if h.notModified(c, domain.CollectionMessages) {
		return
	}
	items, err := h.records.ListMessages(c.Request.Context(), services.MessageFilter{
		PatientID: c.Query("patientId"),
		Limit:     listLimit(c),
	})
	if err != nil {
		failFromErr(c, err)
		return
	}
	if items == nil {
		items = []domain.Message{}
	}
	ok(c, http.StatusOK, ListMessagesResponse{Messages: items})
}

// PostMessage godoc
// @ID          postMessage
// @Summary     Send a message
// @Description senderId, recipientId and content are required.
// @Description Supports idempotency via the Idempotency-Key header (same key → same result).
// @Tags        Messages
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string                       false  "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.PostMessageRequest  true   "Message payload"
//
// @Success     201  {object}  handlers.MessageResponse  "Stored message"
// @Failure     400  {object}  handlers.ErrorResponse    "Missing required fields"
// @Failure     500  {object}  handlers.ErrorResponse    "Internal error"
// @Router      /messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	ctx := c.Request.Context()

	// Replay path: a key seen before answers with the stored message.
	if id, status, found := h.replayed(c, domain.CollectionMessages); found {
		if prev, err := h.records.GetMessage(ctx, id); err == nil {
			markReplayed(c)
			ok(c, status, MessageResponse{Success: true, Message: prev})
			return
		}
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid message payload")
		return
	}
	m, err := h.records.CreateMessage(ctx, domain.Message{
		SenderID:      req.SenderID,
		SenderRole:    req.SenderRole,
		RecipientID:   req.RecipientID,
		RecipientRole: req.RecipientRole,
		PatientID:     strings.TrimSpace(req.PatientID),
		Content:       sanitizeContent(req.Content),
	})
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "missing required fields: "+err.Error())
			return
		}
		failFromErr(c, err)
		return
	}

	h.remember(c, domain.CollectionMessages, m.ID, http.StatusCreated)
	ok(c, http.StatusCreated, MessageResponse{Success: true, Message: m})
}

// UpdateMessage godoc
// @ID          updateMessage
// @Summary     Update a message
// @Description With no body fields the message is marked read.
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Param       id    path  string                         true   "Message ID"
// @Param       body  body  handlers.UpdateMessageRequest  false  "Changes"
// @Success     200  {object}  handlers.MessageResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Message not found"
// @Router      /messages/{id} [put]
func (h *Handlers) UpdateMessage(c *gin.Context) {
	var req UpdateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid message patch")
		return
	}
	if req.Read == nil {
		read := true
		req.Read = &read
	}
	if req.Content != nil {
		s := sanitizeContent(*req.Content)
		req.Content = &s
	}
	m, err := h.records.UpdateMessage(c.Request.Context(), c.Param("id"), services.MessagePatch{
		Read:    req.Read,
		Content: req.Content,
	})
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "message not found")
			return
		}
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusOK, MessageResponse{Success: true, Message: m})
}
