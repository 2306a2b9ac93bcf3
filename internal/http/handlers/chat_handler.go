// Chat widget HTTP handlers.
//
// This file exposes the chatbot endpoints:
//   - POST /chat              (answer the last user message)
//   - GET  /chat/suggestion   (proactive prompt for the page being viewed)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/solar-support-backend/internal/services"
)

// maxChatMessages bounds the conversation forwarded to the chatbot.
const maxChatMessages = 50

//
// DTOs
//

// ChatTurn is one message of the widget conversation.
type ChatTurn struct {
	Role    string `json:"role"    binding:"required,oneof=user assistant system" example:"user"`
	Content string `json:"content" binding:"max=4000" example:"Do you offer financing?"`
}

// ChatRequest is the JSON payload of POST /chat.
type ChatRequest struct {
	Messages []ChatTurn `json:"messages" binding:"dive"`
	// Context is the page path the widget is shown on.
	Context string `json:"context" binding:"max=255" example:"/services"`
}

// ChatResponse carries the assistant reply.
type ChatResponse struct {
	Message string `json:"message" example:"Hello! I'm your Green Power Solutions AI assistant. How can I help you today?"`
}

//
// Handlers
//

// Chat godoc
// @ID          chat
// @Summary     Ask the chatbot
// @Description Answers the last user message. Without a language model provider the answer comes from greetings and the FAQ index.
// @Tags        Chat
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.ChatRequest  true  "Conversation so far"
//
// @Success     200  {object}  handlers.ChatResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Empty conversation or last message not from the user"
// @Failure     503  {object}  handlers.ErrorResponse  "Provider unavailable"
// @Router      /chat [post]
func (h *Handlers) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if len(req.Messages) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, services.ErrEmptyConversation.Error())
		return
	}
	turns := req.Messages
	if len(turns) > maxChatMessages {
		turns = turns[len(turns)-maxChatMessages:]
	}
	msgs := make([]services.ChatMessage, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, services.ChatMessage{Role: t.Role, Content: t.Content})
	}

	reply, err := h.chatbot.Reply(c.Request.Context(), msgs, strings.TrimSpace(req.Context))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, ChatResponse{Message: reply})
}

// ChatSuggestion godoc
// @ID          chatSuggestion
// @Summary     Widget suggestion for a page
// @Tags        Chat
// @Produce     json
//
// @Param       page  query  string  false  "Page path"  example(/services)
//
// @Success     200  {object}  services.Suggestion
// @Router      /chat/suggestion [get]
func (h *Handlers) ChatSuggestion(c *gin.Context) {
	ok(c, http.StatusOK, h.chatbot.Suggest(strings.TrimSpace(c.Query("page"))))
}
