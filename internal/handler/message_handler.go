package handler

import (
	"net/http"
	"strconv"

	"huddle-chat/internal/services"
	"huddle-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type MessageHandler struct {
	service *services.MessageService
}

func NewMessageHandler(service *services.MessageService) *MessageHandler {
	return &MessageHandler{service: service}
}

func (h *MessageHandler) Send(c *gin.Context) {
	senderID, ok := actorID(c)
	if !ok {
		return
	}
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_INPUT"))
		return
	}

	in := services.SendMessageInput{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        req.Content,
		MediaURL:       req.MediaURL,
	}
	if req.ReplyToID != nil {
		replyTo, err := uuid.Parse(*req.ReplyToID)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid reply_to_id", "INVALID_INPUT"))
			return
		}
		in.ReplyToID = &replyTo
	}

	msg, err := h.service.SendMessage(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromMessage(msg)))
}

func (h *MessageHandler) List(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	beforeSeq, _ := strconv.ParseInt(c.Query("before_seq"), 10, 64)
	limit, _ := strconv.Atoi(c.Query("limit"))

	msgs, err := h.service.GetConversationMessages(c.Request.Context(), conversationID, userID, beforeSeq, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromMessages(msgs)))
}

func (h *MessageHandler) MarkRead(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	messageID, ok := pathUUID(c, "messageId")
	if !ok {
		return
	}

	if err := h.service.MarkAsRead(c.Request.Context(), messageID, userID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"read": messageID.String()}))
}

func (h *MessageHandler) OpenGroup(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req httpdto.OpenGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_INPUT"))
		return
	}
	lastRead, err := uuid.Parse(req.LastReadMessageID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid last_read_message_id", "INVALID_INPUT"))
		return
	}

	if err := h.service.OpenGroup(c.Request.Context(), conversationID, userID, lastRead); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"read_up_to": lastRead.String()}))
}

func (h *MessageHandler) Unread(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	count, err := h.service.GetUnreadCount(c.Request.Context(), conversationID, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"unread": count}))
}

func (h *MessageHandler) AddReaction(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	messageID, ok := pathUUID(c, "messageId")
	if !ok {
		return
	}

	var req httpdto.ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_INPUT"))
		return
	}

	if err := h.service.AddReaction(c.Request.Context(), messageID, userID, req.Emoji); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"emoji": req.Emoji}))
}

func (h *MessageHandler) RemoveReaction(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	messageID, ok := pathUUID(c, "messageId")
	if !ok {
		return
	}

	emoji := c.Query("emoji")
	if err := h.service.RemoveReaction(c.Request.Context(), messageID, userID, emoji); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"emoji": emoji}))
}

func (h *MessageHandler) Thread(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	messageID, ok := pathUUID(c, "messageId")
	if !ok {
		return
	}

	msgs, err := h.service.GetThread(c.Request.Context(), messageID, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromMessages(msgs)))
}

func (h *MessageHandler) Edit(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	messageID, ok := pathUUID(c, "messageId")
	if !ok {
		return
	}

	var req httpdto.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_INPUT"))
		return
	}

	if err := h.service.EditMessage(c.Request.Context(), messageID, userID, req.Content); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"edited": messageID.String()}))
}

func (h *MessageHandler) Delete(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	messageID, ok := pathUUID(c, "messageId")
	if !ok {
		return
	}

	if err := h.service.DeleteMessage(c.Request.Context(), messageID, userID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"deleted": messageID.String()}))
}

func (h *MessageHandler) Pin(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	messageID, ok := pathUUID(c, "messageId")
	if !ok {
		return
	}

	if err := h.service.PinMessage(c.Request.Context(), conversationID, messageID, userID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"pinned": messageID.String()}))
}

func (h *MessageHandler) Unpin(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	messageID, ok := pathUUID(c, "messageId")
	if !ok {
		return
	}

	if err := h.service.UnpinMessage(c.Request.Context(), conversationID, messageID, userID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"unpinned": messageID.String()}))
}

func (h *MessageHandler) Pinned(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	pins, err := h.service.GetPinnedMessages(c.Request.Context(), conversationID, userID)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]httpdto.PinnedMessageResponse, 0, len(pins))
	for _, p := range pins {
		out = append(out, httpdto.FromPinnedMessage(p))
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(out))
}

func (h *MessageHandler) Reactions(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	messageID, ok := pathUUID(c, "messageId")
	if !ok {
		return
	}

	reactions, err := h.service.GetMessageReactions(c.Request.Context(), messageID, userID)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]httpdto.ReactionResponse, 0, len(reactions))
	for _, r := range reactions {
		out = append(out, httpdto.FromReaction(r))
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(out))
}
