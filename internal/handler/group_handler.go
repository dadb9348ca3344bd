package handler

import (
	"net/http"
	"strconv"

	"huddle-chat/internal/domain/conversation"
	"huddle-chat/internal/services"
	"huddle-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type GroupHandler struct {
	service *services.GroupService
}

func NewGroupHandler(service *services.GroupService) *GroupHandler {
	return &GroupHandler{service: service}
}

func (h *GroupHandler) Create(c *gin.Context) {
	creatorID, ok := actorID(c)
	if !ok {
		return
	}

	var req httpdto.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_INPUT"))
		return
	}

	memberIDs := make([]uuid.UUID, 0, len(req.MemberIDs))
	for _, idStr := range req.MemberIDs {
		id, err := uuid.Parse(idStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid member id", "INVALID_INPUT"))
			return
		}
		memberIDs = append(memberIDs, id)
	}

	policy := conversation.InvitePolicy(req.InvitePolicy)
	if req.InvitePolicy == "" {
		policy = conversation.InvitePolicyAll
	}

	id, err := h.service.CreateGroup(c.Request.Context(), services.CreateGroupInput{
		CreatorID:    creatorID,
		Name:         req.Name,
		MemberIDs:    memberIDs,
		InvitePolicy: policy,
		MaxMembers:   req.MaxMembers,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(gin.H{"conversation_id": id.String()}))
}

func (h *GroupHandler) List(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	items, total, err := h.service.GetUserConversations(c.Request.Context(), userID, page, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := httpdto.ListConversationsResponse{Total: total}
	for _, item := range items {
		resp.Items = append(resp.Items, httpdto.FromConversation(item))
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(resp))
}

func (h *GroupHandler) Invite(c *gin.Context) {
	inviterID, ok := actorID(c)
	if !ok {
		return
	}
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req httpdto.InviteMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_INPUT"))
		return
	}
	inviteeID, err := uuid.Parse(req.InviteeID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid invitee id", "INVALID_INPUT"))
		return
	}

	if err := h.service.InviteMember(c.Request.Context(), conversationID, inviterID, inviteeID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"invited": inviteeID.String()}))
}

func (h *GroupHandler) Members(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	memberships, err := h.service.GetGroupMembers(c.Request.Context(), conversationID, userID)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]httpdto.MembershipResponse, 0, len(memberships))
	for _, m := range memberships {
		out = append(out, httpdto.FromMembership(m))
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(out))
}

func (h *GroupHandler) RemoveMember(c *gin.Context) {
	requesterID, ok := actorID(c)
	if !ok {
		return
	}
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	targetID, ok := pathUUID(c, "userId")
	if !ok {
		return
	}

	if err := h.service.RemoveMember(c.Request.Context(), conversationID, requesterID, targetID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"removed": targetID.String()}))
}

func (h *GroupHandler) Leave(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.service.LeaveGroup(c.Request.Context(), conversationID, userID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"left": conversationID.String()}))
}

func (h *GroupHandler) ChangeRole(c *gin.Context) {
	requesterID, ok := actorID(c)
	if !ok {
		return
	}
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	targetID, ok := pathUUID(c, "userId")
	if !ok {
		return
	}

	var req httpdto.ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_INPUT"))
		return
	}

	err := h.service.ChangeMemberRole(c.Request.Context(), conversationID, requesterID, targetID,
		conversation.Role(req.Role), req.TransferOwnership)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"user_id": targetID.String(), "role": req.Role}))
}

func (h *GroupHandler) Delete(c *gin.Context) {
	requesterID, ok := actorID(c)
	if !ok {
		return
	}
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteGroup(c.Request.Context(), conversationID, requesterID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"deleted": conversationID.String()}))
}

func (h *GroupHandler) UpdateName(c *gin.Context) {
	requesterID, ok := actorID(c)
	if !ok {
		return
	}
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req httpdto.UpdateGroupNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_INPUT"))
		return
	}

	if err := h.service.UpdateGroupName(c.Request.Context(), conversationID, requesterID, req.Name); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"name": req.Name}))
}

func (h *GroupHandler) UpdateAvatar(c *gin.Context) {
	requesterID, ok := actorID(c)
	if !ok {
		return
	}
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req httpdto.UpdateGroupAvatarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_INPUT"))
		return
	}

	if err := h.service.UpdateGroupAvatar(c.Request.Context(), conversationID, requesterID, req.AvatarURL); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"avatar_url": req.AvatarURL}))
}
