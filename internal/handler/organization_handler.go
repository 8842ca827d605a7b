package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"pocket-chat-server/internal/middleware"
	"pocket-chat-server/internal/service"
	"pocket-chat-server/pkg/response"
)

// OrganizationHandler 组织请求处理器
type OrganizationHandler struct {
	orgService   *service.OrganizationService
	cookieSecure bool
}

// NewOrganizationHandler 创建 OrganizationHandler 实例
func NewOrganizationHandler(orgService *service.OrganizationService, cookieSecure bool) *OrganizationHandler {
	return &OrganizationHandler{
		orgService:   orgService,
		cookieSecure: cookieSecure,
	}
}

// Create 创建组织
// @Summary 创建组织
// @Tags 组织
// @Accept json
// @Produce json
// @Param body body service.CreateOrganizationRequest true "组织名称"
// @Success 201 {object} model.Organization
// @Router /api/organizations [post]
func (h *OrganizationHandler) Create(c *gin.Context) {
	ec := middleware.GetExecutionContext(c)

	var req service.CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, MsgInvalidBody)
		return
	}

	org, err := h.orgService.Create(c.Request.Context(), ec, &req)
	if err != nil {
		if errors.Is(err, service.ErrOrganizationName) {
			response.BadRequest(c, "Name is required")
			return
		}
		_ = c.Error(err)
		response.InternalError(c, "Failed to create organization")
		return
	}

	response.Created(c, org)
}

// List 列出当前用户所属的组织
// @Summary 组织列表
// @Tags 组织
// @Produce json
// @Router /api/organizations [get]
func (h *OrganizationHandler) List(c *gin.Context) {
	ec := middleware.GetExecutionContext(c)

	orgs, err := h.orgService.List(c.Request.Context(), ec)
	if err != nil {
		_ = c.Error(err)
		response.InternalError(c, "Failed to list organizations")
		return
	}

	response.Success(c, gin.H{
		"organizations": orgs,
		"active":        ec.OrgScopeID,
	})
}

// SwitchActive 切换当前组织
// 返回新的 Token 并更新 Cookie
// @Summary 切换组织
// @Tags 组织
// @Accept json
// @Produce json
// @Param body body service.SwitchOrganizationRequest true "组织ID"
// @Success 200 {object} service.SwitchOrganizationResponse
// @Router /api/organizations/active [put]
func (h *OrganizationHandler) SwitchActive(c *gin.Context) {
	ec := middleware.GetExecutionContext(c)

	var req service.SwitchOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, MsgInvalidBody)
		return
	}

	result, err := h.orgService.SwitchActive(c.Request.Context(), ec, &req)
	if err != nil {
		if errors.Is(err, service.ErrNotMember) {
			// 不透露组织是否存在
			response.NotFound(c, "Organization not found")
			return
		}
		_ = c.Error(err)
		response.InternalError(c, "Failed to switch organization")
		return
	}

	setSessionCookie(c, result.AccessToken, int(result.ExpiresIn), h.cookieSecure)
	response.Success(c, result)
}
