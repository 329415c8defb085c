package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"momentummail/backend/internal/domain"
	"momentummail/backend/internal/tracker"
)

// EmailHandler 处理已发送邮件跟踪相关请求
type EmailHandler struct {
	registry *tracker.Registry
	owner    string
	log      *zap.Logger
}

// NewEmailHandler 创建处理器，所有请求归属同一个逻辑所有者
func NewEmailHandler(registry *tracker.Registry, owner string, log *zap.Logger) *EmailHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &EmailHandler{registry: registry, owner: owner, log: log}
}

type emailListData struct {
	Emails []domain.TrackedEmail `json:"emails"`
}

type emailData struct {
	Email domain.TrackedEmail `json:"email"`
}

// listEmails godoc
// @Summary 列出跟踪邮件
// @Description 按插入顺序返回所有跟踪中的邮件
// @Tags Emails
// @Produce json
// @Success 200 {object} Response{data=emailListData}
// @Failure 500 {object} Response
// @Router /api/emails [get]
func (h *EmailHandler) listEmails(c *gin.Context) {
	t, err := h.registry.Get(c.Request.Context(), h.owner)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	emails, err := t.List(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	Success(c, emailListData{Emails: emails})
}

// createEmail godoc
// @Summary 跟踪新邮件
// @Description 记录一封已发送邮件，状态为 WAITING
// @Tags Emails
// @Accept json
// @Produce json
// @Param email body createEmailRequest true "邮件信息"
// @Success 201 {object} Response{data=emailData}
// @Failure 400 {object} Response
// @Failure 500 {object} Response
// @Router /api/emails [post]
func (h *EmailHandler) createEmail(c *gin.Context) {
	var req createEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	t, err := h.registry.Get(c.Request.Context(), h.owner)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	email, err := t.Create(c.Request.Context(), req.toInput())
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	Created(c, emailData{Email: email})
}

// updateStatus godoc
// @Summary 更新邮件状态
// @Description 手动设置邮件状态，例如标记为已回复
// @Tags Emails
// @Accept json
// @Produce json
// @Param id path string true "邮件ID"
// @Param status body updateStatusRequest true "新状态"
// @Success 200 {object} Response{data=emailData}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Failure 500 {object} Response
// @Router /api/emails/{id}/status [put]
func (h *EmailHandler) updateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	status, err := domain.ParseEmailStatus(req.Status)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	t, err := h.registry.Get(c.Request.Context(), h.owner)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	email, err := t.SetStatus(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	Success(c, emailData{Email: email})
}
