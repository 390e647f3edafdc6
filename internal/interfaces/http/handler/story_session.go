// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"z-story-flow-api/internal/application/storyflow"
	"z-story-flow-api/internal/domain/entity"
	"z-story-flow-api/internal/interfaces/http/dto"
	"z-story-flow-api/pkg/errors"
	"z-story-flow-api/pkg/logger"
)

// StorySessionService 故事会话应用服务
type StorySessionService interface {
	CreateSession(ctx context.Context) (*entity.StorySession, *storyflow.View, error)
	GetView(ctx context.Context, sessionID string) (*storyflow.View, error)
	EndSession(ctx context.Context, sessionID string) error
	Dispatch(ctx context.Context, sessionID string, ev storyflow.Event) (*storyflow.DispatchResult, error)
	ExportFinalStory(ctx context.Context, sessionID string) (string, string, error)
}

// StorySessionHandler 故事会话处理器
type StorySessionHandler struct {
	svc StorySessionService
}

// NewStorySessionHandler 创建故事会话处理器
func NewStorySessionHandler(svc StorySessionService) *StorySessionHandler {
	return &StorySessionHandler{svc: svc}
}

// CreateSession 创建会话
// @Summary 创建故事会话
// @Tags StorySessions
// @Produce json
// @Success 201 {object} dto.Response[dto.CreateSessionResponse]
// @Router /v1/story-sessions [post]
func (h *StorySessionHandler) CreateSession(c *gin.Context) {
	ctx := c.Request.Context()

	sess, view, err := h.svc.CreateSession(ctx)
	if err != nil {
		respondError(c, "failed to create story session", err)
		return
	}

	dto.Created(c, &dto.CreateSessionResponse{
		Session: dto.ToSessionResponse(sess),
		View:    dto.ToViewResponse(view),
	})
}

// GetSession 获取会话视图
// @Summary 获取故事会话
// @Tags StorySessions
// @Produce json
// @Param sid path string true "会话 ID"
// @Success 200 {object} dto.Response[dto.ViewResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/story-sessions/{sid} [get]
func (h *StorySessionHandler) GetSession(c *gin.Context) {
	view, err := h.svc.GetView(c.Request.Context(), dto.BindSessionID(c))
	if err != nil {
		respondError(c, "failed to get story session", err)
		return
	}
	dto.Success(c, dto.ToViewResponse(view))
}

// EndSession 结束会话
// @Summary 结束故事会话
// @Tags StorySessions
// @Param sid path string true "会话 ID"
// @Success 204
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/story-sessions/{sid} [delete]
func (h *StorySessionHandler) EndSession(c *gin.Context) {
	if err := h.svc.EndSession(c.Request.Context(), dto.BindSessionID(c)); err != nil {
		respondError(c, "failed to end story session", err)
		return
	}
	dto.NoContent(c)
}

// SetField 设置字段
// @Summary 设置会话字段
// @Tags StorySessions
// @Accept json
// @Produce json
// @Param sid path string true "会话 ID"
// @Param field path string true "字段键"
// @Param body body dto.SetFieldRequest true "字段值"
// @Success 200 {object} dto.Response[dto.DispatchResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/story-sessions/{sid}/fields/{field} [put]
func (h *StorySessionHandler) SetField(c *gin.Context) {
	var req dto.SetFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	h.dispatch(c, req.ToEvent(c.Param("field")))
}

// TriggerAction 触发动作
// @Summary 触发会话动作
// @Tags StorySessions
// @Accept json
// @Produce json
// @Param sid path string true "会话 ID"
// @Param action path string true "动作名"
// @Param body body dto.ActionRequest false "动作文本"
// @Success 200 {object} dto.Response[dto.DispatchResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/story-sessions/{sid}/actions/{action} [post]
func (h *StorySessionHandler) TriggerAction(c *gin.Context) {
	var req dto.ActionRequest
	// 请求体可选，空请求体（包括分块传输）解码得到 io.EOF
	if err := c.ShouldBindJSON(&req); err != nil && !stderrors.Is(err, io.EOF) {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	h.dispatch(c, storyflow.Action(c.Param("action"), req.Text))
}

// PostEvent 提交交互层事件
// @Summary 提交会话事件
// @Tags StorySessions
// @Accept json
// @Produce json
// @Param sid path string true "会话 ID"
// @Param body body dto.EventRequest true "事件"
// @Success 200 {object} dto.Response[dto.DispatchResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/story-sessions/{sid}/events [post]
func (h *StorySessionHandler) PostEvent(c *gin.Context) {
	var req dto.EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	h.dispatch(c, req.ToEvent())
}

// ExportFinalStory 下载最终故事
// @Summary 导出最终故事
// @Tags StorySessions
// @Produce plain
// @Param sid path string true "会话 ID"
// @Success 200 {string} string
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/story-sessions/{sid}/final-story [get]
func (h *StorySessionHandler) ExportFinalStory(c *gin.Context) {
	name, text, err := h.svc.ExportFinalStory(c.Request.Context(), dto.BindSessionID(c))
	if err != nil {
		respondError(c, "failed to export final story", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(text))
}

func (h *StorySessionHandler) dispatch(c *gin.Context, ev storyflow.Event) {
	result, err := h.svc.Dispatch(c.Request.Context(), dto.BindSessionID(c), ev)
	if err != nil {
		respondError(c, "failed to dispatch story event", err)
		return
	}
	dto.Success(c, dto.ToDispatchResponse(result))
}

// respondError 服务端错误记录日志，客户端错误直接返回
func respondError(c *gin.Context, msg string, err error) {
	appErr := errors.AsAppError(err)
	if appErr.HTTPStatus >= http.StatusInternalServerError || appErr.HTTPStatus == 0 {
		logger.Error(c.Request.Context(), msg, err)
	}
	dto.AppError(c, appErr)
}
