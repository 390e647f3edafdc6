package router

import (
	"github.com/gin-gonic/gin"

	"z-story-flow-api/internal/interfaces/http/handler"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(v1 *gin.RouterGroup, storySessionHandler *handler.StorySessionHandler) {
	sessions := v1.Group("/story-sessions")
	{
		sessions.POST("", storySessionHandler.CreateSession)
		sessions.GET("/:sid", storySessionHandler.GetSession)
		sessions.DELETE("/:sid", storySessionHandler.EndSession)

		// 交互事件
		sessions.PUT("/:sid/fields/:field", storySessionHandler.SetField)
		sessions.POST("/:sid/actions/:action", storySessionHandler.TriggerAction)
		sessions.POST("/:sid/events", storySessionHandler.PostEvent)

		sessions.GET("/:sid/final-story", storySessionHandler.ExportFinalStory)
	}
}
