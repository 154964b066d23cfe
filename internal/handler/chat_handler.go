package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"lawspark-go/internal/model"
	"lawspark-go/internal/service"
	"lawspark-go/pkg/apperrors"
	"lawspark-go/pkg/log"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // 允许所有来源
		},
	}
)

// ChatHandler 负责问答接口和 WebSocket 聊天连接。
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Ask 检索、生成并返回回答及其来源。
func (h *ChatHandler) Ask(c *gin.Context) {
	requester, ok := currentRequester(c)
	if !ok {
		return
	}
	var req model.ChatAskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "query is required")
		return
	}
	ans, err := h.chatService.Ask(c.Request.Context(), requester, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, ans)
}

func (h *ChatHandler) History(c *gin.Context) {
	requester, ok := currentRequester(c)
	if !ok {
		return
	}
	history, err := h.chatService.History(c.Request.Context(), requester.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, history)
}

func (h *ChatHandler) ClearHistory(c *gin.Context) {
	requester, ok := currentRequester(c)
	if !ok {
		return
	}
	if err := h.chatService.ClearHistory(c.Request.Context(), requester.UserID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, nil)
}

// Handle 处理一个传入的 WebSocket 连接，每个文本帧是一个问题。
func (h *ChatHandler) Handle(c *gin.Context) {
	requester, ok := currentRequester(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("[ChatHandler] WebSocket 连接已建立, user=%s", requester.UserID)

	for {
		msgType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("[ChatHandler] 从 WebSocket 读取消息失败: %v", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		query := parseQuestion(message)
		log.Infof("[ChatHandler] 收到问题, user=%s, query=%s", requester.UserID, query)

		if err := h.chatService.StreamResponse(c.Request.Context(), requester, query, conn); err != nil {
			log.Errorf("[ChatHandler] 处理流式响应失败: %v", err)
			writeWSError(conn, err)
		}
	}
}

// parseQuestion 支持纯文本或 {"query": "..."}。
func parseQuestion(message []byte) string {
	var payload struct {
		Query string `json:"query"`
	}
	trimmed := strings.TrimSpace(string(message))
	if strings.HasPrefix(trimmed, "{") && json.Unmarshal(message, &payload) == nil && payload.Query != "" {
		return payload.Query
	}
	return trimmed
}

func writeWSError(conn *websocket.Conn, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "服务器内部错误"
	}
	b, _ := json.Marshal(map[string]interface{}{
		"type":      "error",
		"code":      status,
		"error":     message,
		"timestamp": time.Now().UnixMilli(),
	})
	_ = conn.WriteMessage(websocket.TextMessage, b)
}
