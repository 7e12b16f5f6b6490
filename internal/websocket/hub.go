package websocket

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/Kirifer/ITS-certificate-generator/internal/notify"
)

// Hub 管理审批实时订阅的 WebSocket 连接
// 审批人按邮箱订阅,提交产生的审批请求事件会推送给对应的连接
type Hub struct {
	// 已注册的客户端
	clients map[*Client]bool

	// 注册新客户端
	Register chan *Client

	// 注销客户端
	Unregister chan *Client

	// 广播消息到所有客户端
	Broadcast chan []byte

	// 互斥锁,保护 clients map
	mu sync.RWMutex
}

// NewHub 创建新的 Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan []byte),
	}
}

// Run 运行 Hub
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()

		case message := <-h.Broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					close(client.Send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastToEmail 向订阅指定邮箱的客户端推送消息(邮箱匹配忽略大小写)
func (h *Hub) BroadcastToEmail(email string, message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if strings.EqualFold(client.Email, email) {
			select {
			case client.Send <- message:
			default:
				close(client.Send)
				delete(h.clients, client)
			}
		}
	}
}

// ClientCount 获取客户端数量
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// NotifyApprovalRequested 实现 notify.Notifier,把审批请求事件推给订阅的审批人
func (h *Hub) NotifyApprovalRequested(ctx context.Context, event *notify.ApprovalRequestedEvent) error {
	payload, err := json.Marshal(map[string]interface{}{
		"type":  "approval_requested",
		"event": event,
	})
	if err != nil {
		return err
	}
	h.BroadcastToEmail(event.ApproverEmail, payload)
	return nil
}

// NotifyApprovalResolved 实现 notify.Notifier,把审批结果事件推给订阅的审批人
func (h *Hub) NotifyApprovalResolved(ctx context.Context, event *notify.ApprovalResolvedEvent) error {
	payload, err := json.Marshal(map[string]interface{}{
		"type":  "approval_resolved",
		"event": event,
	})
	if err != nil {
		return err
	}
	h.BroadcastToEmail(event.ApproverEmail, payload)
	return nil
}
