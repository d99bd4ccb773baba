// Package ws 提供一个事件驱动的通用 WebSocket 客户端，
// 读写各占一个 goroutine，写入走缓冲队列。
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// EventHandler 定义 WS 消息事件回调
type EventHandler interface {
	OnOpen(c *Client)
	OnMessage(c *Client, msgType int, msg []byte)
	OnError(c *Client, err error)
	OnClose(c *Client)
}

// Client 通用 WebSocket 客户端
type Client struct {
	conn      *websocket.Conn
	handler   EventHandler
	ctx       context.Context
	cancel    context.CancelFunc
	writeCh   chan message
	closeOnce sync.Once
}

type message struct {
	msgType int
	data    []byte
}

// Dial 建立连接并启动读写循环。
// 传入的 ctx 只约束拨号阶段；连接生命周期由 Close 控制。
func Dial(ctx context.Context, url string, header http.Header, handler EventHandler) (*Client, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		conn:    conn,
		handler: handler,
		ctx:     runCtx,
		cancel:  cancel,
		writeCh: make(chan message, 100), // 缓冲写队列
	}

	handler.OnOpen(c)

	go c.readLoop()
	go c.writeLoop()

	return c, nil
}

// readLoop 持续读取消息，出错后通知 handler 并关闭连接
func (c *Client) readLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			msgType, msg, err := c.conn.ReadMessage()
			if err != nil {
				c.handler.OnError(c, err)
				c.Close()
				return
			}
			c.handler.OnMessage(c, msgType, msg)
		}
	}
}

// writeLoop 持续写消息
func (c *Client) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case msg := <-c.writeCh:
			if err := c.conn.WriteMessage(msg.msgType, msg.data); err != nil {
				c.handler.OnError(c, err)
				c.Close()
				return
			}
		}
	}
}

func (c *Client) send(msgType int, data []byte) {
	select {
	case c.writeCh <- message{msgType: msgType, data: data}:
	case <-c.ctx.Done():
	}
}

func (c *Client) SendText(data []byte) {
	c.send(websocket.TextMessage, data)
}

func (c *Client) SendBinary(data []byte) {
	c.send(websocket.BinaryMessage, data)
}

// SendJSON 序列化后作为文本帧发送
func (c *Client) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.send(websocket.TextMessage, data)
	return nil
}

// Close 优雅关闭连接，确保只关闭一次
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			_ = c.conn.Close()
		}
		c.handler.OnClose(c)
	})
}
