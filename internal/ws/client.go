package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ValeZask/EduDiaryGit/internal/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufSize    = 256
)

// Client — одно WebSocket-соединение пользователя. Запись идёт только из
// writeLoop, чтение только из readLoop; снаружи сообщения попадают в клиент
// через канал send (hub.sendToClient).
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan OutgoingMessage
	userID string

	// done закрывается в Close; sendToClient использует его как сторож,
	// чтобы не писать в канал умирающего клиента.
	done   chan struct{}
	cancel context.CancelFunc
	once   sync.Once
	wg     sync.WaitGroup
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan OutgoingMessage, sendBufSize),
		userID: userID,
		done:   make(chan struct{}),
	}
}

// Start запускает циклы чтения и записи; ctx управляет их временем жизни.
func (c *Client) Start(ctx context.Context, cancel context.CancelFunc) {
	c.cancel = cancel
	c.wg.Add(2)
	go c.readLoop(ctx)
	go c.writeLoop(ctx)
}

// Wait блокируется до выхода обоих циклов.
func (c *Client) Wait() {
	c.wg.Wait()
}

// Close останавливает клиента. Повторные вызовы из любых горутин безопасны:
// закрытие соединения разблокирует оба цикла.
func (c *Client) Close() {
	c.once.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		close(c.done)
		c.conn.Close()
	})
}

// setupConn выставляет лимит размера сообщения и keepalive: дедлайн чтения
// продлевается на каждый pong, пинги шлёт writeLoop.
func (c *Client) setupConn() error {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return c.conn.SetReadDeadline(time.Now().Add(pongWait))
}

func (c *Client) readLoop(ctx context.Context) {
	defer c.wg.Done()
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	if err := c.setupConn(); err != nil {
		logger.Errorf("ws setup user=%s: %v", c.userID, err)
		return
	}

	for ctx.Err() == nil {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Errorf("ws read user=%s: %v", c.userID, err)
			}
			return
		}

		var msg IncomingMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			// Битый кадр не повод рвать соединение.
			logger.Errorf("ws decode user=%s: %v", c.userID, err)
			continue
		}
		c.hub.HandleMessage(ctx, c, msg)
	}
}

// writeFrame пишет один кадр с дедлайном записи.
func (c *Client) writeFrame(messageType int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

func (c *Client) writeLoop(ctx context.Context) {
	defer c.wg.Done()
	defer c.conn.Close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := c.writeFrame(websocket.CloseMessage, nil); err != nil {
				logger.Errorf("ws close user=%s: %v", c.userID, err)
			}
			return
		case msg := <-c.send:
			data, err := json.Marshal(msg)
			if err != nil {
				logger.Errorf("ws encode user=%s: %v", c.userID, err)
				continue
			}
			if err := c.writeFrame(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.writeFrame(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
