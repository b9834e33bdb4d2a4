package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mitchellh/mapstructure"
	"github.com/tcriess/lightspeed-code/globals"
	"github.com/tcriess/lightspeed-code/types"
)

const sendChannelSize = 1000

// SessionState is the lifecycle of one websocket session.
type SessionState int

const (
	SessionConnecting SessionState = iota
	SessionActive
	SessionLeaving
	SessionDisconnected
	SessionClosed
)

// Client is a middleman between the websocket connection and the hub. One
// client is one session: the same user connected from two tabs holds two
// clients.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	Send chan []byte

	user      *types.User
	sessionId string

	// Publish-side debouncing, one debouncer per state-bearing message type
	// so a burst of keystrokes does not delay a language switch.
	codeDebouncer      *Debouncer
	languageDebouncer  *Debouncer
	terminalsDebouncer *Debouncer
	selectionDebouncer *Debouncer

	state   SessionState
	stateMu sync.Mutex

	doneChan chan struct{}

	// WaitGroup which keeps track of running read/write loops and write
	// access to Send. If the WaitGroup is done, it is safe to close all
	// channels (all loops are done and there are no more write operations on
	// the channels)
	sync.WaitGroup
}

func NewClient(hub *Hub, conn *websocket.Conn, user *types.User, doneChan chan struct{}) *Client {
	window := hub.Cfg.SyncConfig.Window()
	return &Client{
		hub:                hub,
		conn:               conn,
		Send:               make(chan []byte, sendChannelSize),
		user:               user,
		sessionId:          uuid.NewString(),
		codeDebouncer:      NewDebouncer(window),
		languageDebouncer:  NewDebouncer(window),
		terminalsDebouncer: NewDebouncer(window),
		selectionDebouncer: NewDebouncer(window),
		doneChan:           doneChan,
	}
}

func (c *Client) SessionId() string {
	return c.sessionId
}

func (c *Client) User() *types.User {
	return c.user
}

func (c *Client) State() SessionState {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

func (c *Client) setState(state SessionState) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.state = state
}

// CloseConn force-closes the underlying connection (heartbeat lapse). The
// read loop exits on the closed connection and tears the session down.
func (c *Client) CloseConn() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// SendSnapshot pushes the initial room snapshot to this session. History
// events carrying a target filter are only replayed to sessions the filter
// matches, same as on live delivery.
func (c *Client) SendSnapshot() {
	snapshot := c.hub.GetSnapshot(c.user.Id)
	history := make([]*types.Event, 0, len(snapshot.History))
	for _, evt := range snapshot.History {
		if c.EvaluateFilterEvent(evt) {
			history = append(history, evt)
		}
	}
	snapshot.History = history
	data, err := json.Marshal(types.WireSnapshot{Snapshot: snapshot})
	if err != nil {
		globals.AppLogger.Error("could not marshal snapshot", "error", err)
		return
	}
	c.hub.RLock()
	defer c.hub.RUnlock()
	if _, ok := c.hub.clients[c]; !ok {
		return
	}
	select {
	case c.Send <- data:
	default:
		globals.AppLogger.Warn("send channel full, dropping snapshot", "user", c.user.Id)
	}
}

// publish builds an event from the current session and hands it to the hub.
func (c *Client) publish(name, targetFilter string, payload interface{}) {
	event, err := types.NewEvent(c.hub.Room, c.user, targetFilter, name, payload)
	if err != nil {
		globals.AppLogger.Error("could not create event", "name", name, "error", err)
		return
	}
	c.hub.BroadcastEvents <- []*types.Event{event}
}

// flushDebouncers publishes pending debounced values on teardown so the
// last change of a closing session is not lost.
func (c *Client) flushDebouncers() {
	c.codeDebouncer.Flush()
	c.languageDebouncer.Flush()
	c.terminalsDebouncer.Flush()
	c.selectionDebouncer.Flush()
}

// ReadLoop pumps messages from the websocket connection to the hub.
//
// The application runs ReadLoop in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) ReadLoop() {
	defer func() {
		c.flushDebouncers()
		c.conn.Close()
		close(c.doneChan)
		c.Done()
	}()
	c.setState(SessionActive)
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.hub.Presence.Heartbeat(c.user.Id)
		return nil
	})
	message := &types.WebsocketMessage{}
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				globals.AppLogger.Info("ws closed unexpectedly", "error", err)
			}
			c.setState(SessionDisconnected)
			return
		}

		err = json.Unmarshal(raw, &message)
		if err != nil {
			globals.AppLogger.Error("could not unmarshal ws message", "error", err)
			return
		}

		dataMap := make(map[string]interface{})
		if len(message.Data) > 0 {
			if err := json.Unmarshal(message.Data, &dataMap); err != nil {
				globals.AppLogger.Error("could not unmarshal ws message data", "error", err)
				return
			}
		}

		switch message.Event {
		case types.MessageTypeCode:
			msg := types.CodeMessage{}
			if err := mapstructure.WeakDecode(dataMap, &msg); err != nil {
				globals.AppLogger.Error("could not decode code message", "error", err)
				return
			}
			c.codeDebouncer.Trigger(func() {
				c.publish(types.EventNameCode, msg.Filter, types.CodePayload{Code: msg.Code})
			})

		case types.MessageTypeLanguage:
			msg := types.LanguageMessage{}
			if err := mapstructure.WeakDecode(dataMap, &msg); err != nil {
				globals.AppLogger.Error("could not decode language message", "error", err)
				return
			}
			c.languageDebouncer.Trigger(func() {
				c.publish(types.EventNameLanguage, "", types.LanguagePayload{Language: msg.Language})
			})

		case types.MessageTypeTerminals:
			msg := types.TerminalsMessage{}
			if err := mapstructure.WeakDecode(dataMap, &msg); err != nil {
				globals.AppLogger.Error("could not decode terminals message", "error", err)
				return
			}
			c.terminalsDebouncer.Trigger(func() {
				c.publish(types.EventNameTerminals, "", types.TerminalPayload{
					Input:     msg.Input,
					Output:    msg.Output,
					IsLoading: msg.IsLoading,
				})
			})

		case types.MessageTypeFileSelection:
			msg := types.FileSelectionMessage{}
			if err := mapstructure.WeakDecode(dataMap, &msg); err != nil {
				globals.AppLogger.Error("could not decode file selection message", "error", err)
				return
			}
			c.selectionDebouncer.Trigger(func() {
				c.publish(types.EventNameFileSelection, "", types.FileSelectionPayload{
					File:     &msg.File,
					Username: c.user.Name,
				})
			})

		case types.MessageTypeChat:
			// chat messages are not debounced, every message counts
			msg := types.ChatMessage{}
			if err := mapstructure.WeakDecode(dataMap, &msg); err != nil {
				globals.AppLogger.Error("could not decode chat message", "error", err)
				return
			}
			c.publish(types.EventNameChat, msg.Filter, types.ChatPayload{
				Content:  msg.Content,
				Username: c.user.Name,
			})

		case types.MessageTypeHeartbeat:
			c.hub.Presence.Heartbeat(c.user.Id)

		case types.MessageTypeLeave:
			c.setState(SessionLeaving)
			return

		default:
			globals.AppLogger.Warn("unknown ws message type", "type", message.Event)
		}
	}
}

// WriteLoop pumps messages from the hub to the websocket connection.
//
// A goroutine running WriteLoop is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WriteLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.Done()
	}()
	for {
		select {
		case <-c.doneChan:
			return
		default:
		}
		select {
		case message, ok := <-c.Send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.doneChan:
			return
		}
	}
}
