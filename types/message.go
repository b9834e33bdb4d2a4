package types

import "encoding/json"

// Message types transferred from the client to the server.
const (
	MessageTypeCode          = "code"
	MessageTypeLanguage      = "language"
	MessageTypeTerminals     = "terminals"
	MessageTypeFileSelection = "file-selection"
	MessageTypeChat          = "chat"
	MessageTypeHeartbeat     = "heartbeat"
	MessageTypeLeave         = "leave"
)

// JSON-serialized WebsocketMessage is what is actually sent via the
// Websocket connection, in both directions.
type WebsocketMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Incoming message bodies. Decoded via mapstructure, so unknown fields sent
// by older clients are ignored.

type CodeMessage struct {
	Code   string `json:"code" mapstructure:"code"`
	Filter string `json:"filter" mapstructure:"filter"`
}

type LanguageMessage struct {
	Language string `json:"language" mapstructure:"language"`
}

type TerminalsMessage struct {
	Input     string `json:"input" mapstructure:"input"`
	Output    string `json:"output" mapstructure:"output"`
	IsLoading bool   `json:"is_loading" mapstructure:"is_loading"`
}

type FileSelectionMessage struct {
	File FileRef `json:"file" mapstructure:"file"`
}

type ChatMessage struct {
	Content string `json:"content" mapstructure:"content"`
	Filter  string `json:"filter" mapstructure:"filter"`
}
