package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	// An idle participant is disconnected after readWait; the client pings well within it.
	readWait = 5 * time.Minute
)

// WriteEvent sends an event with its payload.
func WriteEvent(conn *websocket.Conn, event Event, data any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(Envelope{Event: event, Data: data})
}

// WriteError sends an EventError.
func WriteError(conn *websocket.Conn, code, message string) error {
	return WriteEvent(conn, EventError, ErrorData{Code: code, Message: message})
}

// ReadRequest reads and decodes the next client message.
func ReadRequest(conn *websocket.Conn) (Request, error) {
	var req Request
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	err := conn.ReadJSON(&req)
	return req, err
}
