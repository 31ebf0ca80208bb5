package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds one outbound frame. The attempt stream ticks once a
	// second, so a write that cannot complete in this window means the peer
	// is gone and the host should drop the connection.
	writeWait = 10 * time.Second

	// idleWait is how long a connection may stay silent before a read fails.
	// Clients ping well inside this window; an attempt left idle longer has
	// lost its student.
	idleWait = 5 * time.Minute
)

// WriteTyped sends one event payload on the attempt stream.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// WriteError reports a rejected action without closing the stream.
func WriteError(conn *websocket.Conn, errMsg string) error {
	return WriteTyped(conn, ErrorResponse{
		Event: EventError,
		Error: errMsg,
	})
}

// ReadJSON decodes the next client action, refreshing the idle deadline.
func ReadJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetReadDeadline(time.Now().Add(idleWait))
	return conn.ReadJSON(v)
}
