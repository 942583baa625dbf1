// Package websocket carries a UART line over a websocket connection, one
// binary frame per write.
package websocket

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"
)

// Dial opens a websocket line to rawURL (ws:// or wss://).
func Dial(ctx context.Context, rawURL string) (*websocket.Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	origin := "http://" + u.Host
	if u.Scheme == "wss" {
		origin = "https://" + u.Host
	}
	config, err := websocket.NewConfig(rawURL, origin)
	if err != nil {
		return nil, err
	}
	config.Dialer = &net.Dialer{}
	if deadline, ok := ctx.Deadline(); ok {
		config.Dialer.Deadline = deadline
	}
	conn, err := websocket.DialConfig(config)
	if err != nil {
		return nil, err
	}
	conn.PayloadType = websocket.BinaryFrame
	glog.Infof("websocket: line %s", rawURL)
	return conn, nil
}

// Handler serves each incoming websocket as a line passed to fn. The
// connection is closed when fn returns.
func Handler(fn func(io.ReadWriteCloser)) http.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		conn.PayloadType = websocket.BinaryFrame
		glog.V(1).Infof("websocket: peer %s", conn.Request().RemoteAddr)
		fn(conn)
	})
}
