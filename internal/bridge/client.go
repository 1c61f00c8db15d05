package bridge

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/roach88/procnet/internal/ir"
	"github.com/roach88/procnet/internal/propsync"
)

// Client is a peer connection to a Server, used by tools and tests.
type Client struct {
	conn *websocket.Conn

	writeMu   sync.Mutex
	updates   chan propsync.Update
	responses chan propsync.Response
	done      chan struct{}
}

// Dial connects to a bridge at url ("ws://host/path").
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	c := &Client{
		conn:      conn,
		updates:   make(chan propsync.Update, sendBuffer),
		responses: make(chan propsync.Response, sendBuffer),
		done:      make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Updates delivers pushed property updates and removal notices.
func (c *Client) Updates() <-chan propsync.Update { return c.updates }

// Responses delivers command responses in request order.
func (c *Client) Responses() <-chan propsync.Response { return c.responses }

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} { return c.done }

// Send writes one command.
func (c *Client) Send(cmd propsync.Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Subscribe sends a subscribe command.
func (c *Client) Subscribe(path, id string) error {
	return c.Send(propsync.Command{Command: propsync.CmdSubscribe, Path: path, ID: id})
}

// Set sends a property.set command.
func (c *Client) Set(path string, v ir.Value) error {
	cmd, err := propsync.NewSetCommand(path, v)
	if err != nil {
		return err
	}
	return c.Send(cmd)
}

// Close sends a close frame and releases the connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	err := c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	c.conn.Close()
	<-c.done
	return err
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.updates)
	defer close(c.responses)
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var envelope struct {
			Command string `json:"command"`
		}
		if json.Unmarshal(msg, &envelope) != nil {
			continue
		}
		switch envelope.Command {
		case propsync.CmdUpdate, propsync.CmdRemoved:
			var u propsync.Update
			if json.Unmarshal(msg, &u) == nil {
				c.updates <- u
			}
		default:
			var r propsync.Response
			if json.Unmarshal(msg, &r) == nil {
				c.responses <- r
			}
		}
	}
}
