package ipc

import (
	"bufio"
	"fmt"
	"net"
)

// Client is a thin synchronous wrapper over a single control-socket
// connection: one Call is one request followed by its matching response.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
}

// Connect dials the control socket/pipe at path.
func Connect(path string) (*Client, error) {
	conn, err := Dial(path)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, reader: bufio.NewReader(conn)}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// Call sends req and waits for the matching response.
func (c *Client) Call(req Request) (Response, error) {
	if err := WriteMessage(c.conn, req); err != nil {
		return Response{}, err
	}
	var resp Response
	ok, err := ReadMessage(c.reader, &resp)
	if err != nil {
		return Response{}, err
	}
	if !ok {
		return Response{}, fmt.Errorf("ipc: connection closed before response")
	}
	return resp, nil
}
