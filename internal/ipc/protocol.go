// Package ipc implements the local control-socket protocol between
// syspulsed and its clients: a 4-byte big-endian length prefix followed by a
// JSON payload, one request answered by exactly one response per round trip
// (spec.md §6).
package ipc

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/cyber-boost/syspulse/internal/daemon"
)

// MaxMessageSize caps a single encoded message, matching the ceiling the
// original daemon enforces to keep a misbehaving peer from exhausting
// memory with a bogus length prefix.
const MaxMessageSize = 10 * 1024 * 1024

// RequestType discriminates which fields of Request are meaningful.
type RequestType string

const (
	ReqStart    RequestType = "start"
	ReqStop     RequestType = "stop"
	ReqRestart  RequestType = "restart"
	ReqStatus   RequestType = "status"
	ReqList     RequestType = "list"
	ReqLogs     RequestType = "logs"
	ReqAdd      RequestType = "add"
	ReqRemove   RequestType = "remove"
	ReqShutdown RequestType = "shutdown"
	ReqPing     RequestType = "ping"
)

// Request is the tagged union of every operation a client may ask
// syspulsed to perform. Only the fields relevant to Type are populated.
type Request struct {
	Type        RequestType  `json:"type"`
	Name        string       `json:"name,omitempty"`
	Wait        bool         `json:"wait,omitempty"`
	Force       bool         `json:"force,omitempty"`
	TimeoutSecs *uint64      `json:"timeout_secs,omitempty"`
	Lines       int          `json:"lines,omitempty"`
	Stderr      bool         `json:"stderr,omitempty"`
	Spec        *daemon.Spec `json:"spec,omitempty"`
}

// ResponseType discriminates which fields of Response are meaningful.
type ResponseType string

const (
	RespOk     ResponseType = "ok"
	RespStatus ResponseType = "status"
	RespList   ResponseType = "list"
	RespLogs   ResponseType = "logs"
	RespPong   ResponseType = "pong"
	RespError  ResponseType = "error"
)

// Response is the tagged union syspulsed sends back for every Request.
type Response struct {
	Type      ResponseType      `json:"type"`
	Message   string            `json:"message,omitempty"`
	Instance  *daemon.Instance  `json:"instance,omitempty"`
	Instances []*daemon.Instance `json:"instances,omitempty"`
	Lines     []string          `json:"lines,omitempty"`
	Code      int               `json:"code,omitempty"`
}

// OkResponse builds a Response{Type: ok}.
func OkResponse(message string) Response {
	return Response{Type: RespOk, Message: message}
}

// ErrorResponse builds a Response{Type: error} from an IPC status code.
func ErrorResponse(code int, message string) Response {
	return Response{Type: RespError, Code: code, Message: message}
}

// EncodeMessage serializes msg as a length-prefixed JSON frame.
func EncodeMessage(msg any) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("ipc: encode message: %w", err)
	}
	if len(body) > MaxMessageSize {
		return nil, fmt.Errorf("ipc: message too large (%d bytes)", len(body))
	}
	buf := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(body)))
	copy(buf[4:], body)
	return buf, nil
}

// WriteMessage writes msg to w as a length-prefixed JSON frame.
func WriteMessage(w io.Writer, msg any) error {
	buf, err := EncodeMessage(msg)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

// ReadMessage reads one length-prefixed JSON frame from r into out.
// A clean EOF before any bytes are read returns (false, nil).
func ReadMessage(r *bufio.Reader, out any) (bool, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.EOF {
			return false, nil
		}
		return false, fmt.Errorf("ipc: read length prefix: %w", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxMessageSize {
		return false, fmt.Errorf("ipc: message too large (%d bytes)", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return false, fmt.Errorf("ipc: read message body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("ipc: decode message: %w", err)
	}
	return true, nil
}
