// Package bridge serves the iperf3 keywords over JSON-RPC 2.0 so that an
// automation framework on another host can drive measurements on this one.
// The RPC plumbing is sourcegraph/jsonrpc2; this package only maps methods
// to keywords and errors to response codes.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/lexcodex/iperfkw/iperf3"
)

var keywordNames = []string{"start_server", "stop_server", "run_client"}

// Server dispatches JSON-RPC calls to one keyword facade instance.
//
// Whether concurrent calls from multiple connections interleave is up to
// jsonrpc2; running more than one server or client keyword at a time
// against the same facade is not a supported usage pattern and no internal
// locking is provided.
type Server struct {
	kw     *iperf3.Iperf3
	logger *log.Logger
}

// NewServer builds a bridge around the given facade. A nil logger falls
// back to log.Default().
func NewServer(kw *iperf3.Iperf3, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{kw: kw, logger: logger}
}

// Serve accepts connections until ctx is canceled or the listener fails.
// On the way out the facade is closed so an owned server process does not
// stay tracked past shutdown.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	defer func() {
		if err := s.kw.Close(); err != nil {
			s.logger.Printf("teardown: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		_ = lis.Close()
	}()

	var wg sync.WaitGroup
	for {
		conn, err := lis.Accept()
		if err != nil {
			wg.Wait()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		wg.Add(1)
		go func(conn net.Conn) {
			defer wg.Done()
			stream := jsonrpc2.NewBufferedStream(conn, jsonrpc2.PlainObjectCodec{})
			rpc := jsonrpc2.NewConn(ctx, stream, jsonrpc2.HandlerWithError(s.handle))
			select {
			case <-rpc.DisconnectNotify():
			case <-ctx.Done():
				_ = rpc.Close()
				<-rpc.DisconnectNotify()
			}
		}(conn)
	}
}

type startServerParams struct {
	ServerPort  int    `json:"server_port"`
	BindAddress string `json:"bind_address"`
}

type runClientParams struct {
	ServerAddress string `json:"server_address"`
	ServerPort    int    `json:"server_port"`
	BindAddress   string `json:"bind_address"`
	Protocol      string `json:"protocol"`
	Duration      int    `json:"duration"`
	NumStreams    int    `json:"num_streams"`
	Reverse       any    `json:"reverse"`
	Bitrate       string `json:"bitrate"`
	NumBytes      string `json:"num_bytes"`
	Bidir         any    `json:"bidir"`
	TOS           any    `json:"tos"`
	DSCP          any    `json:"dscp"`
}

func (s *Server) handle(ctx context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	s.logger.Printf("rpc %s", req.Method)

	switch req.Method {
	case "get_keyword_names":
		return keywordNames, nil

	case "start_server":
		var p startServerParams
		if err := unmarshalParams(req, &p); err != nil {
			return nil, err
		}
		if err := s.kw.StartServer(iperf3.ServerOptions{
			Port:        p.ServerPort,
			BindAddress: p.BindAddress,
		}); err != nil {
			return nil, rpcError(err)
		}
		return nil, nil

	case "stop_server":
		stats, err := s.kw.StopServer()
		if err != nil {
			return nil, rpcError(err)
		}
		return stats, nil

	case "run_client":
		var p runClientParams
		if err := unmarshalParams(req, &p); err != nil {
			return nil, err
		}
		report, err := s.kw.RunClient(iperf3.ClientOptions{
			ServerAddress: p.ServerAddress,
			Port:          p.ServerPort,
			BindAddress:   p.BindAddress,
			Protocol:      p.Protocol,
			Duration:      p.Duration,
			NumStreams:    p.NumStreams,
			Reverse:       p.Reverse,
			Bitrate:       p.Bitrate,
			NumBytes:      p.NumBytes,
			Bidir:         p.Bidir,
			TOS:           flagText(p.TOS),
			DSCP:          flagText(p.DSCP),
		})
		if err != nil {
			return nil, rpcError(err)
		}
		return report, nil

	default:
		return nil, &jsonrpc2.Error{
			Code:    jsonrpc2.CodeMethodNotFound,
			Message: fmt.Sprintf("method %s not handled", req.Method),
		}
	}
}

// unmarshalParams decodes request params with UseNumber so numeric
// pass-through fields keep their textual form.
func unmarshalParams(req *jsonrpc2.Request, v any) error {
	if req.Params == nil {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(*req.Params))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
	}
	return nil
}

// flagText renders a pass-through field that may arrive as a JSON number
// or a string (tos and dscp accept both numeric and symbolic forms).
func flagText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func rpcError(err error) error {
	code := int64(jsonrpc2.CodeInternalError)
	if errors.Is(err, iperf3.ErrInvalidArgument) {
		code = jsonrpc2.CodeInvalidParams
	}
	return &jsonrpc2.Error{Code: code, Message: err.Error()}
}
