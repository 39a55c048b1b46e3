package launcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/ethereum/go-ethereum/metrics/exp"
	"github.com/ethereum/go-ethereum/metrics/prometheus"
	"github.com/ethereum/go-ethereum/node"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/rony4d/go-ethrelay/integration"
	"github.com/rony4d/go-ethrelay/relayapi"
)

// servers are the network endpoints of a running relay.
type servers struct {
	rpc       *rpc.Server
	http      []*http.Server
	endpoints map[string]string // endpoint name to listening address
}

// newRPCServer registers the relay API of node on a fresh RPC server.
func newRPCServer(n *integration.Node) (*rpc.Server, error) {
	srv := rpc.NewServer()
	for _, api := range relayapi.APIs(n) {
		if err := srv.RegisterName(api.Namespace, api.Service); err != nil {
			srv.Stop()
			return nil, err
		}
	}
	return srv, nil
}

// startServers opens the enabled HTTP, WebSocket and metrics endpoints.
func startServers(cfg Config, n *integration.Node) (*servers, error) {
	srv, err := newRPCServer(n)
	if err != nil {
		return nil, err
	}
	s := &servers{rpc: srv, endpoints: make(map[string]string)}

	rpcCfg := cfg.Node.RPC
	if rpcCfg.HTTPEnabled {
		handler := node.NewHTTPHandlerStack(srv, rpcCfg.HTTPCors, rpcCfg.HTTPHosts)
		if err := s.listen("HTTP", rpcCfg.HTTPAddr, rpcCfg.HTTPPort, handler); err != nil {
			s.Stop()
			return nil, err
		}
	}
	if rpcCfg.EnableWS {
		if err := s.listen("WebSocket", rpcCfg.WSAddr, rpcCfg.WSPort, srv.WebsocketHandler(rpcCfg.WSOrigins)); err != nil {
			s.Stop()
			return nil, err
		}
	}
	if cfg.Metrics.Enabled {
		if !metrics.Enabled {
			// meters are registered at package init, only the --metrics flag
			// turns them on early enough
			log.Warn("Metrics were enabled after startup, meters stay empty; pass --metrics")
		}
		go metrics.CollectProcessMetrics(3 * time.Second)

		mux := http.NewServeMux()
		mux.Handle("/debug/metrics", exp.ExpHandler(metrics.DefaultRegistry))
		mux.Handle("/debug/metrics/prometheus", prometheus.Handler(metrics.DefaultRegistry))
		if err := s.listen("metrics", cfg.Metrics.HTTPAddr, cfg.Metrics.HTTPPort, mux); err != nil {
			s.Stop()
			return nil, err
		}
	}
	return s, nil
}

func (s *servers) listen(name, host string, port int, handler http.Handler) error {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%s endpoint %s: %w", name, addr, err)
	}
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("Endpoint stopped", "endpoint", name, "err", err)
		}
	}()
	s.http = append(s.http, server)
	s.endpoints[name] = listener.Addr().String()
	log.Info(name+" endpoint opened", "url", "http://"+listener.Addr().String())
	return nil
}

// Stop closes every endpoint, then the RPC server.
func (s *servers) Stop() {
	for _, server := range s.http {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := server.Shutdown(ctx); err != nil {
			log.Warn("Endpoint shutdown", "err", err)
		}
		cancel()
	}
	s.rpc.Stop()
}
