package cli

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/getrelayd/relayd/pkg/config"
	"github.com/getrelayd/relayd/pkg/conn"
	"github.com/getrelayd/relayd/pkg/httpmsg"
	"github.com/getrelayd/relayd/pkg/logging"
	"github.com/getrelayd/relayd/pkg/metrics"
	"github.com/getrelayd/relayd/pkg/peer"
	"github.com/getrelayd/relayd/pkg/transport"
	"github.com/getrelayd/relayd/pkg/wsmsg"
)

const stopTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg := config.Default()
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	log := logging.New(logging.Config{
		Level:      logging.ParseLevel(cfg.Logging.Level),
		Format:     logging.Format(cfg.Logging.Format),
		ShipperURL: cfg.Logging.ShipperURL,
	})
	slog.SetDefault(log)
	conn.SetLogger(log)
	reg := metrics.Init()

	installEngines(cfg, log)
	defer func() {
		conn.UnregisterDecoders()
		for _, p := range []conn.Proto{conn.ProtoHTTP, conn.ProtoWS} {
			conn.Unregister(p)
		}
	}()

	peers := peer.NewRegistry()
	servers := make([]*transport.Server, 0, len(cfg.Listeners))
	for _, l := range cfg.Listeners {
		s, err := buildServer(l, cfg.Limits, peers, log)
		if err != nil {
			return err
		}
		if err := s.Start(); err != nil {
			return err
		}
		servers = append(servers, s)
	}

	upstreams := dialUpstreams(cfg, peers, log)

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", reg.Handler())
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics endpoint failed", slog.Any("error", err))
			}
		}()
		log.Info("metrics endpoint started", slog.String("addr", cfg.Metrics.Addr))
	}

	log.Info("relayd started", slog.Int("listeners", len(servers)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Info("shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	for _, s := range servers {
		if err := s.Stop(stopCtx); err != nil {
			log.Warn("listener stop incomplete", slog.Any("error", err))
		}
	}
	for _, c := range upstreams {
		if err := c.Shutdown(false); err != nil {
			log.Debug("upstream shutdown hook failed",
				slog.String("conn", c.ID()), slog.Any("error", err))
		}
		if closer, ok := c.Sock().(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(stopCtx)
	}
	return nil
}

// dialUpstreams pre-establishes a client connection per configured
// upstream. A failed dial is logged and skipped; the daemon still
// serves its listeners.
func dialUpstreams(cfg *config.Config, peers *peer.Registry, log *slog.Logger) []*conn.Conn {
	out := make([]*conn.Conn, 0, len(cfg.Upstreams))
	for _, u := range cfg.Upstreams {
		proto, err := config.ParseProto(u.Proto)
		if err != nil {
			log.Warn("skipping upstream", slog.String("addr", u.Addr), slog.Any("error", err))
			continue
		}
		d := &transport.Dialer{
			Proto:       proto,
			Timeout:     5 * time.Second,
			ReadBufSize: cfg.Limits.ReadBufSize,
			Peers:       peers,
			Log:         log,
		}
		if proto.Secure() {
			host, _, err := net.SplitHostPort(u.Addr)
			if err != nil {
				host = u.Addr
			}
			d.TLSConfig = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		c, err := d.Dial(ctx, u.Addr)
		cancel()
		if err != nil {
			log.Warn("upstream dial failed", slog.String("addr", u.Addr), slog.Any("error", err))
			continue
		}
		log.Info("upstream connected",
			slog.String("addr", u.Addr), slog.String("conn", c.ID()))
		out = append(out, c)
	}
	return out
}

// installEngines registers the protocol hook sets and decoders. The
// secure variants share the plain registrations via the tag's base.
func installEngines(cfg *config.Config, log *slog.Logger) {
	depth := cfg.Limits.SendQueueDepth

	conn.Register(conn.ProtoHTTP, &httpmsg.Hooks{QueueDepth: depth, Log: log})
	conn.RegisterHTTPDecoder(&httpmsg.Framer{
		MaxMessageSize: cfg.Limits.MaxMessageSize,
	})

	conn.Register(conn.ProtoWS, &wsmsg.Hooks{QueueDepth: depth, Log: log})
	conn.RegisterWSDecoder(&wsmsg.Framer{
		MaxFrameSize: cfg.Limits.MaxMessageSize,
		RequireMask:  true,
	})
}

func buildServer(l config.Listener, limits config.Limits, peers *peer.Registry, log *slog.Logger) (*transport.Server, error) {
	proto, err := config.ParseProto(l.Proto)
	if err != nil {
		return nil, err
	}

	tc := transport.Config{
		Addr:        l.Addr,
		Proto:       proto,
		MaxConns:    limits.MaxConns,
		ReadBufSize: limits.ReadBufSize,
	}
	if proto.Secure() {
		switch {
		case l.CertFile != "":
			tc.TLSConfig, err = transport.LoadTLSConfig(l.CertFile, l.KeyFile)
		default:
			log.Warn("no certificate configured, generating self-signed",
				slog.String("addr", l.Addr))
			tc.TLSConfig, err = transport.SelfSignedTLSConfig()
		}
		if err != nil {
			return nil, fmt.Errorf("listener %s: %w", l.Addr, err)
		}
	}
	return transport.NewServer(tc, peers, log), nil
}
