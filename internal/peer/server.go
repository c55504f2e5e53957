// FILE: internal/peer/server.go
package peer

import (
	"context"
	"net"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"sockprobe/internal/shared"
	"sockprobe/internal/shared/logger"
)

// MaxCapture bounds how many received bytes are kept per connection.
const MaxCapture = 64 << 10

// ConnStats 是单个连接结束时的统计信息。
type ConnStats struct {
	Remote        string
	BytesReceived int64
	BytesEchoed   int64
	Reads         int
	FirstRead     string
	Payload       []byte // 最多 MaxCapture 字节
}

// Stats aggregates all connections served so far.
type Stats struct {
	Connections   int
	BytesReceived int64
	BytesSent     int64
}

// Server is an echo-capable TCP listener: it greets every client and then
// echoes whatever it reads until the client goes away.
type Server struct {
	Greeting string
	Echo     bool
	// OnClose, if set, is called once per connection after it is finished.
	OnClose func(ConnStats)

	log         zerolog.Logger
	connections atomic.Int64
	received    atomic.Int64
	sent        atomic.Int64
}

// New creates a greeting + echo server.
func New(greeting string) *Server {
	return &Server{
		Greeting: greeting,
		Echo:     true,
		log:      logger.WithComponent("peer"),
	}
}

// Stats returns a snapshot of the aggregate counters.
func (s *Server) Stats() Stats {
	return Stats{
		Connections:   int(s.connections.Load()),
		BytesReceived: s.received.Load(),
		BytesSent:     s.sent.Load(),
	}
}

// Serve accepts connections on ln until ctx is cancelled. It closes ln and all
// open connections on the way out and returns nil after a cancellation.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		return ln.Close()
	})

	g.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return err
			}
			g.Go(func() error {
				stop := context.AfterFunc(gctx, func() { conn.Close() })
				defer stop()
				s.handle(conn)
				return nil
			})
		}
	})

	err := g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *Server) handle(raw net.Conn) {
	defer raw.Close()
	conn := shared.NewCountedConn(raw, &s.received, &s.sent)

	st := ConnStats{Remote: raw.RemoteAddr().String()}
	s.connections.Add(1)
	s.log.Info().Str("client_addr", st.Remote).Msg("Accepted connection")

	if s.Greeting != "" {
		if _, err := conn.Write([]byte(s.Greeting)); err != nil {
			s.log.Warn().Err(err).Str("client_addr", st.Remote).Msg("Failed to write greeting")
		}
	}

	echo := s.Echo
	buf := make([]byte, 32*1024)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			st.Reads++
			st.BytesReceived += int64(n)
			if st.Reads == 1 {
				st.FirstRead = string(buf[:n])
			}
			if room := MaxCapture - len(st.Payload); room > 0 {
				st.Payload = append(st.Payload, buf[:min(n, room)]...)
			}

			// 回写失败后不再回显，但继续读完客户端发来的数据
			if echo {
				w, werr := conn.Write(buf[:n])
				st.BytesEchoed += int64(w)
				if werr != nil {
					s.log.Debug().Err(werr).Str("client_addr", st.Remote).Msg("Echo stopped")
					echo = false
				}
			}
		}
		if err != nil {
			break
		}
	}

	s.log.Info().
		Str("client_addr", st.Remote).
		Int64("bytes_received", st.BytesReceived).
		Int("reads", st.Reads).
		Msg("Connection finished")
	if s.OnClose != nil {
		s.OnClose(st)
	}
}
