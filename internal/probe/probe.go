// FILE: internal/probe/probe.go
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sockprobe/internal/shared/logger"
	"sockprobe/internal/shared/types"
	"sockprobe/internal/sys/sock"
)

// 步骤名称，同时用于输出和报告
const (
	StepCreate          = "create"
	StepLocalAddrPre    = "local-addr(pre)"
	StepPeerAddrPre     = "peer-addr(pre)"
	StepUnconnectedSend = "sendmsg(unconnected)"
	StepPause           = "pause"
	StepConnect         = "connect"
	StepLocalAddrPost   = "local-addr(post)"
	StepPeerAddrPost    = "peer-addr(post)"
	StepRead            = "read"
	StepWrite           = "write"
	StepSend            = "send"
	StepRecvFrom        = "recvfrom"
	StepSendmsg         = "sendmsg"
	StepShutdown        = "shutdown"
	StepDrain           = "drain"
)

// Probe runs the scripted socket sequence against one target.
// A Probe is single-use per Run call and is not safe for concurrent use.
type Probe struct {
	cfg   *types.Config
	out   io.Writer
	log   zerolog.Logger
	open  func() (*sock.Session, error)
	sleep func(ctx context.Context, d time.Duration) error

	report *Report
}

// New creates a probe that prints its step lines to out.
func New(cfg *types.Config, out io.Writer) *Probe {
	if out == nil {
		out = io.Discard
	}
	return &Probe{
		cfg:   cfg,
		out:   out,
		log:   logger.WithComponent("probe"),
		open:  sock.Open,
		sleep: sleepContext,
	}
}

// Run executes the sequence once. The socket is always closed before Run
// returns. The returned report is non-nil even when err is not.
func (p *Probe) Run(ctx context.Context) (*Report, error) {
	runID := uuid.NewString()
	p.log = p.log.With().Str("run_id", runID).Logger()
	p.report = &Report{
		RunID:     runID,
		Target:    fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port),
		StartedAt: time.Now().UTC(),
	}

	err := p.run(ctx)

	p.report.Duration = time.Since(p.report.StartedAt).String()
	p.report.Success = err == nil
	if err != nil {
		p.report.Error = err.Error()
		p.log.Error().Err(err).Int("errno", sock.Errno(err)).Msg("Probe failed")
	} else {
		p.log.Info().
			Int("bytes_sent", p.report.BytesSent).
			Int("bytes_received", p.report.BytesReceived).
			Msg("Probe finished")
	}
	return p.report, err
}

func (p *Probe) run(ctx context.Context) (err error) {
	target, err := p.cfg.Target()
	if err != nil {
		p.printf("\nInvalid address/ Address not supported \n")
		return fmt.Errorf("%s: %w", StepConnect, err)
	}
	msg := []byte(p.cfg.Message)

	// 1. socket
	sess, err := p.open()
	if err != nil {
		p.fail(StepCreate, err)
		p.printf("\n Socket creation error \n")
		return fmt.Errorf("%s: %w", StepCreate, err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			p.log.Warn().Err(cerr).Msg("Failed to close socket")
			if err == nil {
				err = fmt.Errorf("close: %w", cerr)
			}
		}
		p.report.FinalState = sess.State().String()
	}()
	p.record(StepResult{Name: StepCreate, Outcome: OutcomeOK, Detail: fmt.Sprintf("fd %d", sess.Fd())})
	p.printf("sa_len: %d\n", sock.SockaddrLen)
	p.printf("sock is %d\n", sess.Fd())

	// 2. getsockname before connect
	local, err := sess.LocalAddr()
	if err != nil {
		p.fail(StepLocalAddrPre, err)
		p.printf("getsockname() failed: %v\n", err)
		return fmt.Errorf("%s: %w", StepLocalAddrPre, err)
	}
	p.record(StepResult{Name: StepLocalAddrPre, Outcome: OutcomeOK, Detail: local.String()})
	p.printAddr("Local", local)

	// 3. getpeername before connect
	if err := p.peerBeforeConnect(sess); err != nil {
		return err
	}

	if p.cfg.UnconnectedSend {
		p.sendUnconnected(sess, msg)
	}

	// 4. pause
	p.printf("start to connect \n")
	if err := p.pause(ctx); err != nil {
		return err
	}

	// 5. connect
	if err := sess.Connect(target); err != nil {
		p.fail(StepConnect, err)
		p.printf("\nConnection Failed \n")
		return fmt.Errorf("%s: %w", StepConnect, err)
	}
	p.record(StepResult{Name: StepConnect, Outcome: OutcomeOK, Detail: target.String()})
	p.printf("Accept Remote IP address is: %s\n", target.IP)
	p.printf("Accept Remote port is: %d\n", target.Port)
	p.log.Info().Str("target", target.String()).Msg("Connected")

	// 6. addresses after connect
	if err := p.addressesAfterConnect(sess); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// 7. read
	buf := make([]byte, p.cfg.BufferSize)
	n, err := sess.Read(buf)
	if err != nil {
		p.fail(StepRead, err)
		return fmt.Errorf("%s: %w", StepRead, err)
	}
	p.report.BytesReceived += n
	readResult := StepResult{Name: StepRead, Outcome: OutcomeOK, Bytes: n, Detail: string(buf[:n])}
	if n == 0 {
		readResult.Outcome = OutcomeAnomaly
		readResult.Detail = "peer closed the connection"
	}
	p.record(readResult)
	p.printf("%s\n", buf[:n])

	// 8. write
	n, err = sess.Write(msg)
	p.report.BytesSent += n
	if err != nil {
		p.fail(StepWrite, err)
		return fmt.Errorf("%s: %w", StepWrite, err)
	}
	p.record(StepResult{Name: StepWrite, Outcome: OutcomeOK, Bytes: n})
	p.printf("client: Hello message sent %d bytes\n", n)

	// 9. pause, then send
	if err := p.pause(ctx); err != nil {
		return err
	}
	n, err = sess.Send(msg)
	p.report.BytesSent += n
	if err != nil {
		p.fail(StepSend, err)
		return fmt.Errorf("%s: %w", StepSend, err)
	}
	p.record(StepResult{Name: StepSend, Outcome: OutcomeOK, Bytes: n})
	p.printf("client: Hello message sent %d bytes\n", n)

	// 10. recvfrom
	if err := p.recvFrom(sess, buf); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// 11. scatter-gather send
	if err := p.sendSegments(sess, msg); err != nil {
		return err
	}

	// 12. 半关闭并读空接收队列。带着未读数据 close 会触发 RST，丢弃尚未发出的数据
	return p.shutdown(sess, buf)
}

// peerBeforeConnect 查询未连接套接字的对端地址。失败是预期结果；
// 只有 StrictPeerCheck 打开时才视为致命错误。
func (p *Probe) peerBeforeConnect(sess *sock.Session) error {
	peer, err := sess.PeerAddr()
	if err == nil {
		p.record(StepResult{Name: StepPeerAddrPre, Outcome: OutcomeAnomaly, Detail: "unconnected socket reported peer " + peer.String()})
		p.log.Warn().Str("peer", peer.String()).Msg("Unconnected socket reported a peer address")
		p.printAddr("Remote", peer)
		return nil
	}

	p.printf("errorno: %d\n", sock.Errno(err))
	p.printf("getpeername() failed: %v\n", err)
	if !errors.Is(err, sock.ErrNotConnected) || p.cfg.StrictPeerCheck {
		p.fail(StepPeerAddrPre, err)
		return fmt.Errorf("%s: %w", StepPeerAddrPre, err)
	}
	p.record(StepResult{
		Name:    StepPeerAddrPre,
		Outcome: OutcomeExpectedFailure,
		Errno:   sock.Errno(err),
		Error:   err.Error(),
	})
	p.log.Debug().Err(err).Msg("Peer query before connect failed as expected")
	return nil
}

// sendUnconnected pushes one segment through sendmsg before connecting.
// A stream socket must refuse it; the outcome is never fatal.
func (p *Probe) sendUnconnected(sess *sock.Session, msg []byte) {
	n, _, err := sess.SendBuffers([][]byte{msg})
	if err != nil {
		p.record(StepResult{
			Name:    StepUnconnectedSend,
			Outcome: OutcomeExpectedFailure,
			Errno:   sock.Errno(err),
			Error:   err.Error(),
		})
		p.printf("output is -1 (errno %d)\n", sock.Errno(err))
		return
	}
	p.record(StepResult{Name: StepUnconnectedSend, Outcome: OutcomeAnomaly, Bytes: n, Detail: "unconnected socket accepted data"})
	p.printf("output is %d\n", n)
}

func (p *Probe) addressesAfterConnect(sess *sock.Session) error {
	local, err := sess.LocalAddr()
	if err != nil {
		p.fail(StepLocalAddrPost, err)
		p.printf("getsockname() failed: %v\n", err)
		return fmt.Errorf("%s: %w", StepLocalAddrPost, err)
	}
	p.report.Local = local.String()
	p.record(StepResult{Name: StepLocalAddrPost, Outcome: OutcomeOK, Detail: local.String()})
	p.printAddr("Local", local)

	peer, err := sess.PeerAddr()
	if err != nil {
		p.fail(StepPeerAddrPost, err)
		p.printf("getpeername() failed: %v\n", err)
		// 连接之后对端查询失败属于地址查询错误，而不是"未连接"
		return fmt.Errorf("%s: %w: %w", StepPeerAddrPost, sock.ErrAddressQuery, err)
	}
	p.report.Remote = peer.String()
	p.record(StepResult{Name: StepPeerAddrPost, Outcome: OutcomeOK, Detail: peer.String()})
	p.printAddr("Remote", peer)
	return nil
}

// recvFrom reads with the connectionless receive primitive. On a connected
// stream socket the kernel reports no source address, so none is printed.
func (p *Probe) recvFrom(sess *sock.Session, buf []byte) error {
	n, from, ok, err := sess.RecvFrom(buf)
	if err != nil {
		p.fail(StepRecvFrom, err)
		return fmt.Errorf("%s: %w", StepRecvFrom, err)
	}
	p.report.BytesReceived += n
	result := StepResult{Name: StepRecvFrom, Outcome: OutcomeOK, Bytes: n}
	p.printf("%d recvfrom: %s\n", n, buf[:n])
	if ok {
		result.Detail = "source " + from.String()
		p.printf("recvfrom: Remote IP address is: %s\n", from.IP)
		p.printf("recvfrom: Remote port is: %d\n", from.Port)
	} else {
		result.Detail = "source address not reported on a connected stream socket"
		p.printf("recvfrom: source address not meaningful on a connected stream socket\n")
	}
	if n == 0 {
		result.Outcome = OutcomeAnomaly
	}
	p.record(result)
	return nil
}

func (p *Probe) sendSegments(sess *sock.Session, msg []byte) error {
	segments := make([][]byte, p.cfg.Segments)
	for i := range segments {
		segments[i] = msg
	}
	want := len(msg) * len(segments)

	for i := 0; i < p.cfg.Rounds; i++ {
		n, calls, err := sess.SendBuffers(segments)
		p.report.BytesSent += n
		if err != nil {
			p.fail(StepSendmsg, err)
			return fmt.Errorf("%s round %d: %w", StepSendmsg, i, err)
		}
		if calls > 1 {
			p.log.Debug().Int("round", i).Int("calls", calls).Msg("Scatter-gather send completed after partial writes")
		}
		p.record(StepResult{Name: StepSendmsg, Outcome: OutcomeOK, Bytes: n, Calls: calls})
		p.printf("client: sendmsg sent %d bytes\n", n)
		if n != want {
			return fmt.Errorf("%s round %d: sent %d of %d bytes: %w", StepSendmsg, i, n, want, sock.ErrTransfer)
		}
	}
	return nil
}

// shutdown sends FIN and reads until the peer closes, so every queued byte
// reaches the peer before the descriptor is released.
func (p *Probe) shutdown(sess *sock.Session, buf []byte) error {
	if err := sess.CloseWrite(); err != nil {
		p.fail(StepShutdown, err)
		return fmt.Errorf("%s: %w", StepShutdown, err)
	}
	p.record(StepResult{Name: StepShutdown, Outcome: OutcomeOK, Detail: "write side closed"})

	drained, reads := 0, 0
	for {
		n, err := sess.Read(buf)
		if err != nil {
			p.report.BytesReceived += drained
			p.fail(StepDrain, err)
			return fmt.Errorf("%s after %d bytes: %w", StepDrain, drained, err)
		}
		if n == 0 {
			break
		}
		drained += n
		reads++
	}
	p.report.BytesReceived += drained
	p.record(StepResult{Name: StepDrain, Outcome: OutcomeOK, Bytes: drained, Calls: reads, Detail: "peer closed"})
	p.printf("client: drained %d bytes before EOF\n", drained)
	return nil
}

func (p *Probe) pause(ctx context.Context) error {
	if err := p.sleep(ctx, p.cfg.Pause); err != nil {
		p.record(StepResult{Name: StepPause, Outcome: OutcomeFailed, Error: err.Error()})
		return fmt.Errorf("%s: %w", StepPause, err)
	}
	p.record(StepResult{Name: StepPause, Outcome: OutcomeOK, Detail: p.cfg.Pause.String()})
	return nil
}

func (p *Probe) record(st StepResult) {
	p.report.Steps = append(p.report.Steps, st)
	p.log.Debug().
		Str("step", st.Name).
		Str("outcome", string(st.Outcome)).
		Int("bytes", st.Bytes).
		Str("detail", st.Detail).
		Msg("Step recorded")
}

func (p *Probe) fail(name string, err error) {
	p.record(StepResult{Name: name, Outcome: OutcomeFailed, Errno: sock.Errno(err), Error: err.Error()})
}

func (p *Probe) printAddr(side string, ep types.Endpoint) {
	ip := "0.0.0.0"
	if ep.IP.IsValid() {
		ip = ep.IP.String()
	}
	p.printf("%s IP address is: %s\n", side, ip)
	p.printf("%s port is: %d\n", side, ep.Port)
}

func (p *Probe) printf(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
