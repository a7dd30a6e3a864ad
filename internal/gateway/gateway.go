// Package gateway talks to the Zigbee radio bridge over a serial line.
//
// Every line carries one device address and one message:
//
//	00158D0001A2B3C4 read attr - raw: ..., cluster: 0102, attrId: 0008, ...
//	00158D0001A2B3C4 zcl 0102/01 1801 0A 0800 20 32
//
// Inbound lines hold a description string or, after "zcl", a binary ZCL
// frame with its cluster and source endpoint. Outbound lines hold one
// rendered command.Instruction; delays are honoured locally and never sent.
package gateway

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"zigbee-lumi/internal/command"
	"zigbee-lumi/internal/zcl"
)

var (
	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("gateway closed")
	// ErrBusy is returned when the outbound queue is full.
	ErrBusy = errors.New("gateway queue full")
)

// DefaultQueueSize is the number of outbound sequences buffered.
const DefaultQueueSize = 64

// Handler receives one inbound message.
type Handler func(ctx context.Context, ieee string, msg zcl.Message)

type outbound struct {
	ieee string
	seq  []command.Instruction
}

// Gateway is a line-oriented transport over an io.ReadWriteCloser, usually
// a serial port.
type Gateway struct {
	rw     io.ReadWriteCloser
	logger *slog.Logger

	handlerMu sync.RWMutex
	handler   Handler

	out       chan outbound
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Open opens a serial port and starts a gateway on it.
func Open(portName string, baudRate int, logger *slog.Logger) (*Gateway, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("gateway: open %s: %w", portName, err)
	}
	// USB CDC ACM bridges wait for DTR before talking.
	_ = port.SetDTR(true)
	_ = port.SetRTS(true)

	logger.Info("gateway opened", "port", portName, "baud", baudRate)
	return New(port, logger), nil
}

// New starts a gateway on rw. The gateway owns rw and closes it on Close.
func New(rw io.ReadWriteCloser, logger *slog.Logger) *Gateway {
	g := &Gateway{
		rw:     rw,
		logger: logger.With("component", "gateway"),
		out:    make(chan outbound, DefaultQueueSize),
		done:   make(chan struct{}),
	}
	g.wg.Add(2)
	go g.readLoop()
	go g.writeLoop()
	return g
}

// OnMessage sets the inbound handler. Messages read before a handler is set
// are dropped.
func (g *Gateway) OnMessage(h Handler) {
	g.handlerMu.Lock()
	g.handler = h
	g.handlerMu.Unlock()
}

// Send queues a sequence for ieee and returns without waiting for it to be
// written.
func (g *Gateway) Send(ctx context.Context, ieee string, seq []command.Instruction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-g.done:
		return ErrClosed
	default:
	}
	select {
	case g.out <- outbound{ieee: ieee, seq: seq}:
		return nil
	case <-g.done:
		return ErrClosed
	default:
		return ErrBusy
	}
}

// Close stops both loops and closes the underlying port.
func (g *Gateway) Close() error {
	var err error
	g.closeOnce.Do(func() {
		close(g.done)
		err = g.rw.Close()
	})
	g.wg.Wait()
	return err
}

func (g *Gateway) readLoop() {
	defer g.wg.Done()

	backoff := 10 * time.Millisecond
	const maxBackoff = 5 * time.Second

	reader := bufio.NewReader(g.rw)
	ctx := context.Background()
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			backoff = 10 * time.Millisecond
			g.dispatch(ctx, line)
		}
		if err == nil {
			continue
		}
		select {
		case <-g.done:
			return
		default:
		}
		if errors.Is(err, io.EOF) {
			g.logger.Info("gateway input closed")
			return
		}
		g.logger.Error("gateway read error", "err", err)
		select {
		case <-time.After(backoff):
		case <-g.done:
			return
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (g *Gateway) dispatch(ctx context.Context, line string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}
	ieee, msg, err := ParseLine(line)
	if err != nil {
		g.logger.Warn("gateway line dropped", "line", line, "err", err)
		return
	}
	g.handlerMu.RLock()
	h := g.handler
	g.handlerMu.RUnlock()
	if h == nil {
		g.logger.Debug("no handler for inbound message", "ieee", ieee)
		return
	}
	h(ctx, ieee, msg)
}

func (g *Gateway) writeLoop() {
	defer g.wg.Done()
	for {
		select {
		case <-g.done:
			return
		case o := <-g.out:
			if !g.write(o) {
				return
			}
		}
	}
}

// write sends one sequence. It returns false once the gateway is closed.
func (g *Gateway) write(o outbound) bool {
	for _, in := range o.seq {
		if in.Kind == command.KindDelay {
			t := time.NewTimer(in.Delay)
			select {
			case <-t.C:
			case <-g.done:
				t.Stop()
				return false
			}
			continue
		}
		line := o.ieee + " " + in.String()
		if _, err := io.WriteString(g.rw, line+"\n"); err != nil {
			select {
			case <-g.done:
				return false
			default:
			}
			g.logger.Error("gateway write failed", "ieee", o.ieee, "line", line, "err", err)
			return true
		}
		g.logger.Debug("gateway TX", "line", line)
	}
	return true
}

// ParseLine splits one inbound line into its address and message.
func ParseLine(line string) (string, zcl.Message, error) {
	ieee, rest, ok := strings.Cut(strings.TrimSpace(line), " ")
	if !ok || len(ieee) != 16 {
		return "", zcl.Message{}, fmt.Errorf("want \"<ieee> <message>\", got %q", line)
	}
	if _, err := hex.DecodeString(ieee); err != nil {
		return "", zcl.Message{}, fmt.Errorf("ieee %q: %w", ieee, err)
	}
	ieee = strings.ToUpper(ieee)
	rest = strings.TrimSpace(rest)

	frame, ok := strings.CutPrefix(rest, "zcl ")
	if !ok {
		return ieee, zcl.Message{Description: rest}, nil
	}
	msg, err := parseFrame(frame)
	if err != nil {
		return "", zcl.Message{}, err
	}
	return ieee, msg, nil
}

// parseFrame reads "<cluster>/<endpoint> <hex...>".
func parseFrame(s string) (zcl.Message, error) {
	addr, data, ok := strings.Cut(s, " ")
	if !ok {
		return zcl.Message{}, fmt.Errorf("zcl frame %q: missing data", s)
	}
	c, ep, ok := strings.Cut(addr, "/")
	if !ok {
		return zcl.Message{}, fmt.Errorf("zcl frame %q: want cluster/endpoint", s)
	}
	cluster, err := strconv.ParseUint(c, 16, 16)
	if err != nil {
		return zcl.Message{}, fmt.Errorf("zcl frame cluster %q: %w", c, err)
	}
	endpoint, err := strconv.ParseUint(ep, 16, 8)
	if err != nil {
		return zcl.Message{}, fmt.Errorf("zcl frame endpoint %q: %w", ep, err)
	}
	b, err := hex.DecodeString(strings.ReplaceAll(data, " ", ""))
	if err != nil {
		return zcl.Message{}, fmt.Errorf("zcl frame data: %w", err)
	}
	return zcl.Message{ClusterID: uint16(cluster), Endpoint: uint8(endpoint), Data: b}, nil
}
