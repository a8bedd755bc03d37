// Package websocket drives one device link over a websocket connection.
// Frames are read into an inbox and written from an outbox by two
// goroutines; either one stopping terminates the link.
package websocket

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type Flag int

const (
	FlagContinue Flag = iota
	FlagCloseGracefully
	FlagTerminate
)

const bufferSize = 100

// writeTimeout bounds a single frame write so a stalled peer cannot block
// the outbox forever.
const writeTimeout = 10 * time.Second

type OutboxMessage struct {
	Flag Flag
	Data []byte
}

type InboxMessage struct {
	Data []byte
}

type WebSocketDriver struct {
	conn   net.Conn
	state  ws.State
	inbox  chan *InboxMessage
	outbox chan *OutboxMessage

	doneCh   chan struct{}
	doneOnce sync.Once

	wg sync.WaitGroup
}

// NewWebSocketDriver creates a server side driver for an upgraded
// connection.
func NewWebSocketDriver(conn net.Conn) *WebSocketDriver {
	return newDriver(conn, ws.StateServerSide)
}

func newDriver(conn net.Conn, state ws.State) *WebSocketDriver {
	return &WebSocketDriver{
		conn:   conn,
		state:  state,
		inbox:  make(chan *InboxMessage, bufferSize),
		outbox: make(chan *OutboxMessage, bufferSize),
		doneCh: make(chan struct{}),
	}
}

func (driver *WebSocketDriver) Start() {
	driver.wg.Add(2)
	go driver.inboxHandler()
	go driver.outboxHandler()
}

// Receive returns the frames read from the peer.
func (driver *WebSocketDriver) Receive() <-chan *InboxMessage {
	return driver.inbox
}

// Send queues a frame without blocking. It returns false when the outbox is
// full or the link is already terminated.
func (driver *WebSocketDriver) Send(msg *OutboxMessage) bool {
	select {
	case <-driver.doneCh:
		return false
	default:
	}

	select {
	case driver.outbox <- msg:
		return true
	default:
		log.Warn("websocket outbox is full, dropping frame")
		return false
	}
}

// Done is closed once the link is terminated.
func (driver *WebSocketDriver) Done() <-chan struct{} {
	return driver.doneCh
}

// Stop terminates the link.
func (driver *WebSocketDriver) Stop() {
	driver.terminate()
}

// Close waits for both handlers to exit and closes the connection.
func (driver *WebSocketDriver) Close() {
	driver.terminate()
	driver.wg.Wait()
	log.Debug("websocketdriver closed")
}

func (driver *WebSocketDriver) terminate() {
	driver.doneOnce.Do(func() {
		close(driver.doneCh)
		// Unblocks a pending read in the inbox handler.
		driver.conn.Close()
	})
}

func (driver *WebSocketDriver) handlerExit() {
	driver.wg.Done()
	driver.terminate()
}

func (driver *WebSocketDriver) inboxHandler() {
	defer driver.handlerExit()

	ch := wsutil.ControlFrameHandler(driver.conn, driver.state)

	r := &wsutil.Reader{
		Source:         driver.conn,
		State:          driver.state,
		CheckUTF8:      true,
		OnIntermediate: ch,
	}

	for {
		h, err := r.NextFrame()
		if err != nil {
			select {
			case <-driver.doneCh:
			default:
				log.Debugf("websocket read message error: %v", err)
			}
			return
		}

		if h.OpCode.IsControl() {
			// On OpClose the peer closed the socket, there is nothing left
			// to read.
			if h.OpCode == ws.OpClose {
				log.Debug("websocket connection closed by peer")
				_ = ch(h, r)
				return
			}

			if err = ch(h, r); err != nil {
				log.Errorf("websocket handles control frame error: %v", err)
				return
			}
			continue
		}

		data, err := io.ReadAll(r)
		if err != nil {
			log.Errorf("websocket read error: %v", err)
			return
		}

		select {
		case driver.inbox <- NewInboxMessage(data):
		case <-driver.doneCh:
			return
		}
	}
}

func (driver *WebSocketDriver) outboxHandler() {
	defer driver.handlerExit()

	w := wsutil.NewWriter(driver.conn, driver.state, 0)

	for {
		select {
		case res := <-driver.outbox:
			if len(res.Data) > 0 {
				if err := driver.writeText(w, res.Data); err != nil {
					log.Errorf("websocket terminates because of write error: %s", err.Error())
					return
				}
			}

			switch res.Flag {
			case FlagCloseGracefully:
				log.Debug("websocket handled outbox message and closes gracefully")
				if err := driver.writeClose(); err != nil {
					log.Debugf("websocket close frame error: %v", err)
				}
				return
			case FlagTerminate:
				log.Debug("websocket handled outbox message and terminates")
				return
			}
		case <-driver.doneCh:
			return
		}
	}
}

func (driver *WebSocketDriver) writeText(w *wsutil.Writer, data []byte) error {
	_ = driver.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	w.Reset(driver.conn, driver.state, ws.OpText)
	if _, err := w.Write(data); err != nil {
		return errors.Wrap(err, "failed to write frame")
	}
	return errors.Wrap(w.Flush(), "failed to flush frame")
}

func (driver *WebSocketDriver) writeClose() error {
	_ = driver.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	body := ws.NewCloseFrameBody(ws.StatusNormalClosure, "")
	frame := ws.NewCloseFrame(body)
	if driver.state.ClientSide() {
		frame = ws.MaskFrameInPlace(frame)
	}
	return ws.WriteFrame(driver.conn, frame)
}

func NewOutboxMessage(flag Flag, data []byte) *OutboxMessage {
	m := &OutboxMessage{
		Flag: flag,
	}
	if data != nil {
		m.Data = make([]byte, len(data))
		copy(m.Data, data)
	}
	return m
}

func NewInboxMessage(data []byte) *InboxMessage {
	m := &InboxMessage{}
	if data != nil {
		m.Data = make([]byte, len(data))
		copy(m.Data, data)
	}
	return m
}
