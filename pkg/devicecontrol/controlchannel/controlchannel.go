package controlchannel

import (
	"sync"
	"time"

	"github.com/nsyszr/smsrelay/pkg/devicecontrol/controlchannel/websocket"
	"github.com/nsyszr/smsrelay/pkg/devicecontrol/proto"
	"github.com/nsyszr/smsrelay/pkg/model"
	log "github.com/sirupsen/logrus"
)

type Status int

const (
	StatusEstablished Status = iota
	StatusRegistered
	StatusClosing
)

type ControlChannel struct {
	sync.RWMutex
	ctrl           *Controller
	transport      Transport
	info           LinkInfo
	id             string
	kind           model.ConnectionKind
	status         Status
	lastMessageAt  time.Time
	registeredCh   chan struct{}
	activityCh     chan struct{}
	stopCh         chan struct{}
	closeOnce      sync.Once
	nextRequestID  int32
	resultChannels map[int32]chan interface{}
}

// ID returns the connection id assigned at registration, or an empty string
// before that.
func (cc *ControlChannel) ID() string {
	cc.RLock()
	defer cc.RUnlock()
	return cc.id
}

// Serve handles inbound frames until the transport is done. It always
// unregisters the link before returning.
func (cc *ControlChannel) Serve() {
	defer cc.Close()

	// Ensures that registration happens within the given period.
	go cc.waitForRegistrationOrClose()

	for {
		select {
		case msg := <-cc.transport.Receive():
			cc.HandleMessage(msg.Data)
		case <-cc.transport.Done():
			return
		}
	}
}

// Close unregisters the link and fails every pending call. It is safe to
// call more than once.
func (cc *ControlChannel) Close() {
	cc.closeOnce.Do(func() {
		close(cc.stopCh)

		cc.Lock()
		id, kind := cc.id, cc.kind
		cc.status = StatusClosing
		pending := cc.resultChannels
		cc.resultChannels = make(map[int32]chan interface{})
		cc.Unlock()

		for _, ch := range pending {
			select {
			case ch <- ErrLinkClosed:
			default:
			}
		}

		if id != "" {
			cc.ctrl.UnregisterConnection(id, kind)
		}
	})
}

// HandleMessage processes one inbound frame and returns the flag of the
// frame pushed back, if any.
func (cc *ControlChannel) HandleMessage(data []byte) Flag {
	log.Debugf("controlchannel handles message '%s'", string(data))

	cc.RLock()
	closing := cc.status == StatusClosing
	cc.RUnlock()
	if closing {
		return FlagTerminate
	}

	msgType, msg, err := proto.UnmarshalMessage(data)
	if err != nil {
		return cc.abortAndLogError(proto.ErrReasonProtocolViolation, "invalid payload", err)
	}

	switch msgType {
	case proto.MessageTypeHello:
		return cc.handleMessage(msg, cc.helloHandler())
	case proto.MessageTypePing:
		return cc.handleMessage(msg, cc.ensureRegistered(cc.keepAliveHandler()))
	case proto.MessageTypePong:
		return cc.handleMessage(msg, cc.ensureRegistered(cc.continueHandler()))
	case proto.MessageTypePublish:
		return cc.handleMessage(msg, cc.ensureRegistered(cc.publishHandler()))
	case proto.MessageTypeResult:
		return cc.handleMessage(msg, cc.ensureRegistered(cc.resultHandler()))
	case proto.MessageTypeError:
		return cc.handleMessage(msg, cc.ensureRegistered(cc.errorHandler()))
	case proto.MessageTypeAbort:
		log.Infof("controlchannel '%s' aborted by peer", cc.ID())
		cc.transport.Stop()
		return FlagTerminate
	}

	return cc.abortAndLog(proto.ErrReasonProtocolViolation, "unhandled message "+msgType.String())
}

// admitRegistration is called by the controller after the link was
// authorized. It starts the session timeout handling in the background.
func (cc *ControlChannel) admitRegistration(id string, kind model.ConnectionKind) {
	cc.Lock()
	cc.status = StatusRegistered
	cc.id = id
	cc.kind = kind
	cc.Unlock()

	go cc.waitForActivityOrClose(cc.ctrl.opts.SessionTimeout)

	log.Infof("controlchannel registered successful as '%s' (%s)", id, kind)
}

func (cc *ControlChannel) waitForRegistrationOrClose() {
	select {
	case <-cc.registeredCh:
		return
	case <-cc.stopCh:
		return
	case <-time.After(cc.ctrl.opts.RegistrationTimeout):
		log.Warn("controlchannel was not registered in time and closes the connection")
		cc.abortAndLog(proto.ErrReasonRegistrationTimeout, "no hello received")
	}
}

func (cc *ControlChannel) waitForActivityOrClose(timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-cc.activityCh:
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(timeout)
		case <-cc.stopCh:
			return
		case <-timer.C:
			log.Warnf("controlchannel '%s' session timed out and terminates the connection", cc.ID())
			cc.transport.Stop()
			return
		}
	}
}

// messageHandler is a tooling for handling incoming messages. It is similar
// to the go http handler implementation and allows middleware handlers like
// ensureRegistered.
type messageHandler interface {
	Handle(msg interface{}) Flag
}

type messageHandlerFunc func(msg interface{}) Flag

func (f messageHandlerFunc) Handle(msg interface{}) Flag {
	return f(msg)
}

func (cc *ControlChannel) handleMessage(msg interface{}, h messageHandler) Flag {
	cc.Lock()
	cc.lastMessageAt = time.Now().Round(time.Second).UTC()
	id := cc.id
	cc.Unlock()

	if id != "" {
		cc.ctrl.registry.Touch(id)
	}
	select {
	case cc.activityCh <- struct{}{}:
	default:
	}

	return h.Handle(msg)
}

func (cc *ControlChannel) helloHandler() messageHandlerFunc {
	return messageHandlerFunc(func(msg interface{}) Flag {
		helloMsg, err := proto.MustHelloMessage(msg)
		if err != nil {
			return cc.abortAndLogError(proto.ErrReasonProtocolViolation, "hello message expected", err)
		}

		cc.Lock()
		if cc.status != StatusEstablished {
			cc.Unlock()
			return cc.abortAndLog(proto.ErrReasonProtocolViolation, "duplicate hello")
		}
		// Keeps the registration timeout from firing while we register.
		close(cc.registeredCh)
		cc.Unlock()

		id, details, err := cc.ctrl.RegisterConnection(cc, helloMsg.Realm, proto.ParseHelloDetails(helloMsg.Details))
		if err != nil && proto.IsRegistrationError(err) {
			e := err.(*proto.RegistrationError)
			return cc.abortMessageAndClose(e.Reason, proto.NewAbortMessageDetails(e.Message))
		} else if err != nil {
			return cc.abortAndLogError(proto.ErrReasonTechnicalException, "could not register controlchannel", err)
		}

		return cc.welcomeMessage(id, details)
	})
}

func (cc *ControlChannel) ensureRegistered(next messageHandler) messageHandler {
	return messageHandlerFunc(func(msg interface{}) Flag {
		cc.RLock()
		status := cc.status
		cc.RUnlock()
		if status != StatusRegistered {
			return cc.abortAndLog(proto.ErrReasonProtocolViolation, "controlchannel is not registered")
		}
		return next.Handle(msg)
	})
}

func (cc *ControlChannel) keepAliveHandler() messageHandlerFunc {
	return messageHandlerFunc(func(msg interface{}) Flag {
		return cc.pongMessage()
	})
}

func (cc *ControlChannel) continueHandler() messageHandlerFunc {
	return messageHandlerFunc(func(msg interface{}) Flag {
		return FlagContinue
	})
}

func (cc *ControlChannel) abortAndLog(reason proto.ErrorReason, message string) Flag {
	log.Warnf("controlchannel aborts with %s: %s", reason, message)
	return cc.abortMessageAndClose(reason, proto.NewAbortMessageDetails(message))
}

func (cc *ControlChannel) abortAndLogError(reason proto.ErrorReason, message string, err error) Flag {
	log.Errorf("controlchannel aborts with %s: %s: %s", reason, message, err.Error())
	return cc.abortMessageAndClose(reason, proto.NewAbortMessageDetails(message))
}

func (cc *ControlChannel) terminate() Flag {
	cc.markClosing()
	cc.transport.Stop()
	return FlagTerminate
}

func (cc *ControlChannel) abortMessageAndClose(reason proto.ErrorReason, details interface{}) Flag {
	out, err := proto.MarshalNewAbortMessage(reason, details)
	// This should never happen. Terminate the link for safety.
	if err != nil {
		log.Errorf("controlchannel could not marshal message: %v", err)
		return cc.terminate()
	}
	cc.markClosing()
	if !cc.pushBackMessage(FlagCloseGracefully, out) {
		cc.transport.Stop()
	}
	return FlagCloseGracefully
}

func (cc *ControlChannel) welcomeMessage(id string, details interface{}) Flag {
	out, err := proto.MarshalNewWelcomeMessage(id, details)
	if err != nil {
		log.Errorf("controlchannel could not marshal message: %v", err)
		return cc.terminate()
	}
	return cc.continueWith(out)
}

func (cc *ControlChannel) pongMessage() Flag {
	out, err := proto.MarshalNewPongMessage()
	if err != nil {
		log.Errorf("controlchannel could not marshal message: %v", err)
		return cc.terminate()
	}
	return cc.continueWith(out)
}

func (cc *ControlChannel) errorMessage(msgType proto.MessageType, requestID int32, reason proto.ErrorReason, details interface{}) Flag {
	out, err := proto.MarshalNewErrorMessage(msgType, requestID, reason, details)
	if err != nil {
		log.Errorf("controlchannel could not marshal message: %v", err)
		return cc.terminate()
	}
	return cc.continueWith(out)
}

func (cc *ControlChannel) publishedMessage(requestID int32, publicationID int64) Flag {
	out, err := proto.MarshalNewPublishedMessage(requestID, publicationID)
	if err != nil {
		log.Errorf("controlchannel could not marshal message: %v", err)
		return cc.terminate()
	}
	return cc.continueWith(out)
}

func (cc *ControlChannel) continueWith(out []byte) Flag {
	if !cc.pushBackMessage(FlagContinue, out) {
		log.Warn("controlchannel outbox is full, terminating")
		return cc.terminate()
	}
	return FlagContinue
}

func (cc *ControlChannel) markClosing() {
	cc.Lock()
	if cc.status == StatusEstablished {
		// The registration timeout has nothing left to guard.
		select {
		case <-cc.registeredCh:
		default:
			close(cc.registeredCh)
		}
	}
	cc.status = StatusClosing
	cc.Unlock()
}

func (cc *ControlChannel) pushBackMessage(flag Flag, data []byte) bool {
	return cc.transport.Send(websocket.NewOutboxMessage(websocket.Flag(flag), data))
}

type Flag int

const (
	FlagContinue        = Flag(websocket.FlagContinue)
	FlagCloseGracefully = Flag(websocket.FlagCloseGracefully)
	FlagTerminate       = Flag(websocket.FlagTerminate)
)
