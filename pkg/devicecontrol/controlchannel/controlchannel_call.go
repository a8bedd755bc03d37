package controlchannel

import (
	"context"

	"github.com/nsyszr/smsrelay/pkg/devicecontrol/proto"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Call sends a CALL to the peer and waits for its RESULT or ERROR, or until
// ctx is done. A device ERROR is returned as *proto.CallError.
func (cc *ControlChannel) Call(ctx context.Context, operation string, arguments interface{}) (interface{}, error) {
	resultCh := make(chan interface{}, 1)
	requestID, err := cc.pushCallResultCh(resultCh)
	if err != nil {
		return nil, err
	}
	defer cc.popCallResultCh(requestID)

	out, err := proto.MarshalNewCallMessage(requestID, operation, arguments)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal call message")
	}
	if !cc.pushBackMessage(FlagContinue, out) {
		return nil, ErrOutboxFull
	}

	select {
	case result := <-resultCh:
		switch v := result.(type) {
		case *proto.ResultMessage:
			return v.Results, nil
		case *proto.ErrorMessage:
			return nil, &proto.CallError{Reason: v.Error, Details: v.Details}
		case error:
			return nil, v
		}
		return nil, errors.Errorf("unexpected call result %T", result)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (cc *ControlChannel) pushCallResultCh(resultCh chan interface{}) (int32, error) {
	cc.Lock()
	defer cc.Unlock()

	if cc.status == StatusClosing {
		return 0, ErrLinkClosed
	}

	requestID := cc.getNextRequestID()
	cc.resultChannels[requestID] = resultCh
	return requestID, nil
}

func (cc *ControlChannel) popCallResultCh(requestID int32) (chan interface{}, bool) {
	cc.Lock()
	defer cc.Unlock()

	ch, ok := cc.resultChannels[requestID]
	if ok {
		delete(cc.resultChannels, requestID)
	}
	return ch, ok
}

func (cc *ControlChannel) getNextRequestID() int32 {
	requestID := cc.nextRequestID
	cc.nextRequestID++
	return requestID
}

// deliverResult hands a RESULT or ERROR to the waiting call. Results for
// calls that already gave up are logged and dropped.
func (cc *ControlChannel) deliverResult(requestID int32, result interface{}) {
	ch, ok := cc.popCallResultCh(requestID)
	if !ok {
		log.Warnf("controlchannel '%s' received a late or unknown result for request %d", cc.ID(), requestID)
		return
	}
	// Buffered with room for exactly this result.
	ch <- result
}

func (cc *ControlChannel) resultHandler() messageHandlerFunc {
	return messageHandlerFunc(func(msg interface{}) Flag {
		resultMsg, err := proto.MustResultMessage(msg)
		if err != nil {
			return cc.abortAndLogError(proto.ErrReasonProtocolViolation, "result message expected", err)
		}
		cc.deliverResult(resultMsg.RequestID, resultMsg)
		return FlagContinue
	})
}

func (cc *ControlChannel) errorHandler() messageHandlerFunc {
	return messageHandlerFunc(func(msg interface{}) Flag {
		errorMsg, err := proto.MustErrorMessage(msg)
		if err != nil {
			return cc.abortAndLogError(proto.ErrReasonProtocolViolation, "error message expected", err)
		}
		if errorMsg.MessageType != proto.MessageTypeCall {
			log.Infof("controlchannel received error %s for %s request %d",
				errorMsg.Error, errorMsg.MessageType, errorMsg.RequestID)
			return FlagContinue
		}
		cc.deliverResult(errorMsg.RequestID, errorMsg)
		return FlagContinue
	})
}
