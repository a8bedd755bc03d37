package controlchannel

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nsyszr/smsrelay/pkg/devicecontrol/proto"
	"github.com/nsyszr/smsrelay/pkg/ingest"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// publishTimeout bounds the store writes of a single PUBLISH.
const publishTimeout = 16 * time.Second

type publishErrorDetails struct {
	Message string `json:"message"`
}

// HandlePublish routes a device event to the ingestion path of its topic
// and returns the id of the stored record as publication id.
func (ctrl *Controller) HandlePublish(ctx context.Context, connectionID, topic string, arguments interface{}) (int64, error) {
	raw, err := json.Marshal(arguments)
	if err != nil {
		return 0, errors.Wrap(err, "failed to marshal publish arguments")
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	switch topic {
	case ingest.PathMessage:
		m, err := ctrl.ingest.ReceiveMessage(ctx, connectionID, raw)
		if err != nil {
			return 0, err
		}
		return m.ID, nil
	case ingest.PathStatus:
		receipt, err := ctrl.ingest.ReceiveStatus(ctx, connectionID, raw)
		if err != nil {
			return 0, err
		}
		return receipt.Event.ID, nil
	case ingest.PathCallLog:
		l, err := ctrl.ingest.ReceiveCallLog(ctx, connectionID, raw)
		if err != nil {
			return 0, err
		}
		return l.ID, nil
	}

	return 0, errUnknownTopic
}

var errUnknownTopic = errors.New("unknown topic")

func (cc *ControlChannel) publishHandler() messageHandlerFunc {
	return messageHandlerFunc(func(msg interface{}) Flag {
		publishMsg, err := proto.MustPublishMessage(msg)
		if err != nil {
			return cc.abortAndLogError(proto.ErrReasonProtocolViolation, "publish message expected", err)
		}

		pubID, err := cc.ctrl.HandlePublish(context.Background(), cc.ID(), publishMsg.Topic, publishMsg.Arguments)
		switch {
		case err == nil:
			return cc.publishedMessage(publishMsg.RequestID, pubID)
		case err == errUnknownTopic:
			return cc.errorMessage(proto.MessageTypePublish, publishMsg.RequestID, proto.ErrReasonUnknownTopic,
				&publishErrorDetails{Message: "topic '" + publishMsg.Topic + "' is not supported"})
		case ingest.IsValidationError(err):
			return cc.errorMessage(proto.MessageTypePublish, publishMsg.RequestID, proto.ErrReasonValidation,
				&publishErrorDetails{Message: err.Error()})
		}

		log.Errorf("controlchannel failed to handle publish on '%s': %v", publishMsg.Topic, err)
		return cc.errorMessage(proto.MessageTypePublish, publishMsg.RequestID, proto.ErrReasonTechnicalException, nil)
	})
}
