package domain

import (
	"bytes"
	"encoding/base64"
	"encoding/json"

	"github.com/tmdbsync/golang_services/internal/core_domain"
)

// PushEnvelope is the body the queue broker posts for one delivered message.
type PushEnvelope struct {
	Message      PushMessage `json:"message"`
	Subscription string      `json:"subscription"`
}

// PushMessage is the delivered message. Data is base64.
type PushMessage struct {
	Data        string `json:"data"`
	MessageID   string `json:"message_id"`
	PublishTime string `json:"publish_time"`
}

// DetailRequest decodes the message payload. The payload may carry one extra base64
// layer around the JSON object. Every failure is ErrValidation.
func (e PushEnvelope) DetailRequest() (DetailRequest, error) {
	if e.Message.Data == "" {
		return DetailRequest{}, core_domain.Wrap(core_domain.ErrValidation, "message.data is empty", nil)
	}
	payload, err := base64.StdEncoding.DecodeString(e.Message.Data)
	if err != nil {
		return DetailRequest{}, core_domain.Wrap(core_domain.ErrValidation, "decoding message.data base64", err)
	}
	payload = bytes.TrimSpace(payload)
	if !bytes.HasPrefix(payload, []byte("{")) {
		inner, err := base64.StdEncoding.DecodeString(string(payload))
		if err != nil {
			return DetailRequest{}, core_domain.Wrap(core_domain.ErrValidation, "message.data is neither a JSON object nor base64", err)
		}
		payload = inner
	}

	var req DetailRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return DetailRequest{}, core_domain.Wrap(core_domain.ErrValidation, "decoding detail request", err)
	}
	return req, nil
}
