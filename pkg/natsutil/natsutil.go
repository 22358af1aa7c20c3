// Package natsutil carries JSON payloads over NATS with OpenTelemetry trace
// context in the message headers.
package natsutil

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// headerCarrier exposes nats.Msg headers as a propagation.TextMapCarrier.
type headerCarrier nats.Msg

func (c *headerCarrier) Get(key string) string { return c.Header.Get(key) }

func (c *headerCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = nats.Header{}
	}
	c.Header.Set(key, val)
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// ErrorReply is the body Reply sends back when a request cannot be handled.
type ErrorReply struct {
	Error string `json:"error"`
}

func encode(ctx context.Context, subject string, v any) (*nats.Msg, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("natsutil: encode %s: %w", subject, err)
	}
	msg := &nats.Msg{Subject: subject, Data: data}
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(msg))
	return msg, nil
}

func extract(msg *nats.Msg) context.Context {
	return otel.GetTextMapPropagator().Extract(context.Background(), (*headerCarrier)(msg))
}

// Publish sends v as JSON on subject.
func Publish[T any](ctx context.Context, nc *nats.Conn, subject string, v T) error {
	msg, err := encode(ctx, subject, v)
	if err != nil {
		return err
	}
	return nc.PublishMsg(msg)
}

// Subscribe decodes every message on subject as T and hands it to handler.
// Messages that do not decode are dropped.
func Subscribe[T any](nc *nats.Conn, subject string, handler func(context.Context, T)) (*nats.Subscription, error) {
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		var v T
		if json.Unmarshal(msg.Data, &v) != nil {
			return
		}
		handler(extract(msg), v)
	})
}

// Request sends req on subject and decodes the reply. The wait is bounded by
// ctx's deadline, or nats.DefaultTimeout when ctx has none.
func Request[Req, Resp any](ctx context.Context, nc *nats.Conn, subject string, req Req) (Resp, error) {
	var out Resp
	msg, err := encode(ctx, subject, req)
	if err != nil {
		return out, err
	}

	var reply *nats.Msg
	if _, ok := ctx.Deadline(); ok {
		reply, err = nc.RequestMsgWithContext(ctx, msg)
	} else {
		reply, err = nc.RequestMsg(msg, nats.DefaultTimeout)
	}
	if err != nil {
		return out, fmt.Errorf("natsutil: request %s: %w", subject, err)
	}
	if err := json.Unmarshal(reply.Data, &out); err != nil {
		return out, fmt.Errorf("natsutil: decode reply from %s: %w", subject, err)
	}
	return out, nil
}

// Reply answers requests on subject with handler's result. A non-empty queue
// load-balances across repliers. Up to workers requests are handled at once;
// workers <= 1 handles them one at a time on the subscription goroutine.
// When every worker is busy further requests wait in the subscription's
// pending buffer. Requests that do not decode get an ErrorReply. Messages
// without a reply inbox are ignored.
func Reply[Req, Resp any](nc *nats.Conn, subject, queue string, workers int, handler func(context.Context, Req) Resp) (*nats.Subscription, error) {
	respond := func(msg *nats.Msg, v any) {
		data, err := json.Marshal(v)
		if err != nil {
			data, _ = json.Marshal(ErrorReply{Error: "encode reply: " + err.Error()})
		}
		_ = msg.Respond(data)
	}
	serve := func(msg *nats.Msg) {
		var req Req
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			respond(msg, ErrorReply{Error: "invalid request: " + err.Error()})
			return
		}
		respond(msg, handler(extract(msg), req))
	}

	cb := func(msg *nats.Msg) {
		if msg.Reply != "" {
			serve(msg)
		}
	}
	if workers > 1 {
		slots := make(chan struct{}, workers)
		cb = func(msg *nats.Msg) {
			if msg.Reply == "" {
				return
			}
			slots <- struct{}{}
			go func() {
				defer func() { <-slots }()
				serve(msg)
			}()
		}
	}

	if queue == "" {
		return nc.Subscribe(subject, cb)
	}
	return nc.QueueSubscribe(subject, queue, cb)
}
