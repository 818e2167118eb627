package restyutil

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

type InstrumentOutput interface {
	Write(id string, contents string)
}

type instrumentCtx struct {
	output    InstrumentOutput
	idcounter *uint64
}

// DumpExchanges writes every completed request/response pair made by the client
// to `output`, numbered in the order the requests were issued.
// `output` can be nil, if it is, then the function is a no-op
func DumpExchanges(client *resty.Client, output InstrumentOutput) {
	if output == nil {
		return
	}

	var idcounter uint64
	i := instrumentCtx{output: output, idcounter: &idcounter}
	client.OnBeforeRequest(i.onBeforeRequest)
	client.OnAfterResponse(i.onAfterResponse)
	client.OnError(i.onError)
}

type messageIdKeyType int

var messageIdKey messageIdKeyType

func (i instrumentCtx) onBeforeRequest(_ *resty.Client, req *resty.Request) error {
	messageId := fmt.Sprintf("%04d", atomic.AddUint64(i.idcounter, 1))
	req.SetContext(context.WithValue(req.Context(), messageIdKey, messageId))
	return nil
}

func (i instrumentCtx) onAfterResponse(_ *resty.Client, res *resty.Response) error {
	messageId, ok := res.Request.Context().Value(messageIdKey).(string)
	if !ok || res.Request.RawRequest == nil || res.RawResponse == nil {
		return nil
	}
	i.output.Write(messageId+".txt", formatHttpMessage(res))
	return nil
}

func (i instrumentCtx) onError(req *resty.Request, err error) {
	messageId, ok := req.Context().Value(messageIdKey).(string)
	if !ok {
		return
	}
	i.output.Write(messageId+".err.txt", formatFailedRequest(req, err))
}
