// Package rpc defines the wire protocol between the remote backend and the
// server dispatcher, and implements the dispatcher itself.
//
// Requests travel as HTTP POST form fields (type, request, body,
// noResponse, compress). Every answer, including transport failures, is a
// JSON envelope:
//
//	{"status":true,"responseBody":[...]}
//	{"status":false,"message":"..."}
package rpc

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/koustreak/sqlgrid/internal/database"
	"github.com/koustreak/sqlgrid/internal/errs"
)

// Kind is the command kind of a request.
type Kind string

const (
	// KindQuery carries SQL text with "?" placeholders and a JSON array of
	// bound values.
	KindQuery Kind = "query"
	// KindRequest names a server-side capability; body is its JSON argument.
	KindRequest Kind = "request"
)

// Capability is a named server-side operation reachable with KindRequest.
type Capability string

const (
	CapAllowDelete Capability = "allowDelete"
	CapDescribe    Capability = "describe"
)

// Form field names.
const (
	fieldType       = "type"
	fieldRequest    = "request"
	fieldBody       = "body"
	fieldNoResponse = "noResponse"
	fieldCompress   = "compress"
)

// Request is one outbound envelope.
type Request struct {
	Type       Kind
	Request    string
	Body       json.RawMessage
	NoResponse bool
	Compress   bool
}

// Form encodes r as the POST form the dispatcher expects.
func (r Request) Form() url.Values {
	v := url.Values{}
	v.Set(fieldType, string(r.Type))
	v.Set(fieldRequest, r.Request)
	v.Set(fieldBody, string(r.Body))
	v.Set(fieldNoResponse, strconv.FormatBool(r.NoResponse))
	v.Set(fieldCompress, strconv.FormatBool(r.Compress))
	return v
}

// maxFormMemory bounds the in-memory part of a multipart request.
const maxFormMemory = 4 << 20

// ParseRequest reads a Request from an url-encoded or multipart POST.
func ParseRequest(r *http.Request) (Request, error) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return Request{}, errs.Wrap(errs.ErrKindInvalidInput, "malformed request", err)
	}

	req := Request{
		Type:       Kind(r.PostFormValue(fieldType)),
		Request:    r.PostFormValue(fieldRequest),
		NoResponse: formBool(r.PostFormValue(fieldNoResponse)),
		Compress:   formBool(r.PostFormValue(fieldCompress)),
	}
	if body := r.PostFormValue(fieldBody); body != "" {
		req.Body = json.RawMessage(body)
	}

	if req.Type == "" {
		return req, errs.New(errs.ErrKindInvalidInput, "missing request type")
	}
	if req.Request == "" {
		return req, errs.New(errs.ErrKindInvalidInput, "missing request")
	}
	return req, nil
}

func formBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}

// Response is the inbound envelope.
type Response struct {
	Status       bool            `json:"status"`
	ResponseBody json.RawMessage `json:"responseBody,omitempty"`
	Message      string          `json:"message,omitempty"`
}

// OK builds a successful envelope. A nil body yields {"status":true}.
func OK(body any) (Response, error) {
	if body == nil {
		return Response{Status: true}, nil
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return Response{}, errs.Wrap(errs.ErrKindUnknown, "failed to encode response", err)
	}
	return Response{Status: true, ResponseBody: raw}, nil
}

// Fail builds a failed envelope carrying msg.
func Fail(msg string) Response {
	return Response{Status: false, Message: msg}
}

// DeleteRequest is the body of an allowDelete request.
type DeleteRequest struct {
	TableName string          `json:"tableName"`
	RowNumber int             `json:"rowNumber"`
	Row       database.Record `json:"row"`
}

// DescribeRequest is the body of a describe request.
type DescribeRequest struct {
	TableName string `json:"tableName"`
}

// DecodeArgs decodes a JSON array of bound values. An empty body means no
// arguments. Integral numbers decode to int64.
func DecodeArgs(body json.RawMessage) ([]any, error) {
	if len(body) == 0 {
		return nil, nil
	}
	var args []any
	if err := unmarshalNumbers(body, &args); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "bound values must be a JSON array", err)
	}
	for i := range args {
		args[i] = database.NormalizeJSON(args[i])
	}
	return args, nil
}
