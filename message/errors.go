package message

import "errors"

// ErrMalformedMessage is returned when a decoded top-level map has
// neither a req_id nor a to key, so it cannot be classified as either
// a Request or a Response.
var ErrMalformedMessage = errors.New("message: neither a request nor a response")

// ErrUnexpectedKind is returned (wrapped) by operations that require a
// Request when handed a Response, such as zeroconn's Recv.
var ErrUnexpectedKind = errors.New("message: wrong kind for this operation")

// ErrMissingReqID names the case of a Message that cannot supply a
// request id. Nothing in this module returns it: zmux.Connection's
// Request reports that case with zmux.ErrMissingReqID.
var ErrMissingReqID = errors.New("message: no req_id available")
