package zeroconn

import "errors"

// errUnexpectedRequest is wrapped into Connect's error when the peer
// answers a handshake with another request instead of a response —
// a protocol violation, since request() always pairs with a response.
var errUnexpectedRequest = errors.New("received a request where a response was expected")
