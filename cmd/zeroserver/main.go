// Command zeroserver is a minimal ZeroNet peer server: it accepts
// connections, performs the handshake, and answers ping and checkport
// — enough to be a useful endpoint for zeropeer or another
// implementation to test against. Its accept loop follows
// src/meshage/node.go's connectionListener/handleConnection split in
// this module's teacher, adapted from meshage's own handshake to this
// module's.
package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/sandia-minimega/zeromesh/internal/mlog"
	"github.com/sandia-minimega/zeromesh/internal/portcheck"
	"github.com/sandia-minimega/zeromesh/message"
	"github.com/sandia-minimega/zeromesh/zeroconn"
)

var (
	flagPort     = flag.Int("port", 15441, "fileserver port to listen on")
	flagPeerID   = flag.String("peer-id", "-ZN0056-GOPEER000001", "peer id advertised in handshakes")
)

func main() {
	flag.Parse()
	mlog.Init()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", *flagPort))
	if err != nil {
		fmt.Fprintln(os.Stderr, "listen:", err)
		os.Exit(1)
	}
	mlog.Info("zeroserver: listening on %v", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			mlog.Error("accept: %v", err)
			continue
		}
		go handleConnection(conn)
	}
}

func handleConnection(raw net.Conn) {
	mlog.Debug("zeroserver: accepted connection from %v", raw.RemoteAddr())

	conn := zeroconn.New(raw)
	defer conn.Close()

	for {
		req, err := conn.Recv()
		if errors.Is(err, message.ErrUnexpectedKind) {
			mlog.Error("zeroserver: received a message with no req_id, dropping")
			continue
		}
		if err != nil {
			mlog.Debug("zeroserver: connection from %v ended: %v", raw.RemoteAddr(), err)
			return
		}

		reqID, ok := req.ReqID()
		if !ok {
			mlog.Error("zeroserver: received a message with no req_id, dropping")
			continue
		}

		if err := dispatch(conn, reqID, req); err != nil {
			mlog.Error("zeroserver: handling %s: %v", req.Cmd(), err)
		}
	}
}

func dispatch(conn *zeroconn.ZeroConnection, reqID uint64, req message.Message) error {
	switch req.Cmd() {
	case "ping":
		return conn.Respond(reqID, message.PongBody())

	case "handshake":
		peer := message.HandshakeFromValue(req.Params())
		mlog.Info("zeroserver: handshake from peer_id=%q version=%q", peer.PeerID, peer.Version)

		ours := message.Handshake{
			PeerID:         *flagPeerID,
			FileserverPort: *flagPort,
			Protocol:       "v2",
			Version:        "0.7.0",
			CryptSupported: []string{"tls-rsa"},
		}
		body, _ := ours.ToParams().MapValue()
		return conn.Respond(reqID, body)

	case "checkport":
		port := int(getInt(req.Params(), "port"))
		res := portcheck.Check(uint16(port), 3*time.Second)
		return conn.Respond(reqID, map[string]message.Value{
			"status": message.Bool(res.Open),
		})

	default:
		return conn.RespondError(reqID, fmt.Sprintf("unsupported command: %s", req.Cmd()))
	}
}

func getInt(v message.Value, key string) int64 {
	fv, ok := v.Get(key)
	if !ok {
		return 0
	}
	if i, ok := fv.Int(); ok {
		return i
	}
	if u, ok := fv.Uint(); ok {
		return int64(u)
	}
	return 0
}
