// Command zeropeer is an interactive REPL for talking to a ZeroNet
// peer directly: connect to an address, issue commands by name with
// key=value parameters, and print whatever comes back. It exists for
// manual protocol exploration, the same role miniclient's Attach
// plays for a running minimega instance.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/sandia-minimega/zeromesh/address"
	"github.com/sandia-minimega/zeromesh/internal/mlog"
	"github.com/sandia-minimega/zeromesh/message"
	"github.com/sandia-minimega/zeromesh/zeroconn"
)

var commands = []string{
	"ping", "handshake", "getFile", "streamFile", "pex", "announce",
	"listModified", "getHashfield", "setHashfield", "findHashIds",
	"checkport", "getPieceFields", "setPieceFields", "disconnect", "quit",
}

func main() {
	addrFlag := flag.String("addr", "", "peer address to connect to, e.g. 127.0.0.1:15441")
	flag.Parse()
	mlog.Init()

	if *addrFlag == "" {
		fmt.Fprintln(os.Stderr, "usage: zeropeer -addr host:port")
		os.Exit(1)
	}

	addr, err := address.Parse(*addrFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "parsing address:", err)
		os.Exit(1)
	}

	conn, err := zeroconn.FromAddress(addr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connecting:", err)
		os.Exit(1)
	}
	defer conn.Close()

	attach(conn, addr.String())
}

func attach(conn *zeroconn.ZeroConnection, peerLabel string) {
	input := liner.NewLiner()
	defer input.Close()

	input.SetCtrlCAborts(true)
	input.SetTabCompletionStyle(liner.TabPrints)
	input.SetCompleter(func(line string) []string {
		var matches []string
		for _, c := range commands {
			if strings.HasPrefix(c, line) {
				matches = append(matches, c)
			}
		}
		return matches
	})

	prompt := fmt.Sprintf("zeropeer:%v$ ", peerLabel)

	for {
		line, err := input.Prompt(prompt)
		if err == liner.ErrPromptAborted {
			continue
		} else if err == io.EOF {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		input.AppendHistory(line)

		if line == "disconnect" || line == "quit" {
			break
		}

		cmd, rest := splitCommand(line)
		params, err := parseParams(cmd, rest)
		if err != nil {
			fmt.Fprintln(os.Stderr, "params:", err)
			continue
		}

		resp, err := conn.Request(cmd, params)
		if err != nil {
			fmt.Fprintln(os.Stderr, "request failed:", err)
			continue
		}
		printResponse(resp)
	}
}

func splitCommand(line string) (cmd string, rest string) {
	parts := strings.SplitN(line, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.TrimSpace(parts[1])
}

// parseParams builds a command's params from a small "key=value
// key2=value2" shorthand. Every value is sent as a string, and tokens
// without an "=" are ignored; checkport alone takes a bare port number.
func parseParams(cmd, rest string) (message.Value, error) {
	switch cmd {
	case "ping", "quit", "disconnect":
		return message.Null(), nil
	case "checkport":
		port, err := strconv.Atoi(strings.TrimSpace(rest))
		if err != nil {
			return message.Value{}, fmt.Errorf("checkport wants a single port number: %w", err)
		}
		return message.CheckportRequest{Port: port}.ToParams(), nil
	}

	fields := map[string]message.Value{}
	for _, kv := range strings.Fields(rest) {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		fields[k] = message.String(v)
	}
	return message.Map(fields), nil
}

func printResponse(m message.Message) {
	if reason, ok := m.IsErrorResponse(); ok {
		fmt.Println("error:", reason)
		return
	}
	for k, v := range m.Body() {
		fmt.Printf("%s: %s\n", k, v)
	}
}
