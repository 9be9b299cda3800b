package message

// This file holds Go structs for the canonical command payloads listed
// in spec.md's wire format table, plus the glue that lifts them into
// and out of a Message's generic Value fields. Every field is
// optional on the wire (the protocol's peers tolerate missing keys),
// so each struct round-trips through a Value map rather than relying
// on msgpack struct tags: that keeps the "omit when default" behavior
// explicit and lets Handshake, in particular, share its shape between
// request and response as spec.md §6 requires.

// Handshake carries peer capability negotiation, either as the body
// of a handshake request or (sans req_id, with to) as its response.
type Handshake struct {
	PeerID          string
	FileserverPort  int
	Time            int64
	Protocol        string
	Version         string
	Rev             int
	Crypt           string // empty means absent/null
	CryptSupported  []string
	UseBinType      bool
	Onion           string // optional
	TargetIP        string // optional
	PortOpened      bool
	HasPortOpened   bool // true if PortOpened should be serialized
}

// ToParams lowers h into the params Value of a handshake request.
func (h Handshake) ToParams() Value {
	m := map[string]Value{
		"peer_id":         String(h.PeerID),
		"fileserver_port": Int(int64(h.FileserverPort)),
		"time":            Int(h.Time),
		"protocol":        String(h.Protocol),
		"version":         String(h.Version),
		"rev":             Int(int64(h.Rev)),
		"crypt_supported": stringArray(h.CryptSupported),
		"use_bin_type":    Bool(h.UseBinType),
	}
	if h.Crypt != "" {
		m["crypt"] = String(h.Crypt)
	}
	if h.Onion != "" {
		m["onion"] = String(h.Onion)
	}
	if h.TargetIP != "" {
		m["target_ip"] = String(h.TargetIP)
	}
	if h.HasPortOpened {
		m["port_opened"] = Bool(h.PortOpened)
	}
	return Map(m)
}

// HandshakeFromValue reads a Handshake back out of params or a flattened
// response body.
func HandshakeFromValue(v Value) Handshake {
	var h Handshake
	h.PeerID = getString(v, "peer_id")
	h.FileserverPort = int(getInt(v, "fileserver_port"))
	h.Time = getInt(v, "time")
	h.Protocol = getString(v, "protocol")
	h.Version = getString(v, "version")
	h.Rev = int(getInt(v, "rev"))
	h.Crypt = getString(v, "crypt")
	h.CryptSupported = getStringArray(v, "crypt_supported")
	h.UseBinType = getBool(v, "use_bin_type")
	h.Onion = getString(v, "onion")
	h.TargetIP = getString(v, "target_ip")
	if pv, ok := v.Get("port_opened"); ok {
		h.HasPortOpened = true
		h.PortOpened, _ = pv.Bool()
	}
	return h
}

// PongBody is the fixed response body to a ping request.
func PongBody() map[string]Value {
	return map[string]Value{"body": String("Pong!")}
}

// AnnounceRequest is the params of an announce request: a peer
// advertising itself and asking for others.
type AnnounceRequest struct {
	Port          int
	Add           bool
	NeedTypes     []string
	NeedNum       int
	Hashes        [][]byte
	Onions        []string
	OnionSigns    [][]byte
	OnionSignThis string
	Delete        bool
}

func (a AnnounceRequest) ToParams() Value {
	return Map(map[string]Value{
		"port":            Int(int64(a.Port)),
		"add":             Bool(a.Add),
		"need_types":      stringArray(a.NeedTypes),
		"need_num":        Int(int64(a.NeedNum)),
		"hashes":          bytesArray(a.Hashes),
		"onions":          stringArray(a.Onions),
		"onion_signs":     bytesArray(a.OnionSigns),
		"onion_sign_this": String(a.OnionSignThis),
		"delete":          Bool(a.Delete),
	})
}

// AnnouncePeers is one family's slice of packed peer addresses in an
// announce response, keyed exactly as spec.md §6 lists.
type AnnouncePeers struct {
	IPv4    [][]byte
	IPv6    [][]byte
	Onion   [][]byte
	OnionV3 [][]byte
	I2PB32  [][]byte
	Loki    [][]byte
}

func (p AnnouncePeers) ToValue() Value {
	return Map(map[string]Value{
		"ipv4":     bytesArray(p.IPv4),
		"ipv6":     bytesArray(p.IPv6),
		"onion":    bytesArray(p.Onion),
		"onion_v3": bytesArray(p.OnionV3),
		"i2p_b32":  bytesArray(p.I2PB32),
		"loki":     bytesArray(p.Loki),
	})
}

func AnnounceResponseBody(peers AnnouncePeers) map[string]Value {
	return map[string]Value{"peers": peers.ToValue()}
}

// GetFileRequest is the params of a getFile request.
type GetFileRequest struct {
	Site      string
	InnerPath string
	Location  int64
	FileSize  int64
}

func (g GetFileRequest) ToParams() Value {
	return Map(map[string]Value{
		"site":       String(g.Site),
		"inner_path": String(g.InnerPath),
		"location":   Int(g.Location),
		"file_size":  Int(g.FileSize),
	})
}

// GetFileResponseBody builds the body/location/size fields of a
// getFile response.
func GetFileResponseBody(body []byte, location, size int64) map[string]Value {
	return map[string]Value{
		"body":     Bytes(body),
		"location": Int(location),
		"size":     Int(size),
	}
}

// StreamFileRequest is the params of a streamFile request.
type StreamFileRequest struct {
	InnerPath string
	Size      int64
}

func (s StreamFileRequest) ToParams() Value {
	return Map(map[string]Value{
		"inner_path": String(s.InnerPath),
		"size":       Int(s.Size),
	})
}

func StreamFileResponseBody(streamBytes int64) map[string]Value {
	return map[string]Value{"stream_bytes": Int(streamBytes)}
}

// PexRequest is the params of a pex request.
type PexRequest struct {
	Site        string
	Peers       [][]byte
	PeersOnion  [][]byte
	Need        int
}

func (p PexRequest) ToParams() Value {
	return Map(map[string]Value{
		"site":        String(p.Site),
		"peers":       bytesArray(p.Peers),
		"peers_onion": bytesArray(p.PeersOnion),
		"need":        Int(int64(p.Need)),
	})
}

func PexResponseBody(peers, peersOnion [][]byte) map[string]Value {
	return map[string]Value{
		"peers":       bytesArray(peers),
		"peers_onion": bytesArray(peersOnion),
	}
}

// Diff is one entry of an update request's diffs array.
type Diff struct {
	Opcode string
	Patch  []byte
}

// UpdateRequest is the params of an update request.
type UpdateRequest struct {
	Site      string
	InnerPath string
	Body      []byte
	Diffs     []Diff
}

func (u UpdateRequest) ToParams() Value {
	diffs := make([]Value, len(u.Diffs))
	for i, d := range u.Diffs {
		diffs[i] = Map(map[string]Value{
			"opcode": String(d.Opcode),
			"diff":   Bytes(d.Patch),
		})
	}
	return Map(map[string]Value{
		"site":       String(u.Site),
		"inner_path": String(u.InnerPath),
		"body":       Bytes(u.Body),
		"diffs":      Array(diffs...),
	})
}

// ListModifiedRequest is the params of a listModified request.
type ListModifiedRequest struct {
	Site  string
	Since int64
}

func (l ListModifiedRequest) ToParams() Value {
	return Map(map[string]Value{
		"site":  String(l.Site),
		"since": Int(l.Since),
	})
}

// HashfieldRequest is the shared shape of getHashfield/setHashfield.
type HashfieldRequest struct {
	Site         string
	HashfieldRaw []byte
}

func (h HashfieldRequest) ToParams() Value {
	m := map[string]Value{"site": String(h.Site)}
	if h.HashfieldRaw != nil {
		m["hashfield_raw"] = Bytes(h.HashfieldRaw)
	}
	return Map(m)
}

func HashfieldResponseBody(raw []byte) map[string]Value {
	return map[string]Value{"hashfield_raw": Bytes(raw)}
}

// FindHashIdsRequest is the params of a findHashIds request.
type FindHashIdsRequest struct {
	Site    string
	HashIDs []int64
}

func (f FindHashIdsRequest) ToParams() Value {
	ids := make([]Value, len(f.HashIDs))
	for i, id := range f.HashIDs {
		ids[i] = Int(id)
	}
	return Map(map[string]Value{
		"site":     String(f.Site),
		"hash_ids": Array(ids...),
	})
}

// CheckportRequest is the params of a checkport request.
type CheckportRequest struct {
	Port int
}

func (c CheckportRequest) ToParams() Value {
	return Map(map[string]Value{"port": Int(int64(c.Port))})
}

// PieceFieldsRequest is the shared shape of
// getPieceFields/setPieceFields.
type PieceFieldsRequest struct {
	Site               string
	PiecefieldsPacked []byte
}

func (p PieceFieldsRequest) ToParams() Value {
	m := map[string]Value{"site": String(p.Site)}
	if p.PiecefieldsPacked != nil {
		m["piecefields_packed"] = Bytes(p.PiecefieldsPacked)
	}
	return Map(m)
}

func PieceFieldsResponseBody(packed []byte) map[string]Value {
	return map[string]Value{"piecefields_packed": Bytes(packed)}
}

// --- small helpers shared by the templates above ---

func stringArray(ss []string) Value {
	items := make([]Value, len(ss))
	for i, s := range ss {
		items[i] = String(s)
	}
	return Array(items...)
}

func bytesArray(bs [][]byte) Value {
	items := make([]Value, len(bs))
	for i, b := range bs {
		items[i] = Bytes(b)
	}
	return Array(items...)
}

func getString(v Value, key string) string {
	if fv, ok := v.Get(key); ok {
		s, _ := fv.StringValue()
		return s
	}
	return ""
}

func getInt(v Value, key string) int64 {
	if fv, ok := v.Get(key); ok {
		if i, ok := fv.Int(); ok {
			return i
		}
		if u, ok := fv.Uint(); ok {
			return int64(u)
		}
	}
	return 0
}

func getBool(v Value, key string) bool {
	if fv, ok := v.Get(key); ok {
		b, _ := fv.Bool()
		return b
	}
	return false
}

func getStringArray(v Value, key string) []string {
	fv, ok := v.Get(key)
	if !ok {
		return nil
	}
	arr, ok := fv.ArrayValue()
	if !ok {
		return nil
	}
	out := make([]string, len(arr))
	for i, item := range arr {
		out[i], _ = item.StringValue()
	}
	return out
}
