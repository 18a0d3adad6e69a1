package message

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/types"
	"github.com/araddon/dateparse"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

/*
Canonical message format

A signable message is a compact JSON object with exactly four top level keys
in lexicographic order:

	{"action":"UPDATE_RULE","data":{...},"nonce":"0x<64 hex>","timestamp":1702857600000}

Only the top level is ordered. The bytes of "data" are compacted but keep
whatever key order the caller supplied, so a client in any language can
reproduce the exact string as long as it serialises its payload the same
way. Strings are escaped as JSON.stringify escapes them: HTML characters,
U+2028 and U+2029 are written raw. action and nonce must be valid UTF-8.
*/

// NonceLength is the number of random bytes in a generated nonce
const NonceLength = 32

var (
	ErrNotAnObject      = errors.New("message is not a JSON object")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)

// CreateMessage builds the canonical string for content, defaulting the
// timestamp to now and the nonce to a fresh random value.
func CreateMessage(content *types.ContentToSign) (string, error) {
	return createMessage(content, time.Now)
}

func createMessage(content *types.ContentToSign, now func() time.Time) (string, error) {
	if content == nil {
		return "", fmt.Errorf("content cannot be nil")
	}

	data, err := compactData(content.Data)
	if err != nil {
		return "", err
	}

	ts := content.Timestamp
	if ts == 0 {
		ts = now().UnixMilli()
	}

	nonce := content.Nonce
	if nonce == "" {
		nonce, err = GenerateNonce()
		if err != nil {
			return "", err
		}
	}

	if !utf8.ValidString(content.Action) {
		return "", fmt.Errorf("action is not valid UTF-8")
	}
	if !utf8.ValidString(nonce) {
		return "", fmt.Errorf("nonce is not valid UTF-8")
	}

	buf := make([]byte, 0, len(data)+len(content.Action)+len(nonce)+64)
	buf = append(buf, `{"action":`...)
	buf = appendString(buf, content.Action)
	buf = append(buf, `,"data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"nonce":`...)
	buf = appendString(buf, nonce)
	buf = append(buf, `,"timestamp":`...)
	buf = strconv.AppendInt(buf, ts, 10)
	buf = append(buf, '}')
	return string(buf), nil
}

// appendString writes s as a JSON string the way JSON.stringify does.
// Only the quote, the backslash and control characters are escaped;
// U+2028, U+2029 and HTML characters are written as is.
func appendString(dst []byte, s string) []byte {
	const hex = "0123456789abcdef"
	dst = append(dst, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\':
			dst = append(dst, '\\', c)
		case c == '\b':
			dst = append(dst, '\\', 'b')
		case c == '\f':
			dst = append(dst, '\\', 'f')
		case c == '\n':
			dst = append(dst, '\\', 'n')
		case c == '\r':
			dst = append(dst, '\\', 'r')
		case c == '\t':
			dst = append(dst, '\\', 't')
		case c < 0x20:
			dst = append(dst, '\\', 'u', '0', '0', hex[c>>4], hex[c&0xf])
		default:
			dst = append(dst, c)
		}
	}
	return append(dst, '"')
}

func compactData(raw json.RawMessage) (json.RawMessage, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return json.RawMessage("{}"), nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, fmt.Errorf("content data is not valid JSON: %w", err)
	}
	return buf.Bytes(), nil
}

// GenerateNonce returns NonceLength random bytes as a 0x prefixed hex string
func GenerateNonce() (string, error) {
	b := make([]byte, NonceLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hexutil.Encode(b), nil
}

// HashMessage returns keccak256 of the UTF-8 message bytes as 0x hex.
// It is a content hash for logging and deduplication, not a signing hash.
func HashMessage(message string) string {
	return crypto.Keccak256Hash([]byte(message)).Hex()
}

// ParsedMessage is a signed message decoded without any trust decisions.
// Timestamp is kept raw so the freshness policy decides how to read it.
type ParsedMessage struct {
	Action    string
	Data      json.RawMessage
	Nonce     string
	Timestamp json.RawMessage
}

// ParseMessage decodes a signed message string. Any JSON object is
// accepted. Keys match exactly (case-sensitive) and a repeated key keeps
// its last value. action and nonce are read only when they are strings.
func ParseMessage(msg string) (*ParsedMessage, error) {
	trimmed := strings.TrimSpace(msg)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, ErrNotAnObject
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	pm := &ParsedMessage{
		Data:      fields["data"],
		Timestamp: fields["timestamp"],
	}
	_ = json.Unmarshal(fields["action"], &pm.Action)
	_ = json.Unmarshal(fields["nonce"], &pm.Nonce)
	return pm, nil
}

// ParseTimestamp interprets a raw timestamp value from a signed message.
// Numbers and all-digit strings are milliseconds since epoch; other strings
// go through dateparse. Absent, null, 0, false and "" mean the message has
// no timestamp (ok == false). Objects, arrays, true and unparseable strings
// are errors.
func ParseTimestamp(raw json.RawMessage) (ts time.Time, ok bool, err error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return time.Time{}, false, nil
	}

	var v any
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %v", ErrInvalidTimestamp, err)
	}

	switch t := v.(type) {
	case nil:
		return time.Time{}, false, nil
	case bool:
		if !t {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("%w: boolean value", ErrInvalidTimestamp)
	case json.Number:
		return fromMillisNumber(t.String())
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false, nil
		}
		if isDigits(s) {
			return fromMillisNumber(s)
		}
		parsed, err := dateparse.ParseStrict(s)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("%w: %v", ErrInvalidTimestamp, err)
		}
		return parsed, true, nil
	default:
		return time.Time{}, false, fmt.Errorf("%w: unsupported type %T", ErrInvalidTimestamp, v)
	}
}

func fromMillisNumber(s string) (time.Time, bool, error) {
	ms, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %v", ErrInvalidTimestamp, err)
	}
	// the largest epoch offset most date libraries accept
	const maxMillis = 8.64e15
	if ms > maxMillis || ms < -maxMillis {
		return time.Time{}, false, fmt.Errorf("%w: out of range", ErrInvalidTimestamp)
	}
	if ms == 0 {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(int64(ms)), true, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
