// Package wire implements the fixed internal encoding used for the two
// store record families brrr itself owns the shape of: call payloads and
// pending-returns sets. It is deliberately independent of the pluggable
// user codec (see package codec) — two different deployments using two
// different argument codecs must still agree on how the runtime's own
// bookkeeping records look on the wire.
//
// The encoding is bencode: a minimal, self-delimiting, deterministic
// format (strings are length-prefixed, dicts are key-sorted). No bencode
// library appears anywhere in the surrounding codebase, so this is a
// small hand-rolled encoder/decoder rather than a dependency; the format
// itself is simple enough that no indirection is worth adding.
package wire

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// CallRecord is the wire shape of a ("call", memo_key) store record.
type CallRecord struct {
	TaskName      string
	TaskArgsBytes []byte
}

// EncodeCallRecord bencodes a CallRecord as a dict:
// d8:task_name<len>:<name>10:task_args<len>:<bytes>e
func EncodeCallRecord(r CallRecord) []byte {
	var b strings.Builder
	b.WriteByte('d')
	writeBString(&b, "task_args")
	writeBBytes(&b, r.TaskArgsBytes)
	writeBString(&b, "task_name")
	writeBString(&b, r.TaskName)
	b.WriteByte('e')
	return []byte(b.String())
}

// DecodeCallRecord parses the output of EncodeCallRecord.
func DecodeCallRecord(data []byte) (CallRecord, error) {
	d := &decoder{s: string(data)}
	v, err := d.decodeValue()
	if err != nil {
		return CallRecord{}, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return CallRecord{}, fmt.Errorf("wire: call record is not a dict")
	}
	name, _ := m["task_name"].(string)
	argsStr, _ := m["task_args"].(string)
	return CallRecord{TaskName: name, TaskArgsBytes: []byte(argsStr)}, nil
}

// PendingReturnsRecord is the wire shape of a ("pending_returns", memo_key)
// store record. ScheduledAt is -1 to represent "null" (not yet scheduled).
type PendingReturnsRecord struct {
	ScheduledAt int64
	Returns     []string // sorted, deduplicated parent memo_keys
}

// EncodePendingReturns bencodes a PendingReturnsRecord deterministically:
// the returns list is always sorted before encoding, so byte-exact CAS
// comparisons are stable regardless of insertion order.
func EncodePendingReturns(r PendingReturnsRecord) []byte {
	sorted := append([]string(nil), r.Returns...)
	sort.Strings(sorted)

	var b strings.Builder
	b.WriteByte('d')
	writeBString(&b, "returns")
	b.WriteByte('l')
	for _, parent := range sorted {
		writeBString(&b, parent)
	}
	b.WriteByte('e')
	writeBString(&b, "scheduled_at")
	writeBInt(&b, r.ScheduledAt)
	b.WriteByte('e')
	return []byte(b.String())
}

// DecodePendingReturns parses the output of EncodePendingReturns.
func DecodePendingReturns(data []byte) (PendingReturnsRecord, error) {
	d := &decoder{s: string(data)}
	v, err := d.decodeValue()
	if err != nil {
		return PendingReturnsRecord{}, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return PendingReturnsRecord{}, fmt.Errorf("wire: pending_returns record is not a dict")
	}
	scheduledAt, _ := m["scheduled_at"].(int64)
	var returns []string
	if list, ok := m["returns"].([]any); ok {
		returns = make([]string, 0, len(list))
		for _, item := range list {
			s, _ := item.(string)
			returns = append(returns, s)
		}
	}
	return PendingReturnsRecord{ScheduledAt: scheduledAt, Returns: returns}, nil
}

func writeBString(b *strings.Builder, s string) {
	writeBBytes(b, []byte(s))
}

func writeBBytes(b *strings.Builder, data []byte) {
	b.WriteString(strconv.Itoa(len(data)))
	b.WriteByte(':')
	b.Write(data)
}

func writeBInt(b *strings.Builder, n int64) {
	b.WriteByte('i')
	b.WriteString(strconv.FormatInt(n, 10))
	b.WriteByte('e')
}

// decoder is a minimal recursive-descent bencode reader sufficient for the
// dict/list/string/int shapes produced above.
type decoder struct {
	s   string
	pos int
}

func (d *decoder) decodeValue() (any, error) {
	if d.pos >= len(d.s) {
		return nil, fmt.Errorf("wire: unexpected end of input")
	}
	switch d.s[d.pos] {
	case 'd':
		return d.decodeDict()
	case 'l':
		return d.decodeList()
	case 'i':
		return d.decodeInt()
	default:
		return d.decodeString()
	}
}

func (d *decoder) decodeDict() (map[string]any, error) {
	d.pos++ // 'd'
	m := make(map[string]any)
	for d.pos < len(d.s) && d.s[d.pos] != 'e' {
		key, err := d.decodeString()
		if err != nil {
			return nil, err
		}
		val, err := d.decodeValue()
		if err != nil {
			return nil, err
		}
		m[key] = val
	}
	if d.pos >= len(d.s) {
		return nil, fmt.Errorf("wire: unterminated dict")
	}
	d.pos++ // 'e'
	return m, nil
}

func (d *decoder) decodeList() ([]any, error) {
	d.pos++ // 'l'
	var list []any
	for d.pos < len(d.s) && d.s[d.pos] != 'e' {
		val, err := d.decodeValue()
		if err != nil {
			return nil, err
		}
		list = append(list, val)
	}
	if d.pos >= len(d.s) {
		return nil, fmt.Errorf("wire: unterminated list")
	}
	d.pos++ // 'e'
	return list, nil
}

func (d *decoder) decodeInt() (int64, error) {
	d.pos++ // 'i'
	end := strings.IndexByte(d.s[d.pos:], 'e')
	if end < 0 {
		return 0, fmt.Errorf("wire: unterminated int")
	}
	n, err := strconv.ParseInt(d.s[d.pos:d.pos+end], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("wire: invalid int: %w", err)
	}
	d.pos += end + 1
	return n, nil
}

func (d *decoder) decodeString() (string, error) {
	colon := strings.IndexByte(d.s[d.pos:], ':')
	if colon < 0 {
		return "", fmt.Errorf("wire: invalid string length prefix")
	}
	n, err := strconv.Atoi(d.s[d.pos : d.pos+colon])
	if err != nil {
		return "", fmt.Errorf("wire: invalid string length: %w", err)
	}
	start := d.pos + colon + 1
	end := start + n
	if end > len(d.s) {
		return "", fmt.Errorf("wire: string length exceeds input")
	}
	d.pos = end
	return d.s[start:end], nil
}
