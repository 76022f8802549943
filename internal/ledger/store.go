package ledger

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// SchemaVersion is bumped whenever Session changes shape. Readers reject
// files written under any other schema.
const SchemaVersion uint16 = 1

var (
	// ErrSchemaMismatch is returned for files written by another schema.
	ErrSchemaMismatch = errors.New("ledger schema mismatch")
	// ErrBadSession is returned for files that decode but are not sessions.
	ErrBadSession = errors.New("invalid ledger session")
)

// Codec selects the on-disk encoding.
type Codec uint8

const (
	CodecMsgpack Codec = iota
	CodecCBOR
)

func (c Codec) String() string {
	switch c {
	case CodecMsgpack:
		return "msgpack"
	case CodecCBOR:
		return "cbor"
	default:
		return fmt.Sprintf("Codec(%d)", c)
	}
}

// ParseCodec converts a config or flag value to a Codec.
func ParseCodec(s string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "msgpack", "mp":
		return CodecMsgpack, nil
	case "cbor":
		return CodecCBOR, nil
	default:
		return CodecMsgpack, fmt.Errorf("invalid ledger codec: %q (expected: msgpack|cbor)", s)
	}
}

// CodecFor picks the codec implied by a file extension.
func CodecFor(path string) Codec {
	if strings.EqualFold(filepath.Ext(path), ".cbor") {
		return CodecCBOR
	}
	return CodecMsgpack
}

// Session is the persisted form of a ledger.
type Session struct {
	Schema   uint16    `msgpack:"schema" cbor:"schema" json:"schema"`
	ID       string    `msgpack:"id" cbor:"id" json:"id"`
	Created  time.Time `msgpack:"created" cbor:"created" json:"created"`
	Universe string    `msgpack:"universe" cbor:"universe" json:"universe"`
	Entries  []Entry   `msgpack:"entries" cbor:"entries" json:"entries"`
}

// DependentsOf is Ledger.DependentsOf for a loaded session.
func (s *Session) DependentsOf(typeName string) []Entry {
	var out []Entry
	for _, e := range s.Entries {
		for _, t := range e.Types {
			if t == typeName {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("ledger: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Marshal encodes s with codec.
func Marshal(s *Session, codec Codec) ([]byte, error) {
	switch codec {
	case CodecCBOR:
		return cborEncMode.Marshal(s)
	case CodecMsgpack:
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetSortMapKeys(true)
		if err := enc.Encode(s); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown codec %s", codec)
	}
}

// Unmarshal decodes and validates a session.
func Unmarshal(data []byte, codec Codec) (*Session, error) {
	var s Session
	var err error
	switch codec {
	case CodecCBOR:
		err = cbor.Unmarshal(data, &s)
	case CodecMsgpack:
		err = msgpack.Unmarshal(data, &s)
	default:
		return nil, fmt.Errorf("unknown codec %s", codec)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s session: %w", codec, err)
	}
	if s.Schema != SchemaVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrSchemaMismatch, s.Schema, SchemaVersion)
	}
	if _, err := uuid.Parse(s.ID); err != nil {
		return nil, fmt.Errorf("%w: session id: %w", ErrBadSession, err)
	}
	return &s, nil
}

// Save writes the ledger to path atomically: a temp file in the same
// directory is renamed over the target.
func (l *Ledger) Save(path string, codec Codec) error {
	data, err := Marshal(l.Session(), codec)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "ledger-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer os.Remove(tmp) // no-op after a successful rename
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads a session saved by Save. The extension picks the codec tried
// first; the other one is tried when that fails to decode.
func Load(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	first := CodecFor(path)
	s, err := Unmarshal(data, first)
	if err != nil && !errors.Is(err, ErrSchemaMismatch) && !errors.Is(err, ErrBadSession) {
		other := CodecCBOR
		if first == CodecCBOR {
			other = CodecMsgpack
		}
		if alt, altErr := Unmarshal(data, other); altErr == nil {
			return alt, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
