package artifact

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Blob layout:
//
//	magic "ZPNB" | version (1 byte) | header length (uint32 BE) | JSON header | payload
var magic = []byte("ZPNB")

const formatVersion byte = 1

const maxHeaderSize = 64 << 10

// Compression names recorded in the header.
const (
	CompressionNone = "none"
	CompressionZstd = "zstd"
)

var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

// EncodeOptions controls how a blob is written.
type EncodeOptions struct {
	Compress bool
}

// Header describes a stored blob.
type Header struct {
	Role         Role      `json:"role"`
	Kind         string    `json:"kind"`
	Capabilities []string  `json:"capabilities"`
	Compression  string    `json:"compression"`
	CreatedAt    time.Time `json:"created_at"`
}

// Encode serialises a into a role-tagged blob.
func Encode(role Role, a Artifact, opts EncodeOptions) ([]byte, error) {
	caps := Capabilities(a)
	if missing := missingCapabilities(role, caps); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s cannot act as %s, missing %v", ErrArtifactIncompatible, a.Kind(), role, missing)
	}

	payload, err := a.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s artifact: %w", role, err)
	}

	header := Header{
		Role:         role,
		Kind:         a.Kind(),
		Capabilities: caps,
		Compression:  CompressionNone,
		CreatedAt:    time.Now().UTC(),
	}
	if opts.Compress {
		payload = zstdEncoder.EncodeAll(payload, nil)
		header.Compression = CompressionZstd
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal artifact header: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(len(magic) + 5 + len(headerJSON) + len(payload))
	buf.Write(magic)
	buf.WriteByte(formatVersion)
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(headerJSON)))
	buf.Write(headerJSON)
	buf.Write(payload)
	return buf.Bytes(), nil
}

// ReadHeader parses only the header of a blob.
func ReadHeader(blob []byte) (*Header, []byte, error) {
	if len(blob) < len(magic)+5 || !bytes.Equal(blob[:len(magic)], magic) {
		return nil, nil, fmt.Errorf("%w: not an artifact blob", ErrArtifactIncompatible)
	}
	if v := blob[len(magic)]; v != formatVersion {
		return nil, nil, fmt.Errorf("%w: unsupported format version %d", ErrArtifactIncompatible, v)
	}

	rest := blob[len(magic)+1:]
	size := binary.BigEndian.Uint32(rest[:4])
	rest = rest[4:]
	if size > maxHeaderSize || int(size) > len(rest) {
		return nil, nil, fmt.Errorf("%w: truncated header", ErrArtifactIncompatible)
	}

	var header Header
	if err := json.Unmarshal(rest[:size], &header); err != nil {
		return nil, nil, fmt.Errorf("%w: unreadable header: %v", ErrArtifactIncompatible, err)
	}
	return &header, rest[size:], nil
}

// Decode validates a blob for role and returns the restored artifact.
func Decode(role Role, blob []byte) (Artifact, error) {
	header, payload, err := ReadHeader(blob)
	if err != nil {
		return nil, err
	}
	if header.Role != role {
		return nil, fmt.Errorf("%w: blob holds a %s, expected %s", ErrArtifactIncompatible, header.Role, role)
	}
	if missing := missingCapabilities(role, header.Capabilities); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s artifact lacks %v", ErrArtifactIncompatible, role, missing)
	}

	factory, ok := lookup(header.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrArtifactIncompatible, header.Kind)
	}

	switch header.Compression {
	case CompressionNone, "":
	case CompressionZstd:
		payload, err = zstdDecoder.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to decompress payload: %v", ErrArtifactIncompatible, err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown compression %q", ErrArtifactIncompatible, header.Compression)
	}

	obj := factory()
	if err := obj.UnmarshalBinary(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactIncompatible, err)
	}

	// the declared capabilities are only a claim; check the object itself
	if missing := missingCapabilities(role, Capabilities(obj)); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s does not implement %v", ErrArtifactIncompatible, header.Kind, missing)
	}
	return obj, nil
}

func missingCapabilities(role Role, have []string) []string {
	required := RequiredCapabilities(role)
	if required == nil {
		return []string{"known role"}
	}
	set := make(map[string]struct{}, len(have))
	for _, c := range have {
		set[c] = struct{}{}
	}
	var missing []string
	for _, c := range required {
		if _, ok := set[c]; !ok {
			missing = append(missing, c)
		}
	}
	return missing
}
