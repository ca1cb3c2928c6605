package entity

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// FeedIDLength is the byte length of a Pyth price feed identifier.
const FeedIDLength = 32

// FeedID identifies a single tracked price feed.
// The zero value is not a valid feed.
type FeedID [FeedIDLength]byte

// ParseFeedID canonicalizes a feed identifier. It accepts upper or lower case
// hex, with or without the "0x" prefix, surrounded by optional whitespace.
func ParseFeedID(s string) (FeedID, error) {
	var id FeedID

	raw := strings.ToLower(strings.TrimSpace(s))
	if !strings.HasPrefix(raw, "0x") {
		raw = "0x" + raw
	}

	b, err := hexutil.Decode(raw)
	if err != nil {
		return id, fmt.Errorf("invalid feed id %q: %w", s, err)
	}
	if len(b) != FeedIDLength {
		return id, fmt.Errorf("invalid feed id %q: expected %d bytes, got %d", s, FeedIDLength, len(b))
	}

	copy(id[:], b)
	return id, nil
}

// MustParseFeedID is like ParseFeedID but panics on error. Intended for tests and constants.
func MustParseFeedID(s string) FeedID {
	id, err := ParseFeedID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// Hex returns the canonical lower-case, 0x-prefixed form.
// This is the form used for storage keys.
func (f FeedID) Hex() string {
	return hexutil.Encode(f[:])
}

// String implements fmt.Stringer.
func (f FeedID) String() string {
	return f.Hex()
}

// Bytes32 returns the identifier as the fixed array expected by ABI bytes32 arguments.
func (f FeedID) Bytes32() [32]byte {
	return f
}

// IsZero reports whether the identifier is all zero bytes.
func (f FeedID) IsZero() bool {
	return f == FeedID{}
}

// MarshalText implements encoding.TextMarshaler.
func (f FeedID) MarshalText() ([]byte, error) {
	return []byte(f.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *FeedID) UnmarshalText(text []byte) error {
	id, err := ParseFeedID(string(text))
	if err != nil {
		return err
	}
	*f = id
	return nil
}

// FeedIDHexes returns the canonical hex form of each identifier, preserving order.
func FeedIDHexes(ids []FeedID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Hex()
	}
	return out
}
