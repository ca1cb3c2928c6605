package testutil

import (
	"io"
	"log/slog"
	"math/big"
	"strings"
	"testing"

	"github.com/archon-research/stl/pyth-keeper/internal/domain/entity"
)

// DiscardLogger returns an slog.Logger that writes to io.Discard.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// FeedID returns a 32-byte feed id made of the given byte repeated, e.g. FeedID("aa").
func FeedID(b string) entity.FeedID {
	return entity.MustParseFeedID("0x" + strings.Repeat(b, entity.FeedIDLength))
}

// PriceRecord builds a record with zero conf and expo -8.
func PriceRecord(t *testing.T, price int64, publishTime int64) entity.PriceRecord {
	t.Helper()
	r, err := entity.NewPriceRecord(big.NewInt(price), big.NewInt(0), -8, publishTime)
	if err != nil {
		t.Fatalf("NewPriceRecord: %v", err)
	}
	return r
}
