package outbound

import (
	"context"

	"github.com/archon-research/stl/pyth-keeper/internal/domain/entity"
)

// ConfigSource fetches the oracle config document from a remote location.
type ConfigSource interface {
	// Name returns the source name (e.g., "gist").
	Name() string

	// FetchConfig fetches and fully parses the document identified by id.
	// It fails on network errors, missing documents and malformed content.
	FetchConfig(ctx context.Context, id string) (*entity.OracleConfig, error)
}

// SourceRouter is implemented by config sources that delegate to another
// source per id. Callers use it to label metrics with the source that
// actually serves id.
type SourceRouter interface {
	Route(id string) (ConfigSource, error)
}
