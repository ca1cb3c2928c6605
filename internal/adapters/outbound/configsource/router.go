package configsource

import (
	"context"
	"fmt"
	"strings"

	"github.com/archon-research/stl/pyth-keeper/internal/domain/entity"
	"github.com/archon-research/stl/pyth-keeper/internal/ports/outbound"
)

var (
	_ outbound.ConfigSource = (*Router)(nil)
	_ outbound.SourceRouter = (*Router)(nil)
)

// Router selects a ConfigSource by the scheme of the id:
// "s3://" ids go to S3, "http://" and "https://" ids to URL, and anything
// else is treated as a gist id.
type Router struct {
	Gist outbound.ConfigSource
	S3   outbound.ConfigSource
	URL  outbound.ConfigSource
}

// Name returns the source name.
func (r *Router) Name() string {
	return "router"
}

// Route returns the source responsible for id.
func (r *Router) Route(id string) (outbound.ConfigSource, error) {
	var (
		src  outbound.ConfigSource
		kind string
	)
	switch {
	case strings.HasPrefix(id, "s3://"):
		src, kind = r.S3, "s3"
	case strings.HasPrefix(id, "http://"), strings.HasPrefix(id, "https://"):
		src, kind = r.URL, "url"
	default:
		src, kind = r.Gist, "gist"
	}
	if src == nil {
		return nil, fmt.Errorf("no %s config source configured for %q", kind, id)
	}
	return src, nil
}

// FetchConfig delegates to the source chosen by Route.
func (r *Router) FetchConfig(ctx context.Context, id string) (*entity.OracleConfig, error) {
	src, err := r.Route(id)
	if err != nil {
		return nil, err
	}
	return src.FetchConfig(ctx, id)
}
