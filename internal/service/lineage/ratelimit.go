package lineage

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/domain"
)

// RateLimitedSource caps the request rate sent to an edge source shared by
// every traversal. A wait that cannot finish before the context deadline is
// reported as a timeout.
type RateLimitedSource struct {
	next    domain.EdgeSource
	limiter *rate.Limiter
}

// RateLimitedColumnSource is a RateLimitedSource over a source that also
// serves column edges. Both kinds of fetch draw from the same bucket.
type RateLimitedColumnSource struct {
	*RateLimitedSource
	columns domain.ColumnEdgeSource
}

// NewRateLimitedSource wraps next with a token bucket of rps requests per
// second and the given burst. The result implements domain.ColumnEdgeSource
// only when next does, so callers can still detect column support.
func NewRateLimitedSource(next domain.EdgeSource, rps float64, burst int) domain.EdgeSource {
	if burst < 1 {
		burst = 1
	}
	s := &RateLimitedSource{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
	if cs, ok := next.(domain.ColumnEdgeSource); ok {
		return &RateLimitedColumnSource{RateLimitedSource: s, columns: cs}
	}
	return s
}

// Fetch implements domain.EdgeSource.
func (s *RateLimitedSource) Fetch(ctx context.Context, anchor string, role domain.AnchorRole, daysBack int) ([]domain.RawEdge, error) {
	if err := s.wait(ctx, anchor); err != nil {
		return nil, err
	}
	return s.next.Fetch(ctx, anchor, role, daysBack)
}

// FetchColumns implements domain.ColumnEdgeSource.
func (s *RateLimitedColumnSource) FetchColumns(ctx context.Context, anchor string, role domain.AnchorRole, daysBack int) ([]domain.RawColumnEdge, error) {
	if err := s.wait(ctx, anchor); err != nil {
		return nil, err
	}
	return s.columns.FetchColumns(ctx, anchor, role, daysBack)
}

func (s *RateLimitedSource) wait(ctx context.Context, anchor string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return domain.ErrTimeout(err, "rate limit wait for %s", anchor)
	}
	return nil
}

var (
	_ domain.EdgeSource       = (*RateLimitedSource)(nil)
	_ domain.EdgeSource       = (*RateLimitedColumnSource)(nil)
	_ domain.ColumnEdgeSource = (*RateLimitedColumnSource)(nil)
)
