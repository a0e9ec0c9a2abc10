package outline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// chunkOverlap is how far past its end a chunk is scanned so that a call
// starting near the boundary still reaches its "(".
const chunkOverlap = 4096

// collectChunked scans fixed-size chunks concurrently. Each chunk keeps the
// hits whose identifier starts inside it, so the concatenation is ordered
// and free of duplicates. Nesting depth is recomputed over the whole text
// by assemble, which carries it across chunk boundaries.
func (b *Builder) collectChunked(ctx context.Context, text string) ([]hit, error) {
	size := b.chunkSize()
	n := (len(text) + size - 1) / size
	parts := make([][]hit, n)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers())
	for i := range n {
		from := i * size
		to := min(from+size, len(text))
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			parts[i] = collect(text, from, to, min(to+chunkOverlap, len(text)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var total int
	for _, p := range parts {
		total += len(p)
	}
	out := make([]hit, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out, nil
}
