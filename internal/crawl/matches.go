package crawl

import (
	"context"
	"fmt"

	"github.com/okian/rankcrawl/internal/domain/model"
	"github.com/okian/rankcrawl/pkg/logger"
	"github.com/okian/rankcrawl/pkg/metrics"
)

// FetchMatches reads match ids from ids until it is closed, fetching them
// matchBatch at a time (Stage C). Each fetched detail is handed to out as
// soon as its batch resolves; failed and not-found fetches are dropped. out
// is closed before returning, whatever the outcome. The returned count is
// the number of details handed to out.
func (o *Orchestrator) FetchMatches(ctx context.Context, ids <-chan int64, out Producer) (count int, err error) {
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close producer: %w", cerr)
		}
		o.log.Info(ctx, "match details fetched", logger.Int("count", count))
	}()

	batch := make([]int64, 0, o.matchBatch)
	flush := func() error {
		n, err := o.fetchBatch(ctx, batch, out, count)
		count += n
		batch = batch[:0]
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return count, ctx.Err()
		case id, ok := <-ids:
			if !ok {
				if len(batch) > 0 {
					return count, flush()
				}
				return count, nil
			}
			batch = append(batch, id)
			if len(batch) == o.matchBatch {
				if err := flush(); err != nil {
					return count, err
				}
			}
		}
	}
}

func (o *Orchestrator) fetchBatch(ctx context.Context, batch []int64, out Producer, sofar int) (int, error) {
	details := make([]model.MatchDetail, len(batch))
	ok := make([]bool, len(batch))
	err := inBatches(ctx, batch, len(batch), func(ctx context.Context, i int, id int64) {
		d, err := o.client.Match(ctx, id)
		if err != nil {
			o.log.Debug(ctx, "match dropped", logger.Int64("match_id", id), logger.Error(err))
			metrics.RecordMatchDropped()
			return
		}
		if d.ID == 0 {
			d.ID = id
		}
		details[i], ok[i] = d, true
	})
	if err != nil {
		return 0, err
	}

	n := 0
	for i := range details {
		if !ok[i] {
			continue
		}
		if err := out.Enqueue(ctx, details[i]); err != nil {
			return n, fmt.Errorf("enqueue match %d: %w", details[i].ID, err)
		}
		n++
		metrics.RecordMatchFetched()
		if (sofar+n)%progressEvery == 0 {
			o.log.Info(ctx, "fetched matches so far", logger.Int("count", sofar+n))
		}
	}
	return n, nil
}
