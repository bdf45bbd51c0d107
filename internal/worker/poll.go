package worker

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/Sparsh-ui/captcha-solver/datastructures"
	"github.com/Sparsh-ui/captcha-solver/internal/queue"
)

// Source hands out pending requests; nil, nil means there is nothing to do.
// An error matching queue.ErrMalformed means an entry was consumed but
// unusable, and the next one is fetched without waiting.
type Source interface {
	Pop() (*datastructures.SolveRequest, error)
}

// Poll moves requests from src onto jobs until ctx is done, sleeping for
// idle whenever src is empty or failing.
func Poll(ctx context.Context, src Source, jobs chan<- Job, idle time.Duration) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		req, err := src.Pop()
		if errors.Is(err, queue.ErrMalformed) {
			log.Debug("[Poll] Couldn't unmarshal: ", err.Error())
			continue
		}
		if err != nil {
			log.Debug("[Poll] Couldn't fetch request: ", err.Error())
		}
		if req == nil {
			select {
			case <-time.After(idle):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		log.Debug("[Poll] Got a new request to process")
		select {
		case jobs <- Job{Request: *req}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
