// Package queue moves solve requests and results through redis: requests
// are RPUSHed onto a list the worker LPOPs, results are stored with a
// one hour expiry.
package queue

import (
	"encoding/json"

	"github.com/garyburd/redigo/redis"
	"github.com/pkg/errors"

	"github.com/Sparsh-ui/captcha-solver/datastructures"
)

const (
	RequestList     = "solveme"
	ResultKeyPrefix = "solve"
	// ResultTTL is how long a result stays readable, in seconds. Nobody
	// polls for a CAPTCHA answer longer than that.
	ResultTTL = 3600
)

// ErrMalformed marks a popped entry that isn't a valid request. The entry
// is gone from the list; the next one can be popped right away.
var ErrMalformed = errors.New("malformed request")

// NewPool dials address for every new connection and keeps up to
// maxConnections idle ones.
func NewPool(address string, maxConnections int) *redis.Pool {
	return redis.NewPool(func() (redis.Conn, error) {
		c, err := redis.Dial("tcp", address)
		if err != nil {
			return nil, err
		}
		return c, err
	}, maxConnections)
}

type Queue struct {
	pool *redis.Pool
}

func NewQueue(pool *redis.Pool) *Queue {
	return &Queue{pool: pool}
}

// Push appends req to the request list.
func (q *Queue) Push(req datastructures.SolveRequest) error {
	serialized, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "couldn't marshal request")
	}

	conn := q.pool.Get()
	defer conn.Close()
	if _, err := conn.Do("RPUSH", RequestList, serialized); err != nil {
		return errors.Wrap(err, "couldn't push request")
	}
	return nil
}

// Pop removes the oldest request. It returns nil, nil when the list is
// empty.
func (q *Queue) Pop() (*datastructures.SolveRequest, error) {
	conn := q.pool.Get()
	defer conn.Close()

	data, err := redis.Bytes(conn.Do("LPOP", RequestList))
	if err == redis.ErrNil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "couldn't pop request")
	}

	var req datastructures.SolveRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, errors.Wrap(ErrMalformed, err.Error())
	}
	return &req, nil
}

type ResultStore struct {
	pool *redis.Pool
}

func NewResultStore(pool *redis.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

func resultKey(uuid string) string {
	return ResultKeyPrefix + uuid
}

// Put stores res under its uuid for ResultTTL seconds.
func (s *ResultStore) Put(res datastructures.SolveResult) error {
	serialized, err := json.Marshal(res)
	if err != nil {
		return errors.Wrap(err, "couldn't marshal result")
	}

	conn := s.pool.Get()
	defer conn.Close()
	if _, err := conn.Do("SETEX", resultKey(res.Uuid), ResultTTL, serialized); err != nil {
		return errors.Wrap(err, "couldn't store result")
	}
	return nil
}

// Get returns the result for uuid. ok is false while no result exists,
// which means either the uuid is wrong or processing isn't finished.
func (s *ResultStore) Get(uuid string) (res *datastructures.SolveResult, ok bool, err error) {
	conn := s.pool.Get()
	defer conn.Close()

	data, err := redis.Bytes(conn.Do("GET", resultKey(uuid)))
	if err == redis.ErrNil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "couldn't get result")
	}

	res = &datastructures.SolveResult{}
	if err := json.Unmarshal(data, res); err != nil {
		return nil, false, errors.Wrap(err, "couldn't unmarshal result")
	}
	return res, true, nil
}
