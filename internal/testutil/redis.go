package testutil

import (
	"fmt"
	"strings"
	"sync"

	"github.com/garyburd/redigo/redis"
)

// FakeRedis is an in-memory stand-in for the handful of redis commands the
// queue uses. It is shared by every connection the pool hands out.
type FakeRedis struct {
	mu      sync.Mutex
	strings map[string][]byte
	ttls    map[string]int
	lists   map[string][][]byte
	fail    error
}

func NewFakeRedis() *FakeRedis {
	return &FakeRedis{
		strings: make(map[string][]byte),
		ttls:    make(map[string]int),
		lists:   make(map[string][][]byte),
	}
}

// Pool returns a redis pool whose connections talk to f.
func (f *FakeRedis) Pool() *redis.Pool {
	return &redis.Pool{
		MaxIdle: 1,
		Dial: func() (redis.Conn, error) {
			return fakeConn{f}, nil
		},
	}
}

// SetFail makes every following command return err. A nil err heals the
// connection again.
func (f *FakeRedis) SetFail(err error) {
	f.mu.Lock()
	f.fail = err
	f.mu.Unlock()
}

// TTL returns the expiry set on key by SETEX.
func (f *FakeRedis) TTL(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ttls[key]
}

// ListLen returns the number of entries in list key.
func (f *FakeRedis) ListLen(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.lists[key])
}

func toBytes(v interface{}) []byte {
	switch v := v.(type) {
	case []byte:
		return append([]byte(nil), v...)
	case string:
		return []byte(v)
	default:
		return []byte(fmt.Sprint(v))
	}
}

func (f *FakeRedis) do(cmd string, args ...interface{}) (interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if cmd == "" {
		return nil, nil
	}
	if f.fail != nil {
		return nil, f.fail
	}

	key := ""
	if len(args) > 0 {
		key = fmt.Sprint(args[0])
	}
	switch strings.ToUpper(cmd) {
	case "RPUSH":
		for _, a := range args[1:] {
			f.lists[key] = append(f.lists[key], toBytes(a))
		}
		return int64(len(f.lists[key])), nil
	case "LPOP":
		l := f.lists[key]
		if len(l) == 0 {
			return nil, nil
		}
		f.lists[key] = l[1:]
		return l[0], nil
	case "SETEX":
		ttl, ok := args[1].(int)
		if !ok {
			return nil, fmt.Errorf("fake redis: SETEX ttl %v is not an int", args[1])
		}
		f.strings[key] = toBytes(args[2])
		f.ttls[key] = ttl
		return "OK", nil
	case "GET":
		v, ok := f.strings[key]
		if !ok {
			return nil, nil
		}
		return v, nil
	case "DEL":
		n := int64(0)
		for _, a := range args {
			k := fmt.Sprint(a)
			if _, ok := f.strings[k]; ok {
				delete(f.strings, k)
				n++
			}
		}
		return n, nil
	case "PING":
		return "PONG", nil
	}
	return nil, fmt.Errorf("fake redis: unsupported command %s", cmd)
}

type fakeConn struct {
	f *FakeRedis
}

func (c fakeConn) Close() error { return nil }
func (c fakeConn) Err() error   { return nil }
func (c fakeConn) Do(cmd string, args ...interface{}) (interface{}, error) {
	return c.f.do(cmd, args...)
}
func (c fakeConn) Send(cmd string, args ...interface{}) error { return nil }
func (c fakeConn) Flush() error                               { return nil }
func (c fakeConn) Receive() (interface{}, error)              { return nil, nil }
