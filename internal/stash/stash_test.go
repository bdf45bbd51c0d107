package stash

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNavigate(t *testing.T) {
	s := New(10)
	s.Put("tab-1", Entry{Prediction: "AB12CD", OriginURL: "https://vtop.example/login"})

	_, ok := s.Navigate("tab-1", "https://vtop.example/login")
	assert.False(t, ok, "reloading the login page is not a success")
	assert.Equal(t, 1, s.Len())

	e, ok := s.Navigate("tab-1", "https://vtop.example/home")
	require.True(t, ok)
	assert.Equal(t, "AB12CD", e.Prediction)
	assert.False(t, e.Timestamp.IsZero())
	assert.Equal(t, 0, s.Len())

	_, ok = s.Navigate("tab-1", "https://vtop.example/other")
	assert.False(t, ok)
}

func TestPutOverwrites(t *testing.T) {
	s := New(10)
	s.Put("tab-1", Entry{Prediction: "OLD000"})
	s.Put("tab-1", Entry{Prediction: "NEW111"})
	e, ok := s.Get("tab-1")
	require.True(t, ok)
	assert.Equal(t, "NEW111", e.Prediction)
	assert.Equal(t, 1, s.Len())
}

func TestRemove(t *testing.T) {
	s := New(10)
	s.Put("tab-1", Entry{Prediction: "AAAAAA"})
	_, ok := s.Remove("tab-1")
	assert.True(t, ok)
	_, ok = s.Remove("tab-1")
	assert.False(t, ok)
	_, ok = s.Get("tab-1")
	assert.False(t, ok)
}

func TestEvictsOldestWhenFull(t *testing.T) {
	s := New(2)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Put("a", Entry{Timestamp: base.Add(2 * time.Second)})
	s.Put("b", Entry{Timestamp: base})
	s.Put("c", Entry{Timestamp: base.Add(time.Second)})

	assert.Equal(t, 2, s.Len())
	_, ok := s.Get("b")
	assert.False(t, ok)
	_, ok = s.Get("a")
	assert.True(t, ok)
	_, ok = s.Get("c")
	assert.True(t, ok)
}
