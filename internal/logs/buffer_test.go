package logs

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/charliek/horn/internal/domain"
	"github.com/stretchr/testify/assert"
)

func makeEntry(line string) domain.LogEntry {
	return makeEntryFor("master", domain.LevelInfo, line)
}

func makeEntryFor(process string, level domain.Level, line string) domain.LogEntry {
	return domain.LogEntry{
		Timestamp: time.Now(),
		Process:   process,
		Level:     level,
		Line:      line,
	}
}

func lines(entries []domain.LogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Line
	}
	return out
}

func TestRingBuffer_WriteRead(t *testing.T) {
	b := NewRingBuffer(3)
	assert.Nil(t, b.Read())

	b.Write(makeEntry("a"))
	b.Write(makeEntry("b"))
	assert.Equal(t, []string{"a", "b"}, lines(b.Read()))
	assert.Equal(t, 2, b.Count())
}

func TestRingBuffer_Overflow(t *testing.T) {
	b := NewRingBuffer(3)
	for _, l := range []string{"a", "b", "c", "d", "e"} {
		b.Write(makeEntry(l))
	}

	assert.Equal(t, []string{"c", "d", "e"}, lines(b.Read()))
	assert.Equal(t, 3, b.Count())
	assert.Equal(t, 3, b.Capacity())
}

func TestRingBuffer_ReadLast(t *testing.T) {
	b := NewRingBuffer(4)
	for i := 0; i < 6; i++ {
		b.Write(makeEntry(fmt.Sprint(i)))
	}

	assert.Equal(t, []string{"4", "5"}, lines(b.ReadLast(2)))
	assert.Equal(t, []string{"2", "3", "4", "5"}, lines(b.ReadLast(10)))
	assert.Nil(t, b.ReadLast(0))
}

func TestRingBuffer_DefaultCapacity(t *testing.T) {
	b := NewRingBuffer(0)
	assert.Equal(t, DefaultManagerConfig().BufferSize, b.Capacity())
}

func TestRingBuffer_Concurrent(t *testing.T) {
	b := NewRingBuffer(50)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Write(makeEntry("x"))
				_ = b.ReadLast(5)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, b.Count())
}
