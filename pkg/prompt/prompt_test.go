package prompt

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReaderReadsLines(t *testing.T) {
	var out bytes.Buffer
	in := NewReader(strings.NewReader("alice\r\nsecond\nlast"), &out)

	line, ok := in.Read(context.Background(), "Name:")
	assert.True(t, ok)
	assert.Equal(t, "alice", line)
	assert.Equal(t, "Name: ", out.String())

	line, ok = in.Read(context.Background(), "")
	assert.True(t, ok)
	assert.Equal(t, "second", line)

	line, ok = in.Read(context.Background(), "")
	assert.True(t, ok, "unterminated final line is still a line")
	assert.Equal(t, "last", line)

	_, ok = in.Read(context.Background(), "")
	assert.False(t, ok, "EOF means no channel")
}

func TestReaderCancelled(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	in := NewReader(pr, io.Discard)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, ok := in.Read(ctx, "waiting")
	assert.False(t, ok)
}

func TestNonTerminal(t *testing.T) {
	in := &Terminal{in: strings.NewReader("ignored\n"), out: io.Discard}
	assert.False(t, in.Interactive())

	_, ok := in.Read(context.Background(), "x")
	assert.False(t, ok)
}

func TestNone(t *testing.T) {
	line, ok := None{}.Read(context.Background(), "anything")
	assert.False(t, ok)
	assert.Empty(t, line)
}

func TestScripted(t *testing.T) {
	s := NewScripted("1234", "")

	line, ok := s.Read(context.Background(), "Code:")
	assert.True(t, ok)
	assert.Equal(t, "1234", line)

	line, ok = s.Read(context.Background(), "Press Enter")
	assert.True(t, ok)
	assert.Empty(t, line)

	_, ok = s.Read(context.Background(), "again")
	assert.False(t, ok)
	assert.Equal(t, []string{"Code:", "Press Enter", "again"}, s.Messages())
}
