package events

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webforge/internal/project"
)

func TestEmitterStreamOrder(t *testing.T) {
	e := NewEmitter(16, time.Second)
	ctx := context.Background()

	go func() {
		defer e.Close()
		e.Event(ctx, StageIngest, "reading references", 5)
		e.File(ctx, project.File{Path: "index.html", Content: "<html></html>", Language: "html"})
		e.Metadata(ctx, map[string]string{"name": "demo"})
		e.Done(ctx)
		e.Fail(ctx, "ignored after done")
	}()

	lines := Collect(e.Lines())
	require.Len(t, lines, 4)
	assert.Equal(t, LineEvent, lines[0].Type)
	assert.Equal(t, 5, lines[0].Event.Progress)
	assert.Equal(t, LineFile, lines[1].Type)
	assert.Equal(t, LineMetadata, lines[2].Type)
	assert.True(t, lines[3].Terminal())
	assert.Equal(t, LineDone, lines[3].Type)
}

func TestEmitterDetachesSlowConsumer(t *testing.T) {
	e := NewEmitter(1, 20*time.Millisecond)
	ctx := context.Background()

	assert.True(t, e.Emit(ctx, Line{Type: LineEvent}))

	start := time.Now()
	assert.False(t, e.Emit(ctx, Line{Type: LineEvent}))
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, e.Detached())

	// Dropped immediately once detached.
	assert.False(t, e.Emit(ctx, Line{Type: LineDone}))
	assert.Equal(t, int64(2), e.Dropped())

	e.Close()
	e.Close()
}

func TestEmitAfterCloseIsDropped(t *testing.T) {
	e := NewEmitter(4, time.Second)
	e.Close()
	assert.False(t, e.Emit(context.Background(), Line{Type: LineEvent}))
}

func TestProgressClamped(t *testing.T) {
	e := NewEmitter(4, time.Second)
	e.Event(context.Background(), StageBuild, "x", 150)
	e.Event(context.Background(), StageBuild, "x", -3)
	e.Close()
	lines := Collect(e.Lines())
	assert.Equal(t, 100, lines[0].Event.Progress)
	assert.Equal(t, 0, lines[1].Event.Progress)
}

func TestNDJSONRoundTrip(t *testing.T) {
	e := NewEmitter(8, time.Second)
	ctx := context.Background()
	e.Event(ctx, StageSpec, "extracting <design>", 20)
	e.Fail(ctx, "cost cap exceeded")
	e.Close()

	var buf bytes.Buffer
	require.NoError(t, WriteNDJSON(&buf, e.Lines()))
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("\n")))
	assert.Contains(t, buf.String(), "<design>")

	lines, err := ReadNDJSON(&buf)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "extracting <design>", lines[0].Event.Message)
	assert.Equal(t, LineError, lines[1].Type)
	assert.Equal(t, "cost cap exceeded", lines[1].Error)
}
