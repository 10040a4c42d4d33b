package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFiltersScopes(t *testing.T) {
	tests := []struct {
		level Level
		scope Scope
		want  bool
	}{
		{LevelOff, ScopeSession, false},
		{LevelPhase, ScopeChain, true},
		{LevelPhase, ScopePlugin, false},
		{LevelDetail, ScopePlugin, true},
		{LevelDetail, ScopeHost, false},
		{LevelDebug, ScopeHost, true},
		{LevelError, ScopeHost, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.level.ShouldEmit(tt.scope), "%s/%s", tt.level, tt.scope)
	}
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("DETAIL")
	require.NoError(t, err)
	assert.Equal(t, LevelDetail, lvl)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}

func TestStartNestsSpans(t *testing.T) {
	ring := NewRingTracer(16, LevelDetail)
	ctx := WithTracer(context.Background(), ring)

	chain, ctx := Start(ctx, ScopeChain, "chain")
	plugin, _ := Start(ctx, ScopePlugin, "plugin:a")
	plugin.WithExtra("bytes", "12").End("")
	host, _ := Start(ctx, ScopeHost, "serialize")
	host.End("")
	chain.End("ok")

	events := ring.Snapshot()
	require.Len(t, events, 4)
	assert.Equal(t, KindSpanBegin, events[0].Kind)
	assert.Equal(t, chain.ID(), events[1].ParentID)
	assert.Equal(t, "12", events[2].Extra["bytes"])
	assert.Equal(t, "ok", events[3].Detail)
	assert.Zero(t, host.ID(), "host scope is filtered at detail level")
}

func TestRingWrapsInOrder(t *testing.T) {
	ring := NewRingTracer(3, LevelDebug)
	for i := 0; i < 5; i++ {
		ring.Emit(&Event{Kind: KindPoint, Scope: ScopeHost, Name: string(rune('a' + i))})
	}
	var names []string
	for _, ev := range ring.Snapshot() {
		names = append(names, ev.Name)
	}
	assert.Equal(t, []string{"c", "d", "e"}, names)
}

func TestStreamNDJSON(t *testing.T) {
	var buf bytes.Buffer
	tr, err := New(Config{Level: LevelPhase, Mode: ModeStream, Format: FormatNDJSON, Output: &buf})
	require.NoError(t, err)

	Begin(tr, ScopeSession, "session", 0).End("done")
	require.NoError(t, tr.Close())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var ev map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &ev))
	assert.Equal(t, "end", ev["kind"])
	assert.Equal(t, "session", ev["scope"])
	assert.Equal(t, "done", ev["detail"])
}

func TestModeBothExposesRing(t *testing.T) {
	var buf bytes.Buffer
	tr, err := New(Config{Level: LevelDetail, Mode: ModeBoth, Output: &buf, RingSize: 8})
	require.NoError(t, err)

	Begin(tr, ScopeChain, "run", 0).End("")
	ring, ok := Ring(tr)
	require.True(t, ok)
	assert.Len(t, ring.Snapshot(), 2)
	assert.Contains(t, buf.String(), "→ run")

	var dump bytes.Buffer
	require.NoError(t, ring.Dump(&dump, FormatText))
	out := dump.String()
	assert.Equal(t, 1, strings.Count(out, "→ run"))
	assert.Equal(t, 1, strings.Count(out, "← run"))
	assert.Equal(t, 2, strings.Count(out, "[chain  ]"))
}

func TestOffIsNop(t *testing.T) {
	tr, err := New(Config{Level: LevelOff})
	require.NoError(t, err)
	assert.Equal(t, Nop, tr)
	assert.Zero(t, Begin(tr, ScopeSession, "x", 0).End(""))
	_, ok := Ring(tr)
	assert.False(t, ok)
}

func TestHeartbeat(t *testing.T) {
	ring := NewRingTracer(64, LevelPhase)
	hb := StartHeartbeat(ring, time.Millisecond)
	require.NotNil(t, hb)
	assert.Eventually(t, func() bool { return len(ring.Snapshot()) > 0 }, time.Second, time.Millisecond)
	hb.Stop()
	hb.Stop()

	assert.Nil(t, StartHeartbeat(Nop, time.Millisecond))
	var nilHB *Heartbeat
	nilHB.Stop()
}

func TestPointAttachesToActiveSpan(t *testing.T) {
	ring := NewRingTracer(16, LevelDebug)
	ctx := WithTracer(context.Background(), ring)

	span, ctx := Start(ctx, ScopeChain, "chain")
	Point(ctx, ScopeHost, "serialize", "42 bytes")
	span.End("")

	events := ring.Snapshot()
	require.Len(t, events, 3)
	assert.Equal(t, KindPoint, events[1].Kind)
	assert.Equal(t, span.ID(), events[1].ParentID)
	assert.Equal(t, "42 bytes", events[1].Detail)

	// Phase level drops host-scoped points.
	phase := NewRingTracer(16, LevelPhase)
	Point(WithTracer(context.Background(), phase), ScopeHost, "serialize", "")
	assert.Empty(t, phase.Snapshot())
}
