package progress

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	ctx := context.Background()
	sink.Emit(ctx, Event{RunID: "r1", Flow: "monthly", Kind: KindStart, Zone: "Worse_Zone_1", Year: 2020})
	sink.Emit(ctx, Event{RunID: "r1", Flow: "monthly", Kind: KindDone, Zone: "Worse_Zone_1", Year: 2020, Rows: 2})
	sink.Emit(ctx, Event{RunID: "r1", Flow: "monthly", Kind: KindSummary, Rows: 0})

	out := buf.String()
	for _, want := range []string{"msg=fetching", "zone=Worse_Zone_1", "year=2020", "rows=2", `msg="no valid data found"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected log output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestMultiFansOut(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	m := Multi{a, nil, b}

	m.Emit(context.Background(), Event{Kind: KindStart})
	m.Emit(context.Background(), Event{Kind: KindDone})

	for _, r := range []*Recorder{a, b} {
		kinds := r.Kinds()
		if len(kinds) != 2 || kinds[0] != KindStart || kinds[1] != KindDone {
			t.Errorf("unexpected kinds %v", kinds)
		}
	}
}
