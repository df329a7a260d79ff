package replay

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"replay-vision/internal/record"
	"replay-vision/internal/vision"
)

// captureWriter collects emitted records.
type captureWriter struct {
	mu      sync.Mutex
	records []record.Record
}

func (c *captureWriter) Emit(rec record.Record) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
	return true
}

func (c *captureWriter) snapshot() []record.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]record.Record(nil), c.records...)
}

func (c *captureWriter) byKind(k record.Kind) []record.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []record.Record
	for _, r := range c.records {
		if r.Kind() == k {
			out = append(out, r)
		}
	}
	return out
}

func testFrame(number int) *Frame {
	return &Frame{
		Number:      number,
		MapWidth:    64,
		MapHeight:   64,
		MapName:     "Duel",
		MapFileName: "duel.scx",
		Players: []Player{
			{ID: 0, Name: "Flash", Race: "Terran", Minerals: 50, Upgrades: []Upgrade{{Name: "Terran Infantry Weapons", Level: 1}}},
			{ID: 1, Name: "Jaedong", Race: "Zerg"},
			{ID: 11, Name: "Neutral", Neutral: true},
		},
		Units: []Unit{
			// Tile (10,10), radius 3.
			{ID: 1, Owner: 0, Type: "Terran_SCV", X: 320, Y: 320, SightRange: 64, HP: 60},
			// Tile (1,1), radius 3.
			{ID: 2, Owner: 1, Type: "Zerg_Drone", X: 32, Y: 32, SightRange: 64, HP: 40},
			{ID: 3, Owner: 1, Type: "Zerg_Egg", X: 640, Y: 640, SightRange: 128, Morphing: true},
			{ID: 4, Owner: 11, Type: "Resource_Mineral_Field", X: 960, Y: 960, SightRange: 288},
		},
	}
}

func TestSampler_SamplesAtInterval(t *testing.T) {
	w := &captureWriter{}
	cfg := DefaultConfig()
	cfg.FrameBudget = time.Minute
	s := NewSampler(cfg, w)

	samples, err := s.Process(context.Background(), testFrame(240))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples (neutral excluded), got %d", len(samples))
	}

	want := map[vision.OwnerID]int{"0": 25, "1": 9}
	for _, smp := range samples {
		if smp.VisibleTiles != want[smp.Owner] {
			t.Errorf("owner %s: visible = %d, want %d", smp.Owner, smp.VisibleTiles, want[smp.Owner])
		}
		if smp.Replay != "duel" || smp.Frame != 240 {
			t.Errorf("unexpected sample metadata: %+v", smp)
		}
		if smp.OverBudget {
			t.Errorf("owner %s should be within a one minute budget", smp.Owner)
		}
	}

	if got := len(w.byKind(record.KindVision)); got != 2 {
		t.Errorf("vision records = %d, want 2", got)
	}
	if got := len(w.byKind(record.KindPlayer)); got != 2 {
		t.Errorf("player records = %d, want 2", got)
	}
	if got := len(w.byKind(record.KindUnit)); got != 3 {
		t.Errorf("unit records = %d, want 3 (neutral units excluded)", got)
	}

	players := w.byKind(record.KindPlayer)
	flash := players[0].(record.PlayerRecord)
	if flash.PlayerName != "Flash" || flash.Minerals != 50 || len(flash.Upgrades) != 1 {
		t.Errorf("unexpected player record: %+v", flash)
	}
}

func TestSampler_SkipsOffIntervalFrames(t *testing.T) {
	w := &captureWriter{}
	s := NewSampler(DefaultConfig(), w)

	samples, err := s.Process(context.Background(), testFrame(241))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if samples != nil {
		t.Errorf("expected no samples off interval, got %d", len(samples))
	}
	if len(w.byKind(record.KindVision)) != 0 {
		t.Error("no vision records expected off interval")
	}
	if st := s.Stats(); st.Frames != 1 || st.Samples != 0 || st.LastFrame != 241 {
		t.Errorf("unexpected stats: %+v", st)
	}
}

func TestSampler_DiagnosticSamplesEveryFrame(t *testing.T) {
	w := &captureWriter{}
	cfg := DefaultConfig()
	cfg.Diagnostic = true
	s := NewSampler(cfg, w)

	samples, err := s.Process(context.Background(), testFrame(7))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples in diagnostic mode, got %d", len(samples))
	}
	if got := len(w.byKind(record.KindVision)); got != 2 {
		t.Errorf("vision records = %d, want 2", got)
	}
	// Player and unit dumps stay on the sampling interval.
	if got := len(w.byKind(record.KindPlayer)); got != 0 {
		t.Errorf("player records = %d, want 0", got)
	}
}

func TestSampler_ParallelMatchesSequential(t *testing.T) {
	seq := DefaultConfig()
	seq.Parallel = false
	par := DefaultConfig()
	par.Parallel = true

	a, err := NewSampler(seq, nil).Process(context.Background(), testFrame(0))
	if err != nil {
		t.Fatalf("sequential: %v", err)
	}
	b, err := NewSampler(par, nil).Process(context.Background(), testFrame(0))
	if err != nil {
		t.Fatalf("parallel: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("sample count differs: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Owner != b[i].Owner || !a[i].Estimate.Grid.Equal(b[i].Estimate.Grid) {
			t.Errorf("sample %d differs between sequential and parallel runs", i)
		}
	}
}

func TestSampler_Events(t *testing.T) {
	w := &captureWriter{}
	s := NewSampler(DefaultConfig(), w)

	owner := PlayerID(1)
	f := testFrame(241)
	f.Events = []Event{
		{Type: EventMatchFrame},
		{Type: EventUnitCreate, X: 32, Y: 32, UnitID: 2, Player: &owner},
		{Type: EventNukeDetect, X: 100, Y: 200},
		{Type: EventMatchEnd},
	}
	if _, err := s.Process(context.Background(), f); err != nil {
		t.Fatalf("Process: %v", err)
	}

	events := w.byKind(record.KindEvent)
	if len(events) != 3 {
		t.Fatalf("expected 3 event records (MatchFrame skipped), got %d", len(events))
	}

	create := events[0].(record.EventRecord)
	if create.EventType != "UnitCreate" || create.UnitType != "Zerg_Drone" || create.UnitOwner != "Jaedong" ||
		create.UnitX != "32" || create.UnitID != "2" || create.Frame != 241 {
		t.Errorf("unexpected create record: %+v", create)
	}

	nuke := events[1].(record.EventRecord)
	if nuke.UnitType != "No Unit" || nuke.UnitOwner != "No Player" || nuke.UnitX != "No X" || nuke.UnitY != "No Y" {
		t.Errorf("unexpected placeholder fields: %+v", nuke)
	}

	games := w.byKind(record.KindGame)
	if len(games) != 2 {
		t.Fatalf("expected one game record per active player, got %d", len(games))
	}
	if g := games[0].(record.GameRecord); g.PlayerName != "Flash" || g.MapName != "Duel" || g.Replay() != "duel" {
		t.Errorf("unexpected game record: %+v", g)
	}
}

func TestSampler_LatestAndObservers(t *testing.T) {
	s := NewSampler(DefaultConfig(), nil)

	var mu sync.Mutex
	seen := 0
	s.Subscribe(func(smp Sample) {
		mu.Lock()
		seen++
		mu.Unlock()
	})

	if _, ok := s.Latest("0"); ok {
		t.Fatal("no samples expected before processing")
	}
	if _, err := s.Process(context.Background(), testFrame(0)); err != nil {
		t.Fatalf("Process: %v", err)
	}

	smp, ok := s.Latest("0")
	if !ok || smp.PlayerName != "Flash" {
		t.Errorf("Latest(0) = %+v, %v", smp, ok)
	}
	all := s.LatestAll()
	if len(all) != 2 || all[0].Owner != "0" || all[1].Owner != "1" {
		t.Errorf("LatestAll not sorted by owner: %+v", all)
	}
	if seen != 2 {
		t.Errorf("observer called %d times, want 2", seen)
	}

	// A new replay clears the previous owners.
	next := testFrame(0)
	next.MapFileName = "other.scx"
	next.Players = next.Players[:1]
	if _, err := s.Process(context.Background(), next); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got := len(s.LatestAll()); got != 1 {
		t.Errorf("expected latest to reset on replay change, got %d owners", got)
	}
	if st := s.Stats(); st.Replay != "other" || st.Samples != 3 {
		t.Errorf("unexpected stats: %+v", st)
	}
}

func TestSampler_RejectsOversizedMap(t *testing.T) {
	s := NewSampler(DefaultConfig(), nil)
	f := testFrame(0)
	f.MapWidth = vision.MaxMapDimension + 1

	_, err := s.Process(context.Background(), f)
	if !errors.Is(err, vision.ErrMapTooLarge) {
		t.Errorf("expected ErrMapTooLarge, got %v", err)
	}
}

func TestSampler_CancelledContext(t *testing.T) {
	for _, frame := range []int{0, 241} {
		w := &captureWriter{}
		s := NewSampler(DefaultConfig(), w)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		f := testFrame(frame)
		f.Events = []Event{{Type: EventNukeDetect, X: 100, Y: 200}, {Type: EventMatchEnd}}
		if _, err := s.Process(ctx, f); !errors.Is(err, context.Canceled) {
			t.Errorf("frame %d: expected context.Canceled, got %v", frame, err)
		}
		if n := len(w.snapshot()); n != 0 {
			t.Errorf("frame %d: cancelled frame emitted %d records", frame, n)
		}
		if st := s.Stats(); st.Frames != 0 || st.Samples != 0 {
			t.Errorf("frame %d: cancelled frame counted: %+v", frame, st)
		}
	}
}

func TestSampler_Run(t *testing.T) {
	w := &captureWriter{}
	s := NewSampler(DefaultConfig(), w)

	if err := s.Run(context.Background(), NewJSONLSource(strings.NewReader(twoFrames))); err != nil {
		t.Fatalf("Run: %v", err)
	}
	st := s.Stats()
	if st.Frames != 2 || st.Samples != 1 || st.Replay != "duel" {
		t.Errorf("unexpected stats after run: %+v", st)
	}
	if got := len(w.byKind(record.KindVision)); got != 1 {
		t.Errorf("vision records = %d, want 1 (frame 0 only)", got)
	}
}
