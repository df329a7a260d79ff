package replay

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"replay-vision/internal/record"
	"replay-vision/internal/vision"
)

const (
	DefaultTileSize       = 32
	DefaultSampleInterval = 240 // 10 seconds at 24 frames per second
	DefaultFrameBudget    = time.Second / 24
)

// Config controls sampling.
type Config struct {
	TileSize       int
	SampleInterval int
	FrameBudget    time.Duration // <= 0 disables budget reporting
	Parallel       bool
	Diagnostic     bool // sample vision on every frame
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		TileSize:       DefaultTileSize,
		SampleInterval: DefaultSampleInterval,
		FrameBudget:    DefaultFrameBudget,
		Parallel:       true,
	}
}

// RecordWriter accepts analysis rows. *record.Log implements it.
type RecordWriter interface {
	Emit(rec record.Record) bool
}

// Observer is called once per produced sample, after it becomes visible through Latest.
type Observer func(Sample)

// Stats is a snapshot of sampler counters.
type Stats struct {
	Replay         string  `json:"replay"`
	Frames         uint64  `json:"frames"`
	Samples        uint64  `json:"samples"`
	OverBudget     uint64  `json:"overBudget"`
	LastFrame      int     `json:"lastFrame"`
	Owners         int     `json:"owners"`
	AvgEstimateMs  float64 `json:"avgEstimateMs"`
	LastEstimateMs float64 `json:"lastEstimateMs"`
}

type mapSize struct{ w, h int }

// Sampler turns replay frames into vision samples and analysis records.
type Sampler struct {
	cfg     Config
	records RecordWriter

	mu        sync.RWMutex
	replay    string
	lastFrame int
	latest    map[vision.OwnerID]Sample
	observers []Observer

	// Estimators per map size; each goroutine takes its own.
	poolMu sync.Mutex
	pools  map[mapSize]*sync.Pool

	frames         atomic.Uint64
	samples        atomic.Uint64
	overBudget     atomic.Uint64
	estimateNanos  atomic.Uint64
	lastEstimateNs atomic.Int64
}

// NewSampler creates a sampler. records may be nil.
func NewSampler(cfg Config, records RecordWriter) *Sampler {
	if cfg.TileSize <= 0 {
		cfg.TileSize = DefaultTileSize
	}
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = DefaultSampleInterval
	}
	return &Sampler{
		cfg:     cfg,
		records: records,
		latest:  make(map[vision.OwnerID]Sample),
		pools:   make(map[mapSize]*sync.Pool),
	}
}

// Config returns the sampler configuration.
func (s *Sampler) Config() Config {
	return s.cfg
}

// Subscribe registers an observer for every future sample.
func (s *Sampler) Subscribe(fn Observer) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// ShouldSample reports whether vision is estimated on the given frame.
func (s *Sampler) ShouldSample(frame int) bool {
	return s.cfg.Diagnostic || frame%s.cfg.SampleInterval == 0
}

// Process handles one frame: event records every frame, and on sampling
// frames a vision estimate per active player plus player and unit records.
func (s *Sampler) Process(ctx context.Context, f *Frame) ([]Sample, error) {
	if f == nil {
		return nil, errors.New("nil frame")
	}
	if err := vision.ValidateDimensions(f.MapWidth, f.MapHeight); err != nil {
		return nil, fmt.Errorf("frame %d: %w", f.Number, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	replay := ReplayName(f.MapFileName)
	if replay == "" {
		replay = ReplayName(f.MapName)
	}

	// Estimates run before any record is emitted so a cancelled frame
	// leaves nothing behind.
	var (
		players []*Player
		samples []Sample
	)
	sampling := s.ShouldSample(f.Number)
	if sampling {
		players = f.ActivePlayers()
		var err error
		samples, err = s.estimateAll(ctx, replay, f, players)
		if err != nil {
			return nil, err
		}
		for i := range samples {
			s.track(&samples[i])
		}
	}

	s.mu.Lock()
	if replay != s.replay {
		if s.replay != "" {
			log.Printf("📼 Replay changed: %s -> %s", s.replay, replay)
		}
		s.replay = replay
		clear(s.latest)
	}
	s.lastFrame = f.Number
	s.mu.Unlock()
	s.frames.Add(1)

	s.emitEvents(replay, f)
	if !sampling {
		return nil, nil
	}
	atInterval := f.Number%s.cfg.SampleInterval == 0

	s.mu.Lock()
	for _, smp := range samples {
		s.latest[smp.Owner] = smp
	}
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()

	for i, smp := range samples {
		s.emit(record.VisionRecord{
			ReplayName:   replay,
			OwnerID:      string(smp.Owner),
			PlayerName:   smp.PlayerName,
			Frame:        f.Number,
			VisibleTiles: smp.VisibleTiles,
		})
		if atInterval {
			s.emitPlayer(replay, f, players[i])
		}
		for _, fn := range observers {
			fn(smp)
		}
	}
	return samples, nil
}

// estimateAll runs one estimate per player, concurrently when enabled.
// Invocations share no state: each takes its own Estimator from the pool.
func (s *Sampler) estimateAll(ctx context.Context, replay string, f *Frame, players []*Player) ([]Sample, error) {
	samples := make([]Sample, len(players))
	pool := s.pool(f.MapWidth, f.MapHeight)

	run := func(i int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := players[i]
		e := pool.Get().(*vision.Estimator)
		defer pool.Put(e)

		start := time.Now()
		est := e.Estimate(p.ID.OwnerID(), f.Observations(p.ID, s.cfg.TileSize))
		elapsed := time.Since(start)

		samples[i] = Sample{
			Replay:       replay,
			Owner:        est.Owner,
			PlayerName:   p.Name,
			Frame:        f.Number,
			VisibleTiles: est.VisibleTiles,
			MaxSight:     est.MaxSight,
			Duration:     elapsed,
			OverBudget:   s.cfg.FrameBudget > 0 && elapsed > s.cfg.FrameBudget,
			Estimate:     est,
		}
		return nil
	}

	if !s.cfg.Parallel || len(players) < 2 {
		for i := range players {
			if err := run(i); err != nil {
				return nil, err
			}
		}
		return samples, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	ctx = gctx
	for i := range players {
		g.Go(func() error { return run(i) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return samples, nil
}

func (s *Sampler) track(smp *Sample) {
	s.samples.Add(1)
	s.estimateNanos.Add(uint64(smp.Duration))
	s.lastEstimateNs.Store(int64(smp.Duration))
	if smp.OverBudget {
		s.overBudget.Add(1)
		log.Printf("⚠️ Vision estimate for %s at frame %d took %v (budget %v)",
			smp.PlayerName, smp.Frame, smp.Duration, s.cfg.FrameBudget)
	}
}

func (s *Sampler) pool(w, h int) *sync.Pool {
	key := mapSize{w, h}
	s.poolMu.Lock()
	defer s.poolMu.Unlock()

	p, ok := s.pools[key]
	if !ok {
		p = &sync.Pool{New: func() any {
			// Dimensions were validated by Process.
			e, _ := vision.NewEstimator(w, h)
			return e
		}}
		s.pools[key] = p
	}
	return p
}

func (s *Sampler) emit(rec record.Record) {
	if s.records == nil {
		return
	}
	s.records.Emit(rec)
}

func (s *Sampler) emitEvents(replay string, f *Frame) {
	for _, ev := range f.Events {
		switch ev.Type {
		case EventMatchFrame:
			continue
		case EventMatchEnd:
			for _, p := range f.ActivePlayers() {
				s.emit(record.GameRecord{
					ReplayName:  replay,
					PlayerName:  p.Name,
					Race:        p.Race,
					BuildScore:  p.BuildScore,
					RazeScore:   p.RazeScore,
					UnitScore:   p.UnitScore,
					LeftGame:    p.LeftGame,
					DeclaredWin: p.Victorious,
					MapName:     f.MapName,
				})
			}
		}
		s.emit(eventRecord(replay, f, ev))
	}
}

func eventRecord(replay string, f *Frame, ev Event) record.EventRecord {
	rec := record.EventRecord{
		ReplayName: replay,
		EventType:  ev.Type.String(),
		X:          ev.X,
		Y:          ev.Y,
		UnitType:   "No Unit",
		UnitOwner:  "No Player",
		UnitX:      "No X",
		UnitY:      "No Y",
		Frame:      f.Number,
	}
	if ev.Player != nil {
		if p, ok := f.Player(*ev.Player); ok {
			rec.UnitOwner = p.Name
		}
	}
	if u, ok := f.Unit(ev.UnitID); ok && ev.UnitID != 0 {
		rec.UnitType = u.Type
		rec.UnitX = strconv.Itoa(u.X)
		rec.UnitY = strconv.Itoa(u.Y)
		rec.UnitID = strconv.Itoa(u.ID)
	}
	return rec
}

func (s *Sampler) emitPlayer(replay string, f *Frame, p *Player) {
	upgrades := make([]record.UpgradeLevel, 0, len(p.Upgrades)+len(p.Research))
	for _, u := range p.Upgrades {
		upgrades = append(upgrades, record.UpgradeLevel{Name: u.Name, Level: u.Level, InProgress: u.InProgress})
	}
	for _, u := range p.Research {
		upgrades = append(upgrades, record.UpgradeLevel{Name: u.Name, Level: u.Level, InProgress: u.InProgress})
	}
	s.emit(record.PlayerRecord{
		ReplayName:  replay,
		PlayerName:  p.Name,
		Frame:       f.Number,
		Minerals:    p.Minerals,
		Gas:         p.Gas,
		SupplyTotal: p.SupplyTotal,
		SupplyUsed:  p.SupplyUsed,
		Upgrades:    upgrades,
	})

	for i := range f.Units {
		u := &f.Units[i]
		if u.Owner != p.ID {
			continue
		}
		s.emit(record.UnitRecord{
			ReplayName:   replay,
			UnitType:     u.Type,
			X:            u.X,
			Y:            u.Y,
			PlayerName:   p.Name,
			ShownToEnemy: u.VisibleToEnemy,
			Frame:        f.Number,
			Cloaked:      u.Cloaked,
			Detected:     u.Detected,
			HP:           u.HP,
			Shields:      u.Shields,
			Energy:       u.Energy,
			UnitID:       u.ID,
		})
	}
}

// Latest returns the most recent sample of an owner in the current replay.
func (s *Sampler) Latest(owner vision.OwnerID) (Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	smp, ok := s.latest[owner]
	return smp, ok
}

// LatestAll returns the latest sample of every owner, ordered by owner.
func (s *Sampler) LatestAll() []Sample {
	s.mu.RLock()
	out := make([]Sample, 0, len(s.latest))
	for _, smp := range s.latest {
		out = append(out, smp)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Owner < out[j].Owner })
	return out
}

// Stats returns sampler counters.
func (s *Sampler) Stats() Stats {
	s.mu.RLock()
	st := Stats{
		Replay:    s.replay,
		LastFrame: s.lastFrame,
		Owners:    len(s.latest),
	}
	s.mu.RUnlock()

	st.Frames = s.frames.Load()
	st.Samples = s.samples.Load()
	st.OverBudget = s.overBudget.Load()
	if st.Samples > 0 {
		st.AvgEstimateMs = float64(s.estimateNanos.Load()) / float64(st.Samples) / 1e6
	}
	st.LastEstimateMs = float64(s.lastEstimateNs.Load()) / 1e6
	return st
}

// Run processes frames from src until it is exhausted or ctx is cancelled.
// It returns nil when the source ends normally.
func (s *Sampler) Run(ctx context.Context, src Source) error {
	log.Printf("🎬 Sampler started (interval %d frames, tile %dpx)", s.cfg.SampleInterval, s.cfg.TileSize)
	for {
		f, err := src.Next(ctx)
		if errors.Is(err, ErrSourceClosed) {
			st := s.Stats()
			log.Printf("🏁 Replay %s finished: %d frames, %d samples", st.Replay, st.Frames, st.Samples)
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := s.Process(ctx, f); err != nil {
			return err
		}
	}
}
