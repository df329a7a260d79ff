// Package record persists per-frame replay analysis rows.
//
// Records are produced by the sampler and written asynchronously through a
// bounded Log into one or more Sinks (CSV files, SQLite).
package record

import (
	"strconv"
)

// Kind classifies a record; it also names the CSV file the record lands in.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindVision
	KindUnit
	KindEvent
	KindPlayer
	KindGame
)

// String returns the file suffix used for the kind.
func (k Kind) String() string {
	switch k {
	case KindVision:
		return "Vision"
	case KindUnit:
		return "Units"
	case KindEvent:
		return "Events"
	case KindPlayer:
		return "Players"
	case KindGame:
		return "Game"
	default:
		return "Unknown"
	}
}

// Record is one row of replay output.
type Record interface {
	Kind() Kind
	// Replay is the replay name the row belongs to (map file name without extension).
	Replay() string
	Header() []string
	Row() []string
}

// VisionRecord is the estimated visible tile count of one player at one frame.
type VisionRecord struct {
	ReplayName   string `json:"replay"`
	OwnerID      string `json:"ownerId"`
	PlayerName   string `json:"playerName"`
	Frame        int    `json:"frame"`
	VisibleTiles int    `json:"visibleTiles"`
}

func (r VisionRecord) Kind() Kind     { return KindVision }
func (r VisionRecord) Replay() string { return r.ReplayName }

func (r VisionRecord) Header() []string {
	return []string{"PlayerName", "FrameCount", "VisionTiles"}
}

func (r VisionRecord) Row() []string {
	return []string{r.PlayerName, strconv.Itoa(r.Frame), strconv.Itoa(r.VisibleTiles)}
}

// UnitRecord is a periodic dump of one unit's state.
type UnitRecord struct {
	ReplayName   string
	UnitType     string
	X, Y         int
	PlayerName   string
	ShownToEnemy bool
	Frame        int
	Cloaked      bool
	Detected     bool
	HP           int
	Shields      int
	Energy       int
	UnitID       int
}

func (r UnitRecord) Kind() Kind     { return KindUnit }
func (r UnitRecord) Replay() string { return r.ReplayName }

func (r UnitRecord) Header() []string {
	return []string{"unitType", "X.Pos", "Y.Pos", "PlayerName", "ShownToEnemy", "FrameCount",
		"Cloaked", "Detected", "HP", "Shields", "Energy", "UnitID"}
}

func (r UnitRecord) Row() []string {
	return []string{
		r.UnitType,
		strconv.Itoa(r.X), strconv.Itoa(r.Y),
		r.PlayerName,
		flag(r.ShownToEnemy),
		strconv.Itoa(r.Frame),
		flag(r.Cloaked),
		flag(r.Detected),
		strconv.Itoa(r.HP),
		strconv.Itoa(r.Shields),
		strconv.Itoa(r.Energy),
		strconv.Itoa(r.UnitID),
	}
}

// EventRecord is one game event. Unit fields are empty when the event has no unit.
type EventRecord struct {
	ReplayName string
	EventType  string
	X, Y       int
	UnitType   string // "No Unit" when absent
	UnitOwner  string // "No Player" when absent
	UnitX      string // "No X" when absent
	UnitY      string // "No Y" when absent
	Frame      int
	UnitID     string
}

func (r EventRecord) Kind() Kind     { return KindEvent }
func (r EventRecord) Replay() string { return r.ReplayName }

func (r EventRecord) Header() []string {
	return []string{"EventType", "X.Pos", "Y.Pos", "UnitType", "UnitOwner",
		"UnitX.Pos", "UnitY.Pos", "FrameCount", "UnitID"}
}

func (r EventRecord) Row() []string {
	return []string{
		r.EventType,
		strconv.Itoa(r.X), strconv.Itoa(r.Y),
		r.UnitType,
		r.UnitOwner,
		r.UnitX, r.UnitY,
		strconv.Itoa(r.Frame),
		r.UnitID,
	}
}

// UpgradeLevel is one upgrade column of a PlayerRecord.
type UpgradeLevel struct {
	Name       string `json:"name"`
	Level      int    `json:"level"`
	InProgress bool   `json:"inProgress"`
}

// PlayerRecord is a periodic dump of one player's economy and upgrades.
// Upgrade columns follow the order of Upgrades.
type PlayerRecord struct {
	ReplayName  string
	PlayerName  string
	Frame       int
	Minerals    int
	Gas         int
	SupplyTotal int
	SupplyUsed  int
	Upgrades    []UpgradeLevel
}

func (r PlayerRecord) Kind() Kind     { return KindPlayer }
func (r PlayerRecord) Replay() string { return r.ReplayName }

func (r PlayerRecord) Header() []string {
	h := []string{"PlayerName", "FrameCount", "Minerals", "Gas", "SupplyTotal", "SupplyUsed"}
	for _, u := range r.Upgrades {
		h = append(h, u.Name)
	}
	return h
}

func (r PlayerRecord) Row() []string {
	row := []string{
		r.PlayerName,
		strconv.Itoa(r.Frame),
		strconv.Itoa(r.Minerals),
		strconv.Itoa(r.Gas),
		strconv.Itoa(r.SupplyTotal),
		strconv.Itoa(r.SupplyUsed),
	}
	for _, u := range r.Upgrades {
		if u.InProgress {
			// The level being researched, not the one already owned.
			row = append(row, "RESEARCHING "+strconv.Itoa(u.Level+1))
			continue
		}
		row = append(row, strconv.Itoa(u.Level))
	}
	return row
}

// GameRecord is the end-of-game summary for one player.
type GameRecord struct {
	ReplayName  string
	PlayerName  string
	Race        string
	BuildScore  int
	RazeScore   int
	UnitScore   int
	LeftGame    bool
	DeclaredWin bool
	MapName     string
}

func (r GameRecord) Kind() Kind     { return KindGame }
func (r GameRecord) Replay() string { return r.ReplayName }

func (r GameRecord) Header() []string {
	return []string{"PlayerName", "Race", "BuildScore", "RazeScore", "UnitScore",
		"LeftGame", "DeclaredWin", "MapName"}
}

func (r GameRecord) Row() []string {
	return []string{
		r.PlayerName,
		r.Race,
		strconv.Itoa(r.BuildScore),
		strconv.Itoa(r.RazeScore),
		strconv.Itoa(r.UnitScore),
		flag(r.LeftGame),
		flag(r.DeclaredWin),
		r.MapName,
	}
}

// flag renders booleans as 0/1 so the files stay compatible with existing analysis scripts.
func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
