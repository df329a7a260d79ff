// Package replay models replay frames and drives per-frame vision sampling.
package replay

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"replay-vision/internal/vision"
)

// PlayerID identifies a player within one replay.
type PlayerID int

// OwnerID converts the player id to the vision engine's owner key.
func (id PlayerID) OwnerID() vision.OwnerID {
	return vision.OwnerID(strconv.Itoa(int(id)))
}

// EventType is the kind of a game event.
type EventType uint8

const (
	EventNone EventType = iota
	EventMatchStart
	EventMatchEnd
	EventMatchFrame
	EventMenuFrame
	EventSendText
	EventReceiveText
	EventPlayerLeft
	EventNukeDetect
	EventUnitDiscover
	EventUnitEvade
	EventUnitShow
	EventUnitHide
	EventUnitCreate
	EventUnitDestroy
	EventUnitMorph
	EventUnitRenegade
	EventSaveGame
	EventUnitComplete
)

var eventNames = [...]string{
	EventNone:         "None",
	EventMatchStart:   "MatchStart",
	EventMatchEnd:     "MatchEnd",
	EventMatchFrame:   "MatchFrame",
	EventMenuFrame:    "MenuFrame",
	EventSendText:     "SendText",
	EventReceiveText:  "ReceiveText",
	EventPlayerLeft:   "PlayerLeft",
	EventNukeDetect:   "NukeDetect",
	EventUnitDiscover: "UnitDiscover",
	EventUnitEvade:    "UnitEvade",
	EventUnitShow:     "UnitShow",
	EventUnitHide:     "UnitHide",
	EventUnitCreate:   "UnitCreate",
	EventUnitDestroy:  "UnitDestroy",
	EventUnitMorph:    "UnitMorph",
	EventUnitRenegade: "UnitRenegade",
	EventSaveGame:     "SaveGame",
	EventUnitComplete: "UnitComplete",
}

func (t EventType) String() string {
	if int(t) < len(eventNames) {
		return eventNames[t]
	}
	return "None"
}

// MarshalText encodes the event type by name.
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText accepts the names produced by String (case-insensitive).
func (t *EventType) UnmarshalText(b []byte) error {
	s := string(b)
	for i, name := range eventNames {
		if strings.EqualFold(name, s) {
			*t = EventType(i)
			return nil
		}
	}
	return fmt.Errorf("unknown event type %q", s)
}

// Upgrade is a player's level in one upgrade or tech.
type Upgrade struct {
	Name       string `json:"name"`
	Level      int    `json:"level"`
	InProgress bool   `json:"inProgress,omitempty"`
}

// Player is one participant's state at a frame.
type Player struct {
	ID          PlayerID  `json:"id"`
	Name        string    `json:"name"`
	Race        string    `json:"race,omitempty"`
	Neutral     bool      `json:"neutral,omitempty"`
	Minerals    int       `json:"minerals"`
	Gas         int       `json:"gas"`
	SupplyTotal int       `json:"supplyTotal"`
	SupplyUsed  int       `json:"supplyUsed"`
	Upgrades    []Upgrade `json:"upgrades,omitempty"`
	Research    []Upgrade `json:"research,omitempty"`
	BuildScore  int       `json:"buildScore"`
	RazeScore   int       `json:"razeScore"`
	UnitScore   int       `json:"unitScore"`
	LeftGame    bool      `json:"leftGame,omitempty"`
	Victorious  bool      `json:"victorious,omitempty"`
}

// Unit is one unit's state at a frame. Positions and sight range are in pixels.
type Unit struct {
	ID             int      `json:"id"`
	Owner          PlayerID `json:"owner"`
	Type           string   `json:"type"`
	X              int      `json:"x"`
	Y              int      `json:"y"`
	SightRange     int      `json:"sightRange"`
	Blind          bool     `json:"blind,omitempty"`
	Morphing       bool     `json:"morphing,omitempty"`
	Constructing   bool     `json:"constructing,omitempty"`
	Cloaked        bool     `json:"cloaked,omitempty"`
	Detected       bool     `json:"detected,omitempty"`
	VisibleToEnemy bool     `json:"visibleToEnemy,omitempty"`
	HP             int      `json:"hp"`
	Shields        int      `json:"shields"`
	Energy         int      `json:"energy"`
}

// Tile returns the tile the unit stands on.
func (u *Unit) Tile(tileSize int) (int, int) {
	if tileSize <= 0 {
		return 0, 0
	}
	return u.X / tileSize, u.Y / tileSize
}

// CanSee reports whether the unit contributes vision.
func (u *Unit) CanSee() bool {
	return !u.Blind && !u.Morphing && !u.Constructing && u.SightRange > 0
}

// Observation converts the unit to the engine's input.
func (u *Unit) Observation(tileSize int) vision.Observation {
	tx, ty := u.Tile(tileSize)
	return vision.Observation{
		Owner:       u.Owner.OwnerID(),
		TileX:       tx,
		TileY:       ty,
		SightRadius: vision.SightRadius(u.SightRange, tileSize),
		CanSee:      u.CanSee(),
	}
}

// Event is a game event raised during a frame. UnitID is 0 when no unit is
// attached; Player is nil when the event has no player.
type Event struct {
	Type   EventType `json:"type"`
	X      int       `json:"x"`
	Y      int       `json:"y"`
	UnitID int       `json:"unitId,omitempty"`
	Player *PlayerID `json:"player,omitempty"`
	Text   string    `json:"text,omitempty"`
}

// Frame is the full observable game state at one frame number.
type Frame struct {
	Number      int      `json:"frame"`
	MapWidth    int      `json:"mapWidth"`
	MapHeight   int      `json:"mapHeight"`
	MapName     string   `json:"mapName,omitempty"`
	MapFileName string   `json:"mapFileName,omitempty"`
	Players     []Player `json:"players"`
	Units       []Unit   `json:"units"`
	Events      []Event  `json:"events,omitempty"`
}

// Observations returns the engine input for one owner. Units of other owners are skipped.
func (f *Frame) Observations(owner PlayerID, tileSize int) []vision.Observation {
	obs := make([]vision.Observation, 0, len(f.Units))
	for i := range f.Units {
		if f.Units[i].Owner != owner {
			continue
		}
		obs = append(obs, f.Units[i].Observation(tileSize))
	}
	return obs
}

// ActivePlayers returns the non-neutral players.
func (f *Frame) ActivePlayers() []*Player {
	players := make([]*Player, 0, len(f.Players))
	for i := range f.Players {
		if f.Players[i].Neutral {
			continue
		}
		players = append(players, &f.Players[i])
	}
	return players
}

// Player looks up a player by id.
func (f *Frame) Player(id PlayerID) (*Player, bool) {
	for i := range f.Players {
		if f.Players[i].ID == id {
			return &f.Players[i], true
		}
	}
	return nil, false
}

// Unit looks up a unit by id.
func (f *Frame) Unit(id int) (*Unit, bool) {
	for i := range f.Units {
		if f.Units[i].ID == id {
			return &f.Units[i], true
		}
	}
	return nil, false
}

// ReplayName is the map file name up to its first '.'.
func ReplayName(mapFileName string) string {
	if i := strings.IndexByte(mapFileName, '.'); i >= 0 {
		return mapFileName[:i]
	}
	return mapFileName
}

// Sample is the result of one owner's vision estimate at a frame.
type Sample struct {
	Replay       string          `json:"replay"`
	Owner        vision.OwnerID  `json:"owner"`
	PlayerName   string          `json:"playerName"`
	Frame        int             `json:"frame"`
	VisibleTiles int             `json:"visibleTiles"`
	MaxSight     int             `json:"maxSight"`
	Duration     time.Duration   `json:"durationNs"`
	OverBudget   bool            `json:"overBudget,omitempty"`
	Estimate     vision.Estimate `json:"-"`
}

// ToJSON returns the websocket payload for the sample.
func (s *Sample) ToJSON() map[string]interface{} {
	return map[string]interface{}{
		"replay":       s.Replay,
		"owner":        s.Owner,
		"playerName":   s.PlayerName,
		"frame":        s.Frame,
		"visibleTiles": s.VisibleTiles,
		"maxSight":     s.MaxSight,
		"durationMs":   float64(s.Duration.Microseconds()) / 1000,
		"overBudget":   s.OverBudget,
	}
}
