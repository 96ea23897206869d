package events

import "github.com/silver-mush/gopennmush/pkg/gamedb"

// EventType classifies events for transport-specific encoding.
type EventType int

const (
	EvText       EventType = iota // Raw text (universal fallback)
	EvSay                         // Speech
	EvPose                        // Pose/emote
	EvPage                        // Private message
	EvRoom                        // Room description
	EvMove                        // Arrive/depart
	EvConnect                     // Player connected
	EvDisconnect                  // Player disconnected
	EvWho                         // WHO data
	EvEmit                        // @emit and friends
)

// String returns a human-readable name for the event type.
func (t EventType) String() string {
	switch t {
	case EvText:
		return "text"
	case EvSay:
		return "say"
	case EvPose:
		return "pose"
	case EvPage:
		return "page"
	case EvRoom:
		return "room"
	case EvMove:
		return "move"
	case EvConnect:
		return "connect"
	case EvDisconnect:
		return "disconnect"
	case EvWho:
		return "who"
	case EvEmit:
		return "emit"
	default:
		return "unknown"
	}
}

// Event is a structured game event that flows through the event bus.
// Transports decide how to encode each event: telnet uses Text,
// WebSocket clients get the full structured data.
type Event struct {
	Type   EventType
	Player gamedb.DBRef   // Recipient (Nothing for broadcast)
	Source gamedb.DBRef   // Who generated the event
	Room   gamedb.DBRef   // Room context
	Text   string         // Pre-formatted text (telnet uses this)
	Data   map[string]any // Structured data for JSON clients
}
