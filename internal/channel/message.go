package channel

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bookmark-cli/internal/model"
)

// Action tags as they appear on the wire.
const (
	ActionStartScraping   = "start_scraping"
	ActionStopScraping    = "stop_scraping"
	ActionSyncBookmarks   = "sync_bookmarks"
	ActionClassifyTweet   = "classify_tweet"
	ActionValidateAPIKey  = "validate_api_key"
	ActionStatsUpdate     = "stats_update"
	ActionScanComplete    = "scan_complete"
	ActionExternalLogin   = "login"
	ActionBridgeAuth      = "TWITTER_BOOKMARK_AUTH"
	ActionBridgeLogout    = "TWITTER_BOOKMARK_LOGOUT"
	ActionRefetch         = "REFETCH_BOOKMARKS"
	ActionExtensionLogout = "EXTENSION_LOGOUT"
)

// Message is the closed set of messages exchanged between contexts.
// Only the types in this file implement it.
type Message interface {
	Action() string
	isMessage()
}

// StartScraping asks the scraper to begin a session.
type StartScraping struct{}

// StopScraping asks the scraper to stop after the current cycle.
type StopScraping struct{}

// SyncBookmarks asks the background to submit a batch.
type SyncBookmarks struct {
	Bookmarks []model.Record `json:"bookmarks"`
}

// ClassifyTweet asks the background to classify one text.
type ClassifyTweet struct {
	Text string `json:"text"`
}

// ValidateAPIKey asks the background to test a Gemini key.
type ValidateAPIKey struct {
	APIKey string `json:"apiKey"`
}

// StatsUpdate reports the size of a batch just handed to the gateway.
type StatsUpdate struct {
	Count int `json:"count"`
}

// ScanComplete reports that a session ended.
type ScanComplete struct {
	Total  int    `json:"total"`
	Reason string `json:"reason,omitempty"`
}

// ExternalLogin is sent by the web app with a backend token.
type ExternalLogin struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

// BridgeAuth is the web page's AUTH event.
type BridgeAuth struct {
	Token             string `json:"token"`
	UserEmail         string `json:"userEmail"`
	ProfilePictureURL string `json:"profilePictureUrl,omitempty"`
}

// BridgeLogout is the web page's LOGOUT event.
type BridgeLogout struct{}

// Refetch tells the web page to reload its bookmark list.
type Refetch struct{}

// ExtensionLogout tells the web page the extension logged out.
type ExtensionLogout struct{}

func (StartScraping) Action() string   { return ActionStartScraping }
func (StopScraping) Action() string    { return ActionStopScraping }
func (SyncBookmarks) Action() string   { return ActionSyncBookmarks }
func (ClassifyTweet) Action() string   { return ActionClassifyTweet }
func (ValidateAPIKey) Action() string  { return ActionValidateAPIKey }
func (StatsUpdate) Action() string     { return ActionStatsUpdate }
func (ScanComplete) Action() string    { return ActionScanComplete }
func (ExternalLogin) Action() string   { return ActionExternalLogin }
func (BridgeAuth) Action() string      { return ActionBridgeAuth }
func (BridgeLogout) Action() string    { return ActionBridgeLogout }
func (Refetch) Action() string         { return ActionRefetch }
func (ExtensionLogout) Action() string { return ActionExtensionLogout }

func (StartScraping) isMessage()   {}
func (StopScraping) isMessage()    {}
func (SyncBookmarks) isMessage()   {}
func (ClassifyTweet) isMessage()   {}
func (ValidateAPIKey) isMessage()  {}
func (StatsUpdate) isMessage()     {}
func (ScanComplete) isMessage()    {}
func (ExternalLogin) isMessage()   {}
func (BridgeAuth) isMessage()      {}
func (BridgeLogout) isMessage()    {}
func (Refetch) isMessage()         {}
func (ExtensionLogout) isMessage() {}

// ErrUnknownAction is returned by Decode for tags outside the set.
var ErrUnknownAction = eris.New("channel: unknown action")

// Decode maps a wire tag and its JSON payload onto a Message. An empty
// payload decodes to the zero value of the variant.
func Decode(action string, payload []byte) (Message, error) {
	switch action {
	case ActionStartScraping:
		return decodeInto[StartScraping](payload)
	case ActionStopScraping:
		return decodeInto[StopScraping](payload)
	case ActionSyncBookmarks:
		return decodeInto[SyncBookmarks](payload)
	case ActionClassifyTweet:
		return decodeInto[ClassifyTweet](payload)
	case ActionValidateAPIKey:
		return decodeInto[ValidateAPIKey](payload)
	case ActionStatsUpdate:
		return decodeInto[StatsUpdate](payload)
	case ActionScanComplete:
		return decodeInto[ScanComplete](payload)
	case ActionExternalLogin:
		return decodeInto[ExternalLogin](payload)
	case ActionBridgeAuth:
		return decodeInto[BridgeAuth](payload)
	case ActionBridgeLogout:
		return decodeInto[BridgeLogout](payload)
	case ActionRefetch:
		return decodeInto[Refetch](payload)
	case ActionExtensionLogout:
		return decodeInto[ExtensionLogout](payload)
	default:
		return nil, eris.Wrapf(ErrUnknownAction, "decode %q", action)
	}
}

func decodeInto[T Message](payload []byte) (Message, error) {
	var m T
	if len(payload) == 0 || string(payload) == "null" {
		return m, nil
	}
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, eris.Wrapf(err, "channel: decode %s", m.Action())
	}
	return m, nil
}

// Response payloads.

// SyncResult answers SyncBookmarks. Err keeps the typed gateway error for
// in-process callers and is not serialized.
type SyncResult struct {
	Success bool   `json:"success"`
	Count   int    `json:"count,omitempty"`
	Error   string `json:"error,omitempty"`
	Err     error  `json:"-"`
}

// ClassifyResult answers ClassifyTweet. Category is nil when nothing could
// be classified.
type ClassifyResult struct {
	Category *string `json:"category"`
	Error    string  `json:"error,omitempty"`
}

// ValidateResult answers ValidateAPIKey.
type ValidateResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// LoginResult answers ExternalLogin.
type LoginResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// StartResult answers StartScraping.
type StartResult struct {
	Started   bool   `json:"started"`
	SessionID string `json:"sessionId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Ack answers messages that carry no result.
type Ack struct {
	OK bool `json:"ok"`
}
