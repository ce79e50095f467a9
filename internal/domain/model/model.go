// Package model contains domain models passed between layers.
package model

// PlayerRecord is one row of the roster. Optional fields use their zero
// value for "absent", except GamesPerDay where zero is a valid rate.
type PlayerRecord struct {
	ID          string   // ladder player id, unique
	AccountID   string   // durable account id; empty until resolved
	LeagueID    string   // league the player was last seen in
	Tier        Tier     // last observed tier
	GamesPerDay *float64 // smoothed match rate
	TS          int64    // last update, epoch millis; 0 means never updated
}

// Updated reports whether the record has ever been refreshed.
func (p PlayerRecord) Updated() bool { return p.TS > 0 }

// LadderEntry is one row returned while paginating the ranked ladder.
type LadderEntry struct {
	PlayerID string
	Tier     Tier
	LeagueID string
}

// LeagueEntry is a distinct (tier, league id) pair.
type LeagueEntry struct {
	Tier     Tier
	LeagueID string
}

// MatchRef is one entry of a player's match history.
type MatchRef struct {
	ID int64
	TS int64 // creation time, epoch millis
}

// MatchDetail is the subset of a fetched match the crawler keeps.
type MatchDetail struct {
	ID           int64
	TS           int64 // creation time, epoch millis
	Version      string
	Participants []string // ladder player ids
}

// MatchRecord is one row of a match partition.
type MatchRecord struct {
	ID      int64
	Tier    Tier // representative tier; TierUnknown is valid
	TS      int64
	Version string // used for partitioning only, not persisted
}
