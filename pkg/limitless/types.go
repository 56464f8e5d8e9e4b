package limitless

import (
	"bytes"
	"encoding/json"
)

// TournamentRef identifies one tournament from the list endpoint.
// Only ID is required; the other fields are kept when the API sends them.
type TournamentRef struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Game    string `json:"game,omitempty"`
	Format  string `json:"format,omitempty"`
	Date    string `json:"date,omitempty"`
	Players int    `json:"players,omitempty"`
}

// Record is a player's match record.
type Record struct {
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
	Ties   int `json:"ties"`
}

// Pokemon is one decklist entry.
type Pokemon struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Item    string   `json:"item"`
	Tera    string   `json:"tera,omitempty"` // absent before generation 9
	Ability string   `json:"ability"`
	Attacks []string `json:"attacks"`
}

// Standing is one player's final result in a tournament.
type Standing struct {
	Player   string    `json:"player"`
	Name     string    `json:"name"`
	Placing  int       `json:"placing"`
	Record   Record    `json:"record"`
	Decklist []Pokemon `json:"decklist"`
}

// Standings is the body of /tournaments/{id}/standings.
type Standings []Standing

// Format is one entry of the games catalog. Raw holds the entry exactly as
// the API sent it.
type Format struct {
	ID  string
	Raw json.RawMessage
}

// Pretty returns Raw indented with two spaces.
func (f Format) Pretty() (string, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, f.Raw, "", "  "); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// MarshalJSON emits the catalog entry unchanged.
func (f Format) MarshalJSON() ([]byte, error) {
	if len(f.Raw) == 0 {
		return []byte("null"), nil
	}
	return f.Raw, nil
}
