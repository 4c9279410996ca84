package store

import (
	"strconv"
	"strings"
	"time"

	"padel-rating/internal/constants"
	"padel-rating/internal/domain"
)

// Schema-with-defaults decoding for raw store documents. Everything past this
// file operates on fully typed records; the duck-typed legacy shapes stop here.

func decodePlayer(id string, data map[string]interface{}) domain.Player {
	p := domain.Player{ID: id}
	p.Name, _ = asString(data["name"])
	p.SelfRating, _ = asFloat(data["self_rating"])

	if r, ok := asFloat(data["rating"]); ok {
		p.Rating = r
	} else if p.SelfRating > 0 {
		p.Rating = p.SelfRating
	} else {
		p.Rating = constants.DefaultRating
	}

	p.LastRatingUpdate = parseDate(data["last_rating_update"])
	return p
}

func decodeMatch(id string, source domain.MatchSource, data map[string]interface{}) domain.MatchRecord {
	m := domain.MatchRecord{ID: id, Source: source}

	m.TeamAIDs = asIDSlice(data["team_a_ids"])
	m.TeamBIDs = asIDSlice(data["team_b_ids"])

	m.Player1 = slotID(data["player1"])
	m.Player2 = slotID(data["player2"])
	m.Player3 = slotID(data["player3"])
	m.Player4 = slotID(data["player4"])

	sa, _ := asFloat(data["score_a"])
	sb, _ := asFloat(data["score_b"])
	m.ScoreA = int(sa)
	m.ScoreB = int(sb)

	if s, ok := asString(data["status"]); ok {
		m.Status = domain.MatchStatus(s)
	}

	m.Date = parseDate(data["date"])
	if m.Date.IsZero() {
		m.Date = parseDate(data["created_at"])
	}

	return m
}

// slotID accepts the two legacy participant shapes: a bare ID string, or an
// embedded object carrying an "id" field.
func slotID(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]interface{}:
		id, _ := asString(t["id"])
		return id
	default:
		return ""
	}
}

func asIDSlice(v interface{}) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []interface{}:
		var out []string
		for _, e := range t {
			if id := slotID(e); id != "" {
				out = append(out, id)
			}
		}
		return out
	default:
		return nil
	}
}

func asString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// asFloat accepts the numeric shapes the store hands back, plus numbers that
// were stored as strings by old clients.
func asFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// parseDate handles store-native timestamps and the string formats legacy
// records used. Unparseable values yield the zero time, which orders as the
// epoch sentinel during recalculation instead of aborting it.
func parseDate(v interface{}) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts
			}
		}
	}
	return time.Time{}
}
