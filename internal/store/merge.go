package store

import (
	"nbafirst/ingestion/internal/models"
)

// mergeGame combines an already-stored game with a freshly scraped one.
// Teams are immutable once written; a status may only move forward
// through the game lifecycle. A regressed status is reported so the
// caller can log it, then ignored.
func mergeGame(existing, incoming *models.Game) (merged *models.Game, regressed bool, err error) {
	if existing == nil {
		out := *incoming
		return &out, false, nil
	}

	if existing.HomeTeam != incoming.HomeTeam || existing.AwayTeam != incoming.AwayTeam {
		return nil, false, &ConflictError{
			Key:    existing.GameID,
			Reason: "home/away teams are immutable once written",
		}
	}

	// The first-seen external id stays; events reference it.
	out := *existing
	out.Season = incoming.Season
	// Date corrections from later scrapes are allowed
	out.GameDate = incoming.GameDate

	if models.StatusRank(incoming.Status) > models.StatusRank(existing.Status) {
		out.Status = incoming.Status
	} else if models.StatusRank(incoming.Status) < models.StatusRank(existing.Status) {
		regressed = true
	}

	return &out, regressed, nil
}

// mergePlayer combines a stored player row with a freshly scraped one.
// Identity fields stay; team affiliation, role and name corrections are
// taken from the newer scrape.
func mergePlayer(existing, incoming *models.Player) *models.Player {
	if existing == nil {
		out := *incoming
		return &out
	}

	out := *existing
	out.Name = incoming.Name
	out.Team = incoming.Team
	out.Starter = incoming.Starter
	if incoming.Position != "" {
		out.Position = incoming.Position
	}
	return &out
}
