package engine

import (
	"math/rand"
	"sort"

	"chat-quiz-engine/internal/domain"
)

// Roster tracks the players seen in a chat and, after a split, which team
// each belongs to. Team names come from configuration so hosts can brand
// them; the defaults are plain A and B.
type Roster struct {
	teamA      string
	teamB      string
	players    map[string]string // user id -> display name
	assignment map[string]string // user id -> team name
}

func NewRoster(teamA, teamB string) *Roster {
	if teamA == "" {
		teamA = "A"
	}
	if teamB == "" {
		teamB = "B"
	}
	return &Roster{
		teamA:      teamA,
		teamB:      teamB,
		players:    make(map[string]string),
		assignment: make(map[string]string),
	}
}

// Observe remembers a player so a later split can place them.
func (r *Roster) Observe(userID, name string) {
	if userID == "" {
		return
	}
	if name == "" {
		name = "Player"
	}
	r.players[userID] = name
}

// Split reshuffles every known player into the two teams. A repeat call
// discards the previous assignment.
func (r *Roster) Split(rnd *rand.Rand) (map[string][]string, error) {
	if len(r.players) < 2 {
		return nil, domain.ErrTooFewPlayers
	}
	ids := make([]string, 0, len(r.players))
	for id := range r.players {
		ids = append(ids, id)
	}
	sort.Strings(ids) // stable input before the shuffle, so tests can seed rnd
	rnd.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

	r.assignment = make(map[string]string, len(ids))
	mid := len(ids) / 2
	for i, id := range ids {
		if i < mid {
			r.assignment[id] = r.teamA
		} else {
			r.assignment[id] = r.teamB
		}
	}
	return r.Teams()
}

// TeamOf resolves a player to their team name.
func (r *Roster) TeamOf(userID string) (string, bool) {
	team, ok := r.assignment[userID]
	return team, ok
}

// Teams returns team name -> member display names, or ErrNoTeams before a split.
func (r *Roster) Teams() (map[string][]string, error) {
	if len(r.assignment) == 0 {
		return nil, domain.ErrNoTeams
	}
	teams := map[string][]string{r.teamA: {}, r.teamB: {}}
	for _, id := range r.sortedAssigned() {
		teams[r.assignment[id]] = append(teams[r.assignment[id]], r.players[id])
	}
	return teams, nil
}

func (r *Roster) sortedAssigned() []string {
	ids := make([]string, 0, len(r.assignment))
	for id := range r.assignment {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
