package service

import "searchahouse/internal/domain"

// SelectAgent returns the agent with the fewest leads in the given status.
// Ties go to the agent encountered first.
func SelectAgent(agents []domain.Agent, status domain.ContactStatus) (domain.Agent, bool) {
	if len(agents) == 0 {
		return domain.Agent{}, false
	}

	best := 0
	bestLoad := agents[0].CountLeads(status)
	for i := 1; i < len(agents); i++ {
		if load := agents[i].CountLeads(status); load < bestLoad {
			best, bestLoad = i, load
		}
	}
	return agents[best], true
}
