package analyze

import (
	"strings"

	"github.com/sells-group/thread-intel/internal/identity"
	"github.com/sells-group/thread-intel/internal/model"
)

const (
	truncationMarker   = "[...Middle of conversation truncated for length...]"
	unknownCustomer    = "Unknown"
	unknownCompany     = "Unknown Company"
	transcriptLineJoin = "\n\n"
)

type speaker struct {
	name    string
	company string
}

// roster resolves message senders to display names.
type roster struct {
	byID    map[string]speaker
	byEmail map[string]speaker
}

func newRoster(participants []model.Participant) roster {
	r := roster{
		byID:    make(map[string]speaker, len(participants)),
		byEmail: make(map[string]speaker, len(participants)),
	}
	for _, p := range participants {
		s := speaker{name: p.FullName, company: p.CompanyName}
		if s.name == "" {
			s.name = identity.LocalPart(p.Email)
		}
		if s.name == "" {
			s.name = unknownCustomer
		}
		if s.company == "" {
			s.company = unknownCompany
		}
		r.byID[p.CustomerID] = s
		if p.Email != "" {
			r.byEmail[strings.ToLower(p.Email)] = s
		}
	}
	return r
}

func (r roster) lookup(m model.Message) speaker {
	if m.CustomerID != nil {
		if s, ok := r.byID[*m.CustomerID]; ok {
			return s
		}
	}
	if addr, ok := identity.ExtractAddress(m.From); ok {
		if s, ok := r.byEmail[addr]; ok {
			return s
		}
	}
	return speaker{name: unknownCustomer, company: unknownCompany}
}

func (r roster) lines(msgs []model.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		body := m.Body()
		if body == "" {
			continue
		}
		s := r.lookup(m)
		out = append(out, s.name+" ("+s.company+"): "+body)
	}
	return out
}

// estimateTokens approximates the token count of the joined message bodies
// at four characters per token.
func estimateTokens(msgs []model.Message) int {
	bodies := make([]string, len(msgs))
	for i, m := range msgs {
		bodies[i] = m.Body()
	}
	return len(strings.Join(bodies, " ")) / 4
}

// transcript renders msgs as "Name (Company): body" lines separated by a
// blank line. When the estimate exceeds limit, only the first and last
// floor(edge*n) messages are kept with a marker line between them.
func (r roster) transcript(msgs []model.Message, limit int, edge float64) (string, bool) {
	if estimateTokens(msgs) <= limit {
		return strings.Join(r.lines(msgs), transcriptLineJoin), false
	}
	k := int(float64(len(msgs)) * edge)
	lines := r.lines(msgs[:k])
	lines = append(lines, truncationMarker)
	lines = append(lines, r.lines(msgs[len(msgs)-k:])...)
	return strings.Join(lines, transcriptLineJoin), true
}
