package directory

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"sort"

	"searchahouse/internal/domain"
)

type halLink struct {
	Href string `json:"href"`
}

type halPage struct {
	Embedded map[string]json.RawMessage `json:"_embedded"`
	Links    struct {
		Next halLink `json:"next"`
	} `json:"_links"`
}

type halAgent struct {
	domain.Agent
	Links struct {
		Self halLink `json:"self"`
	} `json:"_links"`
}

// agents decodes the embedded collection. Spring HATEOAS names the relation
// after the entity ("agents", "agentList", ...), so the single embedded array
// is used whatever its key.
func (p halPage) agents() ([]domain.Agent, error) {
	if len(p.Embedded) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(p.Embedded))
	for k := range p.Embedded {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		var items []halAgent
		if err := json.Unmarshal(p.Embedded[k], &items); err != nil {
			continue
		}
		out := make([]domain.Agent, 0, len(items))
		for _, item := range items {
			agent := item.Agent
			if agent.ID == "" {
				agent.ID = idFromSelf(item.Links.Self.Href)
			}
			if agent.ID == "" {
				return nil, fmt.Errorf("embedded %q: agent without identifier", k)
			}
			out = append(out, agent)
		}
		return out, nil
	}
	return nil, fmt.Errorf("no embedded agent collection")
}

func idFromSelf(href string) string {
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	id := path.Base(u.Path)
	if id == "." || id == "/" {
		return ""
	}
	return id
}
