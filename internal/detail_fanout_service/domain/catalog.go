package domain

import (
	"encoding/base64"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/tmdbsync/golang_services/internal/core_domain"
)

// IDPlaceholder is replaced by the entity id in every endpoint URL template.
const IDPlaceholder = "{id}"

// Endpoint is one detail facet of an entity type.
type Endpoint struct {
	ResponseType string
	URLTemplate  string
}

// URL substitutes id into the template.
func (e Endpoint) URL(id int64) string {
	return strings.ReplaceAll(e.URLTemplate, IDPlaceholder, strconv.FormatInt(id, 10))
}

// EndpointCatalog maps an entity type to its detail endpoints. It is immutable once
// built and safe to share between requests.
type EndpointCatalog struct {
	byType map[string][]Endpoint
}

// NewEndpointCatalog builds a catalog from entity type -> response_type -> URL template.
func NewEndpointCatalog(raw map[string]map[string]string) *EndpointCatalog {
	byType := make(map[string][]Endpoint, len(raw))
	for entityType, facets := range raw {
		endpoints := make([]Endpoint, 0, len(facets))
		for responseType, tmpl := range facets {
			endpoints = append(endpoints, Endpoint{ResponseType: responseType, URLTemplate: tmpl})
		}
		sort.Slice(endpoints, func(i, j int) bool {
			return endpoints[i].ResponseType < endpoints[j].ResponseType
		})
		byType[entityType] = endpoints
	}
	return &EndpointCatalog{byType: byType}
}

// ParseEndpointCatalog parses the JSON catalog document.
func ParseEndpointCatalog(data []byte) (*EndpointCatalog, error) {
	var raw map[string]map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, core_domain.Wrap(core_domain.ErrConfiguration, "parsing endpoint catalog", err)
	}
	if len(raw) == 0 {
		return nil, core_domain.Wrap(core_domain.ErrConfiguration, "endpoint catalog is empty", nil)
	}
	return NewEndpointCatalog(raw), nil
}

// DecodeEndpointCatalog parses a base64 encoded JSON catalog document.
func DecodeEndpointCatalog(encoded string) (*EndpointCatalog, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, core_domain.Wrap(core_domain.ErrConfiguration, "decoding base64 endpoint catalog", err)
	}
	return ParseEndpointCatalog(data)
}

// Lookup returns the endpoints of entityType ordered by response type. ok is false when
// the type is unknown or has no endpoints.
func (c *EndpointCatalog) Lookup(entityType string) (endpoints []Endpoint, ok bool) {
	endpoints = c.byType[entityType]
	if len(endpoints) == 0 {
		return nil, false
	}
	out := make([]Endpoint, len(endpoints))
	copy(out, endpoints)
	return out, true
}

// Types lists the catalog's entity types in sorted order.
func (c *EndpointCatalog) Types() []string {
	types := make([]string, 0, len(c.byType))
	for t := range c.byType {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
