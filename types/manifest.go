package types

import (
	"encoding/json"
	"slices"
)

// Manifest describes the capabilities of the addon.
// See https://github.com/Stremio/stremio-addon-sdk/blob/f6f1f2a8b627b9d4f2c62b003b251d98adadbebe/docs/api/responses/manifest.md
type Manifest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	ResourceItems []ResourceItem `json:"resources"`

	Types    []string      `json:"types"` // "movie" and "series" for this addon
	Catalogs []CatalogItem `json:"catalogs"`

	// Optional
	IDprefixes    []string              `json:"idPrefixes,omitempty"`
	Background    string                `json:"background,omitempty"` // URL
	Logo          string                `json:"logo,omitempty"`       // URL
	ContactEmail  string                `json:"contactEmail,omitempty"`
	BehaviorHints ManifestBehaviorHints `json:"behaviorHints,omitempty"`
}

// Clone returns a deep copy of m.
func (m Manifest) Clone() Manifest {
	var resourceItems []ResourceItem
	if m.ResourceItems != nil {
		resourceItems = make([]ResourceItem, len(m.ResourceItems))
		for i, resourceItem := range m.ResourceItems {
			resourceItems[i] = resourceItem.Clone()
		}
	}

	var catalogs []CatalogItem
	if m.Catalogs != nil {
		catalogs = make([]CatalogItem, len(m.Catalogs))
		for i, catalog := range m.Catalogs {
			catalogs[i] = catalog.Clone()
		}
	}

	return Manifest{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Version:     m.Version,

		ResourceItems: resourceItems,

		Types:    slices.Clone(m.Types),
		Catalogs: catalogs,

		IDprefixes:    slices.Clone(m.IDprefixes),
		Background:    m.Background,
		Logo:          m.Logo,
		ContactEmail:  m.ContactEmail,
		BehaviorHints: m.BehaviorHints,
	}
}

// HasResource reports whether the manifest declares the resource, like "stream".
func (m Manifest) HasResource(name string) bool {
	return slices.ContainsFunc(m.ResourceItems, func(ri ResourceItem) bool {
		return ri.Name == name
	})
}

// HasType reports whether the manifest declares the type, like "movie".
func (m Manifest) HasType(t string) bool {
	return slices.Contains(m.Types, t)
}

type ManifestBehaviorHints struct {
	// Note: Must include `omitempty`, otherwise it will be included if this struct is used in another one, even if the field of the containing struct is marked as `omitempty`
	Adult        bool `json:"adult,omitempty"`
	P2P          bool `json:"p2p,omitempty"`
	Configurable bool `json:"configurable,omitempty"`
}

// ResourceItem is a resource the addon provides.
// Without types and ID prefixes it's encoded as the plain resource name, in which case Stremio uses the manifest's types and prefixes.
type ResourceItem struct {
	Name  string   `json:"name"`
	Types []string `json:"types,omitempty"`

	// Optional
	IDprefixes []string `json:"idPrefixes,omitempty"`
}

// Resource returns a ResourceItem that only has a name.
func Resource(name string) ResourceItem {
	return ResourceItem{Name: name}
}

func (ri ResourceItem) MarshalJSON() ([]byte, error) {
	if len(ri.Types) == 0 && len(ri.IDprefixes) == 0 {
		return json.Marshal(ri.Name)
	}
	// Alias type to avoid recursion
	type resourceItem ResourceItem
	return json.Marshal(resourceItem(ri))
}

func (ri *ResourceItem) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*ri = ResourceItem{Name: name}
		return nil
	}
	type resourceItem ResourceItem
	var item resourceItem
	if err := json.Unmarshal(data, &item); err != nil {
		return err
	}
	*ri = ResourceItem(item)
	return nil
}

func (ri ResourceItem) Clone() ResourceItem {
	return ResourceItem{
		Name:  ri.Name,
		Types: slices.Clone(ri.Types),

		IDprefixes: slices.Clone(ri.IDprefixes),
	}
}

// CatalogItem represents a catalog.
type CatalogItem struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`

	// Optional
	Extra []ExtraItem `json:"extra,omitempty"`
}

func (ci CatalogItem) Clone() CatalogItem {
	var extras []ExtraItem
	if ci.Extra != nil {
		extras = make([]ExtraItem, len(ci.Extra))
		for i, extra := range ci.Extra {
			extras[i] = extra.Clone()
		}
	}

	return CatalogItem{
		Type: ci.Type,
		ID:   ci.ID,
		Name: ci.Name,

		Extra: extras,
	}
}

// RequiredExtras returns the names of the extras that must be present in catalog requests.
func (ci CatalogItem) RequiredExtras() []string {
	var names []string
	for _, extra := range ci.Extra {
		if extra.IsRequired {
			names = append(names, extra.Name)
		}
	}
	return names
}

type ExtraItem struct {
	Name string `json:"name"`

	// Optional
	IsRequired   bool     `json:"isRequired,omitempty"`
	Options      []string `json:"options,omitempty"`
	OptionsLimit int      `json:"optionsLimit,omitempty"`
}

func (ei ExtraItem) Clone() ExtraItem {
	return ExtraItem{
		Name: ei.Name,

		IsRequired:   ei.IsRequired,
		Options:      slices.Clone(ei.Options),
		OptionsLimit: ei.OptionsLimit,
	}
}
