package site

import (
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Registry is an immutable named-site lookup built once at load time.
type Registry struct {
	sites map[string]*Site
	names []string
}

// NewRegistry validates and indexes the given sites.
func NewRegistry(sites []Site) (*Registry, error) {
	r := &Registry{sites: make(map[string]*Site, len(sites))}
	for i := range sites {
		s := sites[i]
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.sites[s.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate site %q", ErrInvalidSite, s.Name)
		}
		s.finalize()
		r.sites[s.Name] = &s
		r.names = append(r.names, s.Name)
	}
	sort.Strings(r.names)
	return r, nil
}

// Get returns the named site, or nil if unknown.
func (r *Registry) Get(name string) *Site {
	return r.sites[name]
}

// Names returns all registered site names, sorted.
func (r *Registry) Names() []string {
	return r.names
}

// Len returns the number of registered sites.
func (r *Registry) Len() int {
	return len(r.names)
}

// siteFile is the YAML shape: a map of site name to site fields.
type siteFile map[string]Site

// LoadYAML reads a site registry from YAML. Map keys become site names
// (a name field inside an entry is overridden by its key).
func LoadYAML(r io.Reader) (*Registry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading sites: %w", err)
	}
	var f siteFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing sites yaml: %w", err)
	}
	sites := make([]Site, 0, len(f))
	for name, s := range f {
		s.Name = name
		sites = append(sites, s)
	}
	// Deterministic registry construction regardless of map order.
	sort.Slice(sites, func(i, j int) bool { return sites[i].Name < sites[j].Name })
	return NewRegistry(sites)
}

// LoadYAMLFile reads a site registry from a YAML file.
func LoadYAMLFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening sites file: %w", err)
	}
	defer f.Close()
	return LoadYAML(f)
}

// Builtin returns the registry of well-known sites used when no site
// file is configured.
func Builtin() *Registry {
	r, err := NewRegistry(builtinSites)
	if err != nil {
		// builtinSites is compile-time data; a failure here is a bug.
		panic(err)
	}
	return r
}

var builtinSites = []Site{
	{
		Name:        "maunakea",
		Latitude:    19.8255,
		Longitude:   -155.48,
		Elevation:   4205,
		Pressure:    615,
		Temperature: 0,
		TZOffsetMin: -600,
		TZName:      "HST",
	},
	{
		Name:        "paranal",
		Latitude:    -24.6272,
		Longitude:   -70.4048,
		Elevation:   2635,
		Pressure:    750,
		Temperature: 10,
		TZOffsetMin: -240,
		TZName:      "CLT",
	},
	{
		Name:        "lapalma",
		Latitude:    28.7606,
		Longitude:   -17.8816,
		Elevation:   2396,
		Pressure:    770,
		Temperature: 8,
		TZOffsetMin: 0,
		TZName:      "WET",
	},
	{
		Name:        "kittpeak",
		Latitude:    31.9583,
		Longitude:   -111.5967,
		Elevation:   2096,
		Pressure:    790,
		Temperature: 15,
		TZOffsetMin: -420,
		TZName:      "MST",
	},
}
