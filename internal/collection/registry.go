package collection

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/artex/internal/numbering"
)

// Registry holds the known profiles.
type Registry struct {
	profiles map[string]Profile
}

// NewRegistry returns a registry with the built-in profiles.
func NewRegistry() *Registry {
	r := &Registry{profiles: make(map[string]Profile)}
	for _, p := range []Profile{Picasso(), Dubuffet()} {
		r.profiles[p.Name] = p
	}
	return r
}

// Add registers or replaces a profile.
func (r *Registry) Add(p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.profiles[p.Name] = p
	return nil
}

// Get returns the named profile.
func (r *Registry) Get(name string) (Profile, error) {
	p, ok := r.profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w %q (known: %s)", ErrUnknown, name, strings.Join(r.Names(), ", "))
	}
	return p, nil
}

// Names returns the registered profile names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for n := range r.profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type profileFile struct {
	Profiles []yaml.Node `yaml:"profiles"`
}

// LoadFile reads additional profiles from a YAML file of the form
//
//	profiles:
//	  - name: matisse-like
//	    base: dubuffet-like
//	    prune_min_side: 300
//
// Fields not set in the file keep the values of the base profile.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // user-supplied profile file
	if err != nil {
		return fmt.Errorf("failed to read collection file: %w", err)
	}
	var f profileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse collection file %s: %w", path, err)
	}
	for i := range f.Profiles {
		node := &f.Profiles[i]
		var head struct {
			Name string `yaml:"name"`
			Base string `yaml:"base"`
		}
		if err := node.Decode(&head); err != nil {
			return fmt.Errorf("collection file %s, profile %d: %w", path, i+1, err)
		}
		base := Picasso()
		if head.Base != "" {
			if base, err = r.Get(head.Base); err != nil {
				return fmt.Errorf("collection file %s, profile %q: %w", path, head.Name, err)
			}
		}
		p := clone(base)
		p.Keywords = nil
		if err := node.Decode(&p); err != nil {
			return fmt.Errorf("collection file %s, profile %q: %w", path, head.Name, err)
		}
		if err := r.Add(p); err != nil {
			return err
		}
		slog.Debug("Loaded collection profile", "name", p.Name, "base", head.Base)
	}
	return nil
}

// clone copies the slices and maps of p so that decoding onto the copy
// leaves the base untouched.
func clone(p Profile) Profile {
	out := p
	out.Keywords = append([]string(nil), p.Keywords...)
	out.TOCHeadings = append([]string(nil), p.TOCHeadings...)
	n := p.Numbering
	n.Zones = append(n.Zones[:0:0], n.Zones...)
	n.Forbidden = append([]string(nil), n.Forbidden...)
	n.OCR.PSMs = append(n.OCR.PSMs[:0:0], n.OCR.PSMs...)
	n.OCR.Variants = append(n.OCR.Variants[:0:0], n.OCR.Variants...)
	n.Weights = make(map[numbering.Zone]float64, len(p.Numbering.Weights))
	for k, v := range p.Numbering.Weights {
		n.Weights[k] = v
	}
	n.LengthBonus = make(map[int]float64, len(p.Numbering.LengthBonus))
	for k, v := range p.Numbering.LengthBonus {
		n.LengthBonus[k] = v
	}
	out.Numbering = n
	return out
}

// Resolve maps a requested name to a profile. For "auto" the PDF filename
// is matched against profile keywords; ok is false when nothing matched
// and the caller has to probe for a plates table (see ForTOC).
func (r *Registry) Resolve(name, pdfPath string) (p Profile, ok bool, err error) {
	if name != "" && name != Auto {
		p, err = r.Get(name)
		return p, err == nil, err
	}
	base := strings.ToLower(filepath.Base(pdfPath))
	for _, n := range r.Names() {
		for _, kw := range r.profiles[n].Keywords {
			if kw != "" && strings.Contains(base, strings.ToLower(kw)) {
				return r.profiles[n], true, nil
			}
		}
	}
	return Profile{}, false, nil
}

// ForTOC returns the built-in profile for a document with or without a
// plates table.
func (r *Registry) ForTOC(found bool) Profile {
	if found {
		return r.profiles[PicassoLike]
	}
	return r.profiles[DubuffetLike]
}
