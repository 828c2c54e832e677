// Package fitfile reads and writes fit descriptions as XML.
package fitfile

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/helixml/linefit/domain/fit"
)

// ErrMalformed indicates a fit file that cannot be interpreted.
var ErrMalformed = errors.New("malformed fit file")

// Element names.
const (
	elementAbsorber  = "Absorber"
	elementContinuum = "ContinuumPoint"
	elementRegion    = "Region"
)

type document struct {
	XMLName   xml.Name  `xml:"SpectralFit"`
	Composite composite `xml:"CompositeSpectrum"`
}

type composite struct {
	SpectrumFile string    `xml:"SpectrumFile,attr"`
	Chi2         string    `xml:"Chi2,attr,omitempty"`
	Pixels       string    `xml:"Pixels,attr,omitempty"`
	Params       string    `xml:"Params,attr,omitempty"`
	Children     []element `xml:",any"`
}

type element struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Inner   string     `xml:",innerxml"`
}

// attrs indexes an element's attributes by local name.
type attrs map[string]string

func newAttrs(list []xml.Attr) attrs {
	a := make(attrs, len(list))
	for _, x := range list {
		a[x.Name.Local] = x.Value
	}
	return a
}

func (a attrs) float(name string, required bool) (float64, error) {
	v, ok := a[name]
	if !ok || strings.TrimSpace(v) == "" {
		if required {
			return 0, fmt.Errorf("%w: missing attribute %s", ErrMalformed, name)
		}
		return 0, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: attribute %s: %w", ErrMalformed, name, err)
	}
	return f, nil
}

func (a attrs) int(name string) (int, error) {
	v, ok := a[name]
	if !ok || strings.TrimSpace(v) == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%w: attribute %s: %w", ErrMalformed, name, err)
	}
	return n, nil
}

func (a attrs) bool(name string) bool {
	return strings.EqualFold(strings.TrimSpace(a[name]), "true")
}

// Decode reads a fit description. The dataset path is returned as written;
// the dataset itself is not loaded.
func Decode(r io.Reader) (*fit.Model, error) {
	var doc document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	c := doc.Composite

	var (
		absorbers []fit.Absorber
		continuum []fit.ContinuumPoint
		regions   []fit.Region
		auxiliary []fit.Auxiliary
	)
	for _, child := range c.Children {
		a := newAttrs(child.Attrs)
		switch child.XMLName.Local {
		case elementAbsorber:
			abs, err := decodeAbsorber(a)
			if err != nil {
				return nil, err
			}
			absorbers = append(absorbers, abs)
		case elementContinuum:
			pt, err := decodeContinuum(a)
			if err != nil {
				return nil, err
			}
			continuum = append(continuum, pt)
		case elementRegion:
			reg, err := decodeRegion(a)
			if err != nil {
				return nil, err
			}
			regions = append(regions, reg)
		default:
			auxiliary = append(auxiliary, decodeAuxiliary(child))
		}
	}

	top := attrs{"Chi2": c.Chi2, "Pixels": c.Pixels, "Params": c.Params}
	chi2, err := top.float("Chi2", false)
	if err != nil {
		return nil, err
	}
	pixels, err := top.int("Pixels")
	if err != nil {
		return nil, err
	}
	params, err := top.int("Params")
	if err != nil {
		return nil, err
	}

	return fit.NewModel(absorbers, continuum, regions,
		fit.WithDatasetPath(c.SpectrumFile),
		fit.WithSummary(chi2, pixels, params),
		fit.WithAuxiliary(auxiliary...),
	)
}

func decodeAbsorber(a attrs) (fit.Absorber, error) {
	ion := a["ionName"]
	if ion == "" {
		return fit.Absorber{}, fmt.Errorf("%w: absorber %q without ionName", ErrMalformed, a["id"])
	}
	values := make(map[fit.Attribute]float64, 3)
	opts := make([]fit.AbsorberOption, 0, 6)
	for _, attr := range fit.AbsorberAttributes {
		name := string(attr)
		v, err := a.float(name, true)
		if err != nil {
			return fit.Absorber{}, fmt.Errorf("absorber %q: %w", a["id"], err)
		}
		e, err := a.float(name+"Error", false)
		if err != nil {
			return fit.Absorber{}, fmt.Errorf("absorber %q: %w", a["id"], err)
		}
		values[attr] = v
		opts = append(opts, fit.WithLocked(attr, a.bool(name+"Locked")), fit.WithError(attr, e))
	}
	return fit.NewAbsorber(a["id"], ion, values[fit.AttrN], values[fit.AttrB], values[fit.AttrZ], opts...), nil
}

func decodeContinuum(a attrs) (fit.ContinuumPoint, error) {
	values := make(map[fit.Attribute]float64, 2)
	opts := make([]fit.ContinuumOption, 0, 4)
	for _, attr := range fit.ContinuumAttributes {
		name := string(attr)
		v, err := a.float(name, true)
		if err != nil {
			return fit.ContinuumPoint{}, fmt.Errorf("continuum point %q: %w", a["id"], err)
		}
		e, err := a.float(name+"Error", false)
		if err != nil {
			return fit.ContinuumPoint{}, fmt.Errorf("continuum point %q: %w", a["id"], err)
		}
		values[attr] = v
		opts = append(opts, fit.WithContinuumLocked(attr, a.bool(name+"Locked")), fit.WithContinuumError(attr, e))
	}
	return fit.NewContinuumPoint(a["id"], values[fit.AttrX], values[fit.AttrY], opts...), nil
}

func decodeRegion(a attrs) (fit.Region, error) {
	start, err := a.float("start", true)
	if err != nil {
		return fit.Region{}, err
	}
	end, err := a.float("end", true)
	if err != nil {
		return fit.Region{}, err
	}
	return fit.NewRegion(start, end)
}

func decodeAuxiliary(e element) fit.Auxiliary {
	aux := fit.Auxiliary{Name: e.XMLName.Local, Inner: e.Inner}
	for _, x := range e.Attrs {
		aux.Attrs = append(aux.Attrs, fit.AuxiliaryAttr{Name: x.Name.Local, Value: x.Value})
	}
	return aux
}

// Encode writes a fit description.
func Encode(w io.Writer, m *fit.Model) error {
	c := composite{
		SpectrumFile: m.DatasetPath(),
		Chi2:         formatFloat(m.ChiSquare()),
		Pixels:       strconv.Itoa(m.Pixels()),
		Params:       strconv.Itoa(m.Params()),
	}

	for _, a := range m.Absorbers() {
		list := []xml.Attr{attr("id", a.ID()), attr("ionName", a.Ion())}
		for _, at := range fit.AbsorberAttributes {
			p, _ := a.Param(at)
			list = append(list, attr(string(at), formatFloat(p.Value)))
		}
		list = append(list, paramFlags(a.Param, fit.AbsorberAttributes)...)
		c.Children = append(c.Children, element{XMLName: xml.Name{Local: elementAbsorber}, Attrs: list})
	}
	for _, pt := range m.ContinuumPoints() {
		list := []xml.Attr{
			attr("id", pt.ID()),
			attr("x", formatFloat(pt.X())),
			attr("y", formatFloat(pt.Y())),
		}
		list = append(list, paramFlags(pt.Param, fit.ContinuumAttributes)...)
		c.Children = append(c.Children, element{XMLName: xml.Name{Local: elementContinuum}, Attrs: list})
	}
	for _, r := range m.Regions() {
		c.Children = append(c.Children, element{
			XMLName: xml.Name{Local: elementRegion},
			Attrs:   []xml.Attr{attr("start", formatFloat(r.Start())), attr("end", formatFloat(r.End()))},
		})
	}
	for _, aux := range m.Auxiliary() {
		e := element{XMLName: xml.Name{Local: aux.Name}, Inner: aux.Inner}
		for _, x := range aux.Attrs {
			e.Attrs = append(e.Attrs, attr(x.Name, x.Value))
		}
		c.Children = append(c.Children, e)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(document{Composite: c}); err != nil {
		return fmt.Errorf("encode fit: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func paramFlags(get func(fit.Attribute) (fit.Param, bool), attributes []fit.Attribute) []xml.Attr {
	var list []xml.Attr
	for _, at := range attributes {
		p, _ := get(at)
		list = append(list, attr(string(at)+"Locked", strconv.FormatBool(p.Locked)))
	}
	for _, at := range attributes {
		p, _ := get(at)
		list = append(list, attr(string(at)+"Error", formatFloat(p.Error)))
	}
	return list
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ReadFile decodes the fit file at path. A relative SpectrumFile is resolved
// to an absolute path against the fit file's directory.
func ReadFile(path string) (*fit.Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fit file: %w", err)
	}
	defer func() { _ = f.Close() }()

	m, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if p := m.DatasetPath(); p != "" && !filepath.IsAbs(p) {
		resolved, err := filepath.Abs(filepath.Join(filepath.Dir(path), p))
		if err != nil {
			return nil, fmt.Errorf("resolve spectrum file: %w", err)
		}
		m.SetDataset(resolved, m.Dataset())
	}
	return m, nil
}

// WriteFile encodes m to path through a temporary file in the same
// directory. The dataset path is written relative to path when possible.
func WriteFile(path string, m *fit.Model) error {
	out := m
	if p := m.DatasetPath(); p != "" && filepath.IsAbs(p) {
		if rel, err := relativeTo(path, p); err == nil {
			out = m.Copy()
			out.SetDataset(rel, m.Dataset())
		}
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".fit-*.xml")
	if err != nil {
		return fmt.Errorf("create temp fit file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := Encode(tmp, out); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp fit file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename fit file: %w", err)
	}
	return nil
}

func relativeTo(fitPath, datasetPath string) (string, error) {
	absFit, err := filepath.Abs(fitPath)
	if err != nil {
		return "", err
	}
	return filepath.Rel(filepath.Dir(absFit), datasetPath)
}
