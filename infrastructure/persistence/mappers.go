package persistence

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/helixml/linefit/domain/fit"
	"github.com/helixml/linefit/domain/service"
	"gorm.io/datatypes"
)

// ErrCorruptDocument indicates a stored fit could not be decoded.
var ErrCorruptDocument = errors.New("corrupt fit document")

// SummaryMapper maps between fit.Summary and FitModel.
type SummaryMapper struct{}

// ToDomain converts a FitModel to a fit.Summary.
func (SummaryMapper) ToDomain(e FitModel) fit.Summary {
	return fit.NewSummary(e.ID, e.Name, e.DatasetPath, e.ChiSquare, e.Pixels, e.Params, e.Absorbers, e.CreatedAt)
}

// ToModel converts a fit.Summary to a FitModel without a document.
func (SummaryMapper) ToModel(s fit.Summary) FitModel {
	return FitModel{
		ID:          s.ID(),
		Name:        s.Name(),
		DatasetPath: s.DatasetPath(),
		ChiSquare:   s.ChiSquare(),
		Pixels:      s.Pixels(),
		Params:      s.Params(),
		Absorbers:   s.Absorbers(),
		CreatedAt:   s.CreatedAt(),
	}
}

// DocumentMapper encodes and decodes full models.
type DocumentMapper struct{}

// ToModel encodes m as a FitModel named name.
func (DocumentMapper) ToModel(name string, m *fit.Model) (FitModel, error) {
	doc := fitDocument{}
	for _, a := range m.Absorbers() {
		doc.Absorbers = append(doc.Absorbers, absorberDocument{
			ID:  a.ID(),
			Ion: a.Ion(),
			N:   paramToDocument(a, fit.AttrN),
			B:   paramToDocument(a, fit.AttrB),
			Z:   paramToDocument(a, fit.AttrZ),
		})
	}
	for _, c := range m.ContinuumPoints() {
		doc.Continuum = append(doc.Continuum, continuumDocument{
			ID: c.ID(),
			X:  paramToDocument(c, fit.AttrX),
			Y:  paramToDocument(c, fit.AttrY),
		})
	}
	for _, r := range m.Regions() {
		doc.Regions = append(doc.Regions, regionDocument{Start: r.Start(), End: r.End()})
	}
	for _, aux := range m.Auxiliary() {
		d := auxiliaryDocument{Name: aux.Name, Inner: aux.Inner}
		for _, attr := range aux.Attrs {
			d.Attrs = append(d.Attrs, auxiliaryAttrDocument{Name: attr.Name, Value: attr.Value})
		}
		doc.Auxiliary = append(doc.Auxiliary, d)
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return FitModel{}, fmt.Errorf("encode fit document: %w", err)
	}

	return FitModel{
		Name:        name,
		DatasetPath: m.DatasetPath(),
		ChiSquare:   m.ChiSquare(),
		Pixels:      m.Pixels(),
		Params:      m.Params(),
		Absorbers:   m.NumAbsorbers(),
		Document:    body,
	}, nil
}

// ToDomain decodes a FitModel. The dataset is referenced by path only.
func (DocumentMapper) ToDomain(e FitModel) (*fit.Model, error) {
	var doc fitDocument
	if err := json.Unmarshal(e.Document, &doc); err != nil {
		return nil, fmt.Errorf("%w: fit %d: %w", ErrCorruptDocument, e.ID, err)
	}

	absorbers := make([]fit.Absorber, 0, len(doc.Absorbers))
	for _, a := range doc.Absorbers {
		absorbers = append(absorbers, fit.NewAbsorber(a.ID, a.Ion, a.N.Value, a.B.Value, a.Z.Value,
			fit.WithLocked(fit.AttrN, a.N.Locked), fit.WithError(fit.AttrN, a.N.Error),
			fit.WithLocked(fit.AttrB, a.B.Locked), fit.WithError(fit.AttrB, a.B.Error),
			fit.WithLocked(fit.AttrZ, a.Z.Locked), fit.WithError(fit.AttrZ, a.Z.Error),
		))
	}

	continuum := make([]fit.ContinuumPoint, 0, len(doc.Continuum))
	for _, c := range doc.Continuum {
		continuum = append(continuum, fit.NewContinuumPoint(c.ID, c.X.Value, c.Y.Value,
			fit.WithContinuumLocked(fit.AttrX, c.X.Locked), fit.WithContinuumError(fit.AttrX, c.X.Error),
			fit.WithContinuumLocked(fit.AttrY, c.Y.Locked), fit.WithContinuumError(fit.AttrY, c.Y.Error),
		))
	}

	regions := make([]fit.Region, 0, len(doc.Regions))
	for _, r := range doc.Regions {
		region, err := fit.NewRegion(r.Start, r.End)
		if err != nil {
			return nil, fmt.Errorf("%w: fit %d: %w", ErrCorruptDocument, e.ID, err)
		}
		regions = append(regions, region)
	}

	aux := make([]fit.Auxiliary, 0, len(doc.Auxiliary))
	for _, d := range doc.Auxiliary {
		record := fit.Auxiliary{Name: d.Name, Inner: d.Inner}
		for _, attr := range d.Attrs {
			record.Attrs = append(record.Attrs, fit.AuxiliaryAttr{Name: attr.Name, Value: attr.Value})
		}
		aux = append(aux, record)
	}

	m, err := fit.NewModel(absorbers, continuum, regions,
		fit.WithDatasetPath(e.DatasetPath),
		fit.WithSummary(e.ChiSquare, e.Pixels, e.Params),
		fit.WithAuxiliary(aux...),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: fit %d: %w", ErrCorruptDocument, e.ID, err)
	}
	return m, nil
}

type paramHolder interface {
	Param(attr fit.Attribute) (fit.Param, bool)
}

func paramToDocument(h paramHolder, attr fit.Attribute) paramDocument {
	p, _ := h.Param(attr)
	return paramDocument{Value: p.Value, Locked: p.Locked, Error: p.Error}
}

// ResultMapper maps between service.Record and ResultModel.
type ResultMapper struct{}

// ToDomain converts a ResultModel to a service.Record.
func (ResultMapper) ToDomain(e ResultModel) service.Record {
	return service.NewRecordFromColumns(e.RunID, e.Job, e.ChiSquare, e.Columns, e.Values)
}

// ToModel converts a service.Record to a ResultModel.
func (ResultMapper) ToModel(r service.Record) ResultModel {
	return ResultModel{
		RunID:     r.RunID(),
		Job:       r.Job(),
		ChiSquare: r.ChiSquare(),
		Columns:   datatypes.NewJSONSlice(r.Columns()),
		Values:    datatypes.NewJSONSlice(r.Values()),
	}
}
