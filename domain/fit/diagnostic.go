package fit

import "fmt"

// Severity grades a Diagnostic.
type Severity string

// Severity values.
const (
	SeverityWarning    Severity = "warning"
	SeverityUnphysical Severity = "unphysical"
)

// Diagnostic flags a fit-quality concern with an absorber parameter.
type Diagnostic struct {
	Ref      ParameterRef
	Value    float64
	Severity Severity
	Message  string
}

// String formats the diagnostic for logs.
func (d Diagnostic) String() string {
	return fmt.Sprintf("%s %s=%g: %s", d.Severity, d.Ref, d.Value, d.Message)
}

// Diagnose reports absorbers whose N or b lie outside physical bounds.
// The optimizer may visit such states; they are only flagged afterwards.
func Diagnose(m *Model) []Diagnostic {
	var diags []Diagnostic
	for _, a := range m.absorbers {
		if a.n.Value < MinColumnDensity || a.n.Value > MaxColumnDensity {
			diags = append(diags, Diagnostic{
				Ref:      NewParameterRef(a.id, AttrN),
				Value:    a.n.Value,
				Severity: SeverityUnphysical,
				Message:  fmt.Sprintf("column density outside [%g, %g]", MinColumnDensity, MaxColumnDensity),
			})
		}
		switch {
		case a.b.Value <= 0:
			diags = append(diags, Diagnostic{
				Ref:      NewParameterRef(a.id, AttrB),
				Value:    a.b.Value,
				Severity: SeverityUnphysical,
				Message:  "doppler parameter must be positive",
			})
		case a.b.Value < MinDoppler || a.b.Value > MaxDoppler:
			diags = append(diags, Diagnostic{
				Ref:      NewParameterRef(a.id, AttrB),
				Value:    a.b.Value,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("doppler parameter outside [%g, %g]", MinDoppler, MaxDoppler),
			})
		}
	}
	return diags
}
