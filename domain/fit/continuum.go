package fit

// UnsetID is the sentinel id of continuum points read without one.
const UnsetID = "unset"

// ContinuumPoint is a control point of the piecewise-linear continuum.
type ContinuumPoint struct {
	id string
	x  Param
	y  Param
}

// ContinuumOption configures a ContinuumPoint at construction.
type ContinuumOption func(*ContinuumPoint)

// WithContinuumLocked sets the lock flag of x or y.
func WithContinuumLocked(attr Attribute, locked bool) ContinuumOption {
	return func(c *ContinuumPoint) {
		if p := c.param(attr); p != nil {
			p.Locked = locked
		}
	}
}

// WithContinuumError sets the uncertainty of x or y.
func WithContinuumError(attr Attribute, v float64) ContinuumOption {
	return func(c *ContinuumPoint) {
		if p := c.param(attr); p != nil {
			p.Error = v
		}
	}
}

// NewContinuumPoint creates a ContinuumPoint. An empty id becomes UnsetID.
func NewContinuumPoint(id string, x, y float64, opts ...ContinuumOption) ContinuumPoint {
	if id == "" {
		id = UnsetID
	}
	c := ContinuumPoint{
		id: id,
		x:  Param{Value: x},
		y:  Param{Value: y},
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// ID returns the point id.
func (c ContinuumPoint) ID() string { return c.id }

// X returns the wavelength.
func (c ContinuumPoint) X() float64 { return c.x.Value }

// Y returns the flux density.
func (c ContinuumPoint) Y() float64 { return c.y.Value }

// Param returns the x or y parameter.
func (c ContinuumPoint) Param(attr Attribute) (Param, bool) {
	p := c.param(attr)
	if p == nil {
		return Param{}, false
	}
	return *p, true
}

// SetValue sets x or y in place.
func (c *ContinuumPoint) SetValue(attr Attribute, v float64) bool {
	p := c.param(attr)
	if p == nil {
		return false
	}
	p.Value = v
	return true
}

// SetLocked sets the lock flag of x or y in place.
func (c *ContinuumPoint) SetLocked(attr Attribute, locked bool) bool {
	p := c.param(attr)
	if p == nil {
		return false
	}
	p.Locked = locked
	return true
}

func (c *ContinuumPoint) param(attr Attribute) *Param {
	switch attr {
	case AttrX:
		return &c.x
	case AttrY:
		return &c.y
	}
	return nil
}
