package soma

import (
	"context"

	"somacore/internal/errors"
)

// Collection is a named bag of entities of any kind.
type Collection struct {
	container
}

// NewCollection returns a handle for the collection at uri. No I/O is done.
func NewCollection(p *Platform, uri string) *Collection {
	return &Collection{container: newContainer(p, KindCollection, uri)}
}

// Create persists the collection and returns it for chaining.
func (c *Collection) Create(ctx context.Context) (*Collection, error) {
	if err := c.container.Create(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Measurement is a container whose var slot holds a DataFrame and whose X
// slot holds a Collection of tensors.
type Measurement struct {
	container
}

// NewMeasurement returns a handle for the measurement at uri.
func NewMeasurement(p *Platform, uri string) *Measurement {
	return &Measurement{container: newContainer(p, KindMeasurement, uri)}
}

// Create persists the measurement and returns it for chaining.
func (m *Measurement) Create(ctx context.Context) (*Measurement, error) {
	if err := m.container.Create(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// Var returns the var slot.
func (m *Measurement) Var(ctx context.Context) (*DataFrame, error) {
	return getAs[*DataFrame](ctx, &m.container, "var")
}

// X returns the X slot.
func (m *Measurement) X(ctx context.Context) (*Collection, error) {
	return getAs[*Collection](ctx, &m.container, "X")
}

// Experiment is the root container: obs holds a DataFrame and ms a
// Collection of Measurements.
type Experiment struct {
	container
}

// NewExperiment returns a handle for the experiment at uri.
func NewExperiment(p *Platform, uri string) *Experiment {
	return &Experiment{container: newContainer(p, KindExperiment, uri)}
}

// Create persists the experiment and returns it for chaining.
func (e *Experiment) Create(ctx context.Context) (*Experiment, error) {
	if err := e.container.Create(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// Obs returns the obs slot.
func (e *Experiment) Obs(ctx context.Context) (*DataFrame, error) {
	return getAs[*DataFrame](ctx, &e.container, "obs")
}

// MS returns the ms slot.
func (e *Experiment) MS(ctx context.Context) (*Collection, error) {
	return getAs[*Collection](ctx, &e.container, "ms")
}

// getAs resolves a member and asserts its concrete type. A member stored
// without going through Set can hold another kind; that is reported as
// ErrTypeConstraint.
func getAs[T Object](ctx context.Context, c *container, name string) (T, error) {
	var zero T
	obj, err := c.Get(ctx, name)
	if err != nil {
		return zero, err
	}
	v, ok := obj.(T)
	if !ok {
		return zero, errors.Wrapf(ErrTypeConstraint, "%s member %q is a %s", c.uri, name, obj.Kind())
	}
	return v, nil
}
