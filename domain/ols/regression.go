package ols

import (
	"gomulm/internal/errors"

	"gonum.org/v1/gonum/mat"
)

// Regression is the stateful estimator view of a mass-univariate fit:
// Fit once, then Predict or hand the model to the contrast engine.
type Regression struct {
	model *FittedModel
}

// NewRegression returns an unfitted estimator.
func NewRegression() *Regression {
	return &Regression{}
}

// Fit fits Y against X and keeps the model.
func (r *Regression) Fit(x, y mat.Matrix) (*FittedModel, error) {
	model, err := Fit(x, y)
	if err != nil {
		return nil, err
	}
	r.model = model
	return model, nil
}

// Predict returns X * B of the last fit.
func (r *Regression) Predict(x mat.Matrix) (*mat.Dense, error) {
	if r.model == nil {
		return nil, errors.NotFitted("predict")
	}
	return r.model.Predict(x)
}

// Model returns the last fitted model.
func (r *Regression) Model() (*FittedModel, error) {
	if r.model == nil {
		return nil, errors.NotFitted("model")
	}
	return r.model, nil
}
