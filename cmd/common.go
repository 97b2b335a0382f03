package main

import (
	"github.com/rotisserie/eris"

	"github.com/ptigroup/deepfin-sub000/internal/model"
	"github.com/ptigroup/deepfin-sub000/internal/pipeline"
	"github.com/ptigroup/deepfin-sub000/internal/terms"
)

// loadTerms returns the configured terminology, or the embedded default.
func loadTerms() (*terms.Terms, error) {
	if cfg == nil || cfg.Terms.Path == "" {
		return terms.Default(), nil
	}
	t, err := terms.Load(cfg.Terms.Path)
	if err != nil {
		return nil, eris.Wrap(err, "load terms")
	}
	return t, nil
}

// typesFlag converts --types values; empty means every type.
func typesFlag(names []string) ([]model.StatementType, error) {
	types, err := pipeline.ParseTypes(names)
	if err != nil {
		return nil, err
	}
	if len(types) == 0 {
		return model.AllStatementTypes(), nil
	}
	return types, nil
}
