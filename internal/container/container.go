package container

import (
	"log"

	"gomulm/adapters/battery"
	"gomulm/adapters/excel"
	"gomulm/adapters/rng"
	"gomulm/app"
	"gomulm/domain/contrast"
	"gomulm/internal/config"
	"gomulm/internal/errors"
	"gomulm/ports"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config

	// Infrastructure
	RNG    ports.RNGPort
	Reader ports.MatrixReaderPort
	Writer ports.GridWriterPort

	// Services
	Referee  *battery.MaxTReferee
	Analysis *app.AnalysisService
	Splitter *app.ColumnSplitter
}

// New creates a new dependency injection container
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, errors.ConfigInvalid("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Container{
		Config: cfg,
		RNG:    rng.NewSeededAdapter(),
		Reader: excel.NewDataReader(excel.DefaultReaderConfig()),
		Writer: excel.NewGridWriter(),
	}
	referee, err := newMaxTReferee(c.RNG, cfg)
	if err != nil {
		return nil, err
	}
	c.Referee = referee
	c.Analysis = app.NewAnalysisService(referee, cfg)
	c.Splitter = app.NewColumnSplitter(cfg.MaxT.Workers, c.ContrastOptions())

	log.Printf("[Container] initialized (permutations=%d workers=%d family=%s)",
		cfg.MaxT.Permutations, cfg.MaxT.Workers, cfg.MaxT.Family)
	return c, nil
}

// ContrastOptions returns the configured p-value and tail settings
func (c *Container) ContrastOptions() contrast.Options {
	return contrast.Options{
		PValues:   c.Config.Inference.PValues,
		TwoTailed: c.Config.Inference.TwoTailed,
	}
}

func newMaxTReferee(rngPort ports.RNGPort, cfg *config.Config) (*battery.MaxTReferee, error) {
	family, err := battery.ParseFamily(cfg.MaxT.Family)
	if err != nil {
		return nil, err
	}
	return battery.NewMaxTReferee(rngPort, battery.MaxTConfig{
		Permutations: cfg.MaxT.Permutations,
		Seed:         cfg.MaxT.Seed,
		Workers:      cfg.MaxT.Workers,
		Family:       family,
	}), nil
}
