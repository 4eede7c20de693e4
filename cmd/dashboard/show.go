package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/ava-labs/transfer-dashboard/pkg/render"
	"github.com/ava-labs/transfer-dashboard/pkg/utils"
	"github.com/ava-labs/transfer-dashboard/pkg/views"
)

func show(c *cli.Context) error {
	cfg, err := buildShowConfig(c)
	if err != nil {
		return fmt.Errorf("failed to build config: %w", err)
	}

	sugar, err := utils.NewSugaredLogger(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	defs, err := selectDefinitions(views.Definitions(cfg.Location, nil), cfg.View)
	if err != nil {
		return err
	}
	board, err := newBoard(cfg.SourceConfig, sugar, nil, defs...)
	if err != nil {
		return err
	}

	refreshErr := board.RefreshAll(c.Context)

	r := render.New(cfg.Location)
	for _, snap := range board.Snapshots() {
		fmt.Fprintln(c.App.Writer, r.Snapshot(snap))
	}

	if refreshErr != nil {
		return fmt.Errorf("failed to refresh views: %w", refreshErr)
	}
	return nil
}

// selectDefinitions narrows defs to the named view. An empty name keeps every view.
func selectDefinitions(defs []views.Definition, name string) ([]views.Definition, error) {
	if name == "" {
		return defs, nil
	}
	kind, err := views.ParseKind(name)
	if err != nil {
		return nil, err
	}
	for _, d := range defs {
		if d.Kind == kind {
			return []views.Definition{d}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q has no definition", views.ErrUnknownView, name)
}
