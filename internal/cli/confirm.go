package cli

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/vadiminshakov/hlpilot/internal/domain"
)

// Confirmer asks on the terminal before a decision is executed.
type Confirmer struct{}

func NewConfirmer() *Confirmer { return &Confirmer{} }

func (c *Confirmer) Confirm(ctx context.Context, d domain.TradingDecision) (bool, error) {
	fmt.Println(RenderDecision(d))

	var ok bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Execute this decision?").
				Affirmative("Execute").
				Negative("Skip").
				Value(&ok),
		),
	).RunWithContext(ctx)
	if err != nil {
		return false, err
	}
	return ok, nil
}

func confirmCloseAll() (bool, error) {
	var ok bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Close ALL open positions at market?").
				Affirmative("Close all").
				Negative("Cancel").
				Value(&ok),
		),
	).Run()
	return ok, err
}
