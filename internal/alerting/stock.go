package alerting

import (
	"context"
	"fmt"

	"fleet-alerts/internal/models"
)

// StockEvaluator reports active parts whose total quantity across locations is
// at or below their minimum threshold.
type StockEvaluator struct {
	parts PartSource
	stock StockSource
	clock Clock
}

func NewStockEvaluator(parts PartSource, stock StockSource, clock Clock) *StockEvaluator {
	return &StockEvaluator{parts: parts, stock: stock, clock: clock}
}

func (e *StockEvaluator) Type() models.AlertType {
	return models.AlertTypeStock
}

func (e *StockEvaluator) Evaluate(ctx context.Context) (Evaluation, error) {
	parts, err := e.parts.FindActive(ctx)
	if err != nil {
		return Evaluation{}, fmt.Errorf("load active parts: %w", err)
	}
	if len(parts) == 0 {
		return Evaluation{}, nil
	}

	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		ids = append(ids, p.ID)
	}

	entries, err := e.stock.FindByParts(ctx, ids)
	if err != nil {
		return Evaluation{}, fmt.Errorf("load stock entries: %w", err)
	}

	totals := make(map[int64]int, len(parts))
	for _, entry := range entries {
		totals[entry.PartID] += entry.Quantity
	}

	var findings []Finding
	for _, part := range parts {
		total := totals[part.ID]
		if total > part.MinimumThreshold {
			continue
		}
		f := Finding{
			ReferenceType: models.ReferencePartStock,
			ReferenceID:   part.ID,
			Label:         part.Label(),
			Title:         "Stock - " + part.Label(),
			Message:       stockMessage(part, total),
			Urgency:       total,
		}
		if e.clock != nil {
			f.OccursAt = e.clock()
		}
		findings = append(findings, f)
	}

	sortByUrgency(findings)
	return Evaluation{Findings: findings}, nil
}

func stockMessage(part *models.Part, total int) string {
	if total <= 0 {
		return fmt.Sprintf("RUPTURE DE STOCK: %s (seuil minimum %d)", part.Label(), part.MinimumThreshold)
	}
	return fmt.Sprintf("Stock bas: %s - %d en stock, seuil minimum %d", part.Label(), total, part.MinimumThreshold)
}
