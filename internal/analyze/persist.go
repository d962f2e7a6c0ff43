package analyze

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/thread-intel/internal/model"
	"github.com/sells-group/thread-intel/internal/store"
)

const dueDateLayout = "2006-01-02"

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// parseDueDate accepts YYYY-MM-DD; anything else is dropped with a warning.
func parseDueDate(raw *string, log *zap.Logger) *time.Time {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil
	}
	t, err := time.Parse(dueDateLayout, strings.TrimSpace(*raw))
	if err != nil {
		log.Warn("analyze: invalid due_date, skipping", zap.String("due_date", *raw))
		return nil
	}
	return &t
}

func parseOwner(raw *string) *string {
	if raw == nil {
		return nil
	}
	owner := strings.TrimSpace(*raw)
	if owner == "" {
		return nil
	}
	return &owner
}

// existingKeys returns the normalized values already stored for a thread.
// A failed lookup is treated as "nothing stored".
func existingKeys[T any](items []T, err error, key func(T) string, log *zap.Logger, what string) map[string]bool {
	seen := make(map[string]bool, len(items))
	if err != nil {
		log.Warn("analyze: duplicate check failed, assuming none exist", zap.String("kind", what), zap.Error(err))
		return seen
	}
	for _, it := range items {
		seen[normalizeKey(key(it))] = true
	}
	return seen
}

// saveNextSteps inserts the steps not already present on the thread and
// returns the inserted ids.
func (e *Engine) saveNextSteps(ctx context.Context, tenantID, threadID string, items []nextStepItem, log *zap.Logger) ([]string, error) {
	if len(items) == 0 {
		return nil, nil
	}
	stored, lerr := e.store.ListNextSteps(ctx, tenantID, threadID)
	seen := existingKeys(stored, lerr, func(s model.NextStep) string { return s.Description }, log, "next_step")

	var inserted []string
	skipped := 0
	for _, it := range items {
		key := normalizeKey(it.Text)
		if key == "" {
			continue
		}
		if seen[key] {
			skipped++
			continue
		}
		step := model.NextStep{
			ID:          e.newID(),
			ThreadID:    threadID,
			TenantID:    tenantID,
			Description: it.Text,
			Owner:       parseOwner(it.Owner),
			DueDate:     parseDueDate(it.DueDate, log),
			Status:      model.NextStepStatusPending,
		}
		if err := e.store.InsertNextStep(ctx, step); err != nil {
			return inserted, eris.Wrap(err, "analyze: insert next step")
		}
		seen[key] = true
		inserted = append(inserted, step.ID)
	}
	log.Info("analyze: next steps saved", zap.Int("inserted", len(inserted)), zap.Int("duplicates", skipped))
	return inserted, nil
}

func (e *Engine) saveFeatureRequests(ctx context.Context, tenantID, threadID string, items []featureItem, log *zap.Logger) error {
	if len(items) == 0 {
		return nil
	}
	stored, lerr := e.store.ListFeatureRequests(ctx, tenantID, threadID)
	seen := existingKeys(stored, lerr, func(f model.FeatureRequest) string { return f.Title }, log, "feature_request")

	inserted, skipped := 0, 0
	for _, it := range items {
		key := normalizeKey(it.Title)
		if key == "" {
			continue
		}
		if seen[key] {
			skipped++
			continue
		}
		urgency := model.Urgency(it.Urgency)
		if !urgency.Valid() {
			log.Warn("analyze: invalid urgency, defaulting to Low", zap.String("urgency", it.Urgency))
			urgency = model.UrgencyLow
		}
		fr := model.FeatureRequest{
			ID:                  e.newID(),
			ThreadID:            threadID,
			TenantID:            tenantID,
			Title:               it.Title,
			CustomerDescription: it.CustomerDescription,
			UseCase:             it.UseCase,
			Urgency:             urgency,
			UrgencySignals:      it.UrgencySignals,
			CustomerImpact:      it.CustomerImpact,
			Status:              model.FeatureRequestStatusNew,
		}
		if err := e.store.InsertFeatureRequest(ctx, fr); err != nil {
			return eris.Wrap(err, "analyze: insert feature request")
		}
		seen[key] = true
		inserted++
	}
	log.Info("analyze: feature requests saved", zap.Int("inserted", inserted), zap.Int("duplicates", skipped))
	return nil
}

// assign links every inserted step to every distinct participant. Failures
// are recorded and never stop the analysis.
func (e *Engine) assign(ctx context.Context, stepIDs []string, participants []model.Participant, addErr func(string), log *zap.Logger) {
	if len(stepIDs) == 0 || len(participants) == 0 {
		return
	}
	customers := make([]string, 0, len(participants))
	seen := make(map[string]bool, len(participants))
	for _, p := range participants {
		if p.CustomerID != "" && !seen[p.CustomerID] {
			seen[p.CustomerID] = true
			customers = append(customers, p.CustomerID)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for _, stepID := range stepIDs {
		for _, customerID := range customers {
			g.Go(func() error {
				err := e.store.InsertAssignment(gctx, model.NextStepAssignment{NextStepID: stepID, CustomerID: customerID})
				if err != nil && !store.IsDuplicate(err) {
					log.Warn("analyze: assignment failed", zap.String("next_step_id", stepID), zap.String("customer_id", customerID), zap.Error(err))
					addErr(fmt.Sprintf("assign next step %s to %s: %v", stepID, customerID, err))
				}
				return nil
			})
		}
	}
	_ = g.Wait()
}

// refreshHealth recalculates the health score of every company linked to
// the thread. Failures are recorded and never fail the analysis.
func (e *Engine) refreshHealth(ctx context.Context, tenantID, threadID string, addErr func(string), log *zap.Logger) {
	companies, err := e.store.ListLinkedCompanies(ctx, tenantID, threadID)
	if err != nil {
		log.Warn("analyze: list linked companies failed", zap.Error(err))
		addErr(fmt.Sprintf("health score: list linked companies: %v", err))
		return
	}
	if len(companies) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for _, companyID := range companies {
		g.Go(func() error {
			if err := e.store.RecalculateHealthScore(gctx, tenantID, companyID); err != nil {
				log.Warn("analyze: health score update failed", zap.String("company_id", companyID), zap.Error(err))
				addErr(fmt.Sprintf("health score %s: %v", companyID, err))
			}
			return nil
		})
	}
	_ = g.Wait()
}
