// Package export writes a tenant's extracted next steps and feature
// requests to an XLSX workbook.
package export

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/thread-intel/internal/model"
)

// Sheet names.
const (
	SheetNextSteps       = "Next Steps"
	SheetFeatureRequests = "Feature Requests"
)

const dateLayout = "2006-01-02"

var nextStepColumns = []string{
	"Step ID",
	"Thread ID",
	"Description",
	"Owner",
	"Due Date",
	"Status",
}

var featureRequestColumns = []string{
	"Feature Request ID",
	"Thread ID",
	"Title",
	"Customer Description",
	"Use Case",
	"Urgency",
	"Urgency Signals",
	"Customer Impact",
	"Status",
}

// Source lists a tenant's extracted items. An empty thread id lists the
// whole tenant.
type Source interface {
	ListNextSteps(ctx context.Context, tenantID, threadID string) ([]model.NextStep, error)
	ListFeatureRequests(ctx context.Context, tenantID, threadID string) ([]model.FeatureRequest, error)
}

// Counts reports how many rows each sheet received.
type Counts struct {
	NextSteps       int `json:"next_steps"`
	FeatureRequests int `json:"feature_requests"`
}

// Workbook builds the workbook for tenantID.
func Workbook(ctx context.Context, src Source, tenantID string) (*xlsx.File, Counts, error) {
	var counts Counts
	steps, err := src.ListNextSteps(ctx, tenantID, "")
	if err != nil {
		return nil, counts, eris.Wrap(err, "export: list next steps")
	}
	requests, err := src.ListFeatureRequests(ctx, tenantID, "")
	if err != nil {
		return nil, counts, eris.Wrap(err, "export: list feature requests")
	}

	f := xlsx.NewFile()
	rows := make([][]string, len(steps))
	for i, s := range steps {
		rows[i] = nextStepRow(s)
	}
	if err := addSheet(f, SheetNextSteps, nextStepColumns, rows); err != nil {
		return nil, counts, err
	}

	rows = make([][]string, len(requests))
	for i, fr := range requests {
		rows[i] = featureRequestRow(fr)
	}
	if err := addSheet(f, SheetFeatureRequests, featureRequestColumns, rows); err != nil {
		return nil, counts, err
	}

	counts.NextSteps = len(steps)
	counts.FeatureRequests = len(requests)
	return f, counts, nil
}

// WriteFile builds the workbook and saves it to path.
func WriteFile(ctx context.Context, src Source, tenantID, path string) (Counts, error) {
	f, counts, err := Workbook(ctx, src, tenantID)
	if err != nil {
		return counts, err
	}
	if err := f.Save(path); err != nil {
		return counts, eris.Wrapf(err, "export: save %s", path)
	}
	return counts, nil
}

func addSheet(f *xlsx.File, name string, header []string, rows [][]string) error {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrapf(err, "export: add sheet %s", name)
	}
	addRow(sheet, header)
	for _, r := range rows {
		addRow(sheet, r)
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, c := range cells {
		row.AddCell().SetString(c)
	}
}

func nextStepRow(s model.NextStep) []string {
	owner, due := "", ""
	if s.Owner != nil {
		owner = *s.Owner
	}
	if s.DueDate != nil {
		due = s.DueDate.Format(dateLayout)
	}
	return []string{
		s.ID,
		s.ThreadID,
		s.Description,
		owner,
		due,
		s.Status,
	}
}

func featureRequestRow(fr model.FeatureRequest) []string {
	return []string{
		fr.ID,
		fr.ThreadID,
		fr.Title,
		fr.CustomerDescription,
		fr.UseCase,
		string(fr.Urgency),
		fr.UrgencySignals,
		fr.CustomerImpact,
		fr.Status,
	}
}
