package bulkreturns

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/errors"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/returns"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/values"
)

const readmeName = "readme.txt"

const readmeText = `Bulk water abstraction return templates

Each CSV in this archive covers one reporting frequency for the current
return cycle. Enter your abstracted quantities against each period row in
the column for your return, then upload the completed file.

Do not edit the shaded rows, the period labels, or the unique return
reference at the bottom of each column.
`

// Options controls template packaging for one generation run
type Options struct {
	CompanyName string
	// HelpFilePath points at an optional how-to asset bundled alongside the
	// templates. A missing file is skipped with a warning.
	HelpFilePath string
}

// Service generates bulk return template archives and parses completed
// uploads. One template per reporting frequency is produced from a mixed
// batch of due returns; each return only appends to its own frequency's
// grid, so processing order within a frequency is the column order.
type Service struct {
	logger *zap.Logger
}

// NewService creates a new bulk returns service
func NewService(logger *zap.Logger) *Service {
	return &Service{logger: logger}
}

// GenerateTemplates builds one grid per frequency from the due returns and
// packages every non-empty grid plus the readme into the archive. The
// archive is finalized even when no grid has data; the readme always ships.
func (s *Service) GenerateTemplates(ctx context.Context, cycle ReturnCycle, dueReturns []*returns.WaterReturn, opts Options, builder ArchiveBuilder) error {
	templates := map[string]*Template{}
	order := []string{values.FrequencyDay, values.FrequencyWeek, values.FrequencyMonth}
	for _, freq := range order {
		templates[freq] = NewTemplate(cycle, values.MustNewFrequency(freq))
	}

	for _, wr := range dueReturns {
		if err := ctx.Err(); err != nil {
			return err
		}
		template, ok := templates[wr.Frequency.String()]
		if !ok {
			return errors.NewBusinessError("UNSUPPORTED_FREQUENCY",
				"return frequency has no template grid").
				WithDetails(map[string]interface{}{"returnId": wr.ReturnID})
		}
		if err := template.AddReturn(wr); err != nil {
			return err
		}
	}

	for _, freq := range order {
		template := templates[freq]
		if template.IsEmpty() {
			continue
		}
		content, err := template.CSV()
		if err != nil {
			return err
		}
		name := template.Filename(opts.CompanyName)
		if err := builder.Append(content, name); err != nil {
			return errors.Wrap(err, "appending template to archive")
		}
		s.logger.Info("template added to archive",
			zap.String("name", name),
			zap.Int("returns", template.Columns()))
	}

	if err := builder.Append([]byte(readmeText), readmeName); err != nil {
		return errors.Wrap(err, "appending readme to archive")
	}
	if opts.HelpFilePath != "" {
		if err := builder.AppendFile(opts.HelpFilePath, "how-to-complete-your-return.pdf"); err != nil {
			return errors.Wrap(err, "appending help file to archive")
		}
	}

	if err := builder.Finalize(); err != nil {
		return errors.Wrap(err, "finalizing archive")
	}
	return nil
}

// ApplyUpload parses a completed template and writes each column's
// quantities onto the return its unique reference resolves to. The parsed
// period boundaries must land inside each return's own reporting window or
// the aggregate rejects them as misaligned.
func (s *Service) ApplyUpload(ctx context.Context, r io.Reader, loader ReturnLoader) ([]*returns.WaterReturn, error) {
	upload, err := ParseTemplate(r)
	if err != nil {
		return nil, err
	}

	var out []*returns.WaterReturn
	for _, ur := range upload {
		wr, err := loader.GetReturn(ctx, ur.ReturnID)
		if err != nil {
			return nil, errors.Wrap(err, "loading return for upload")
		}
		wr.SetNilReturn(ur.IsNil)
		if !ur.IsNil {
			if err := wr.SetLines(trimEmptyEdges(ur.Lines, wr)); err != nil {
				return nil, err
			}
		}
		out = append(out, wr)
	}
	return out, nil
}

// trimEmptyEdges drops empty template rows outside the return's own
// reporting window; the template covers the whole cycle but a return may
// span less. Rows outside the window that carry a quantity are kept so the
// aggregate rejects them explicitly instead of the data vanishing.
func trimEmptyEdges(lines []returns.LineInput, wr *returns.WaterReturn) []returns.LineInput {
	start := wr.StartDate.Format("2006-01-02")
	end := wr.EndDate.Format("2006-01-02")
	var out []returns.LineInput
	for _, l := range lines {
		if l.Quantity == nil && (l.StartDate < start || l.EndDate > end) {
			continue
		}
		out = append(out, l)
	}
	return out
}
