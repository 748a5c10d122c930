// Package resample resamples a dense connectivity matrix from one pair of
// brainordinate spaces to another, one axis at a time.
//
// Each template structure along an axis is produced by one of three
// strategies chosen before any data is read: passed through unchanged,
// resampled between registered spheres, or resampled through a volume
// transform. The two-pass engine resamples the columns first, keeping the
// whole intermediate matrix in memory, and then the rows.
package resample

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/mat"

	"dconnresample/internal/models"
)

// Matrix is a dense matrix with the spaces indexing its rows and columns.
type Matrix struct {
	Data *mat.Dense
	Rows *models.Space
	Cols *models.Space
}

// NewMatrix checks that the spaces match the matrix dimensions.
func NewMatrix(data *mat.Dense, rows, cols *models.Space) (*Matrix, error) {
	r, c := data.Dims()
	if r != rows.Len() || c != cols.Len() {
		return nil, fmt.Errorf("matrix is %dx%d but the row and column spaces have %d and %d elements", r, c, rows.Len(), cols.Len())
	}
	return &Matrix{Data: data, Rows: rows, Cols: cols}, nil
}

// Result is the resampled matrix along with per-structure statistics for
// both passes.
type Result struct {
	*Matrix

	// ColumnStats and RowStats report each template structure in axis order
	ColumnStats []StructureStats
	RowStats    []StructureStats
}

// ResampleBothAxes resamples the columns and then the rows of m.
//
// Both axes are validated before any data is read and all configuration
// errors of both axes are returned together. The column pass builds an
// intermediate matrix with resampled columns and the original rows; the row
// pass then resamples the rows of that intermediate. Any failure aborts the
// whole operation and no partial matrix is returned.
//
// Parameters:
//   - m: the source matrix and its row and column spaces
//   - rowTemplate, colTemplate: the spaces the rows and columns are resampled to
//   - rowConfigs, colConfigs: per-structure resampling inputs for each axis
//   - opts: the shared options
//
// Returns:
//   - The resampled matrix with per-structure statistics, or an error
func ResampleBothAxes(m *Matrix, rowTemplate, colTemplate *models.Space, rowConfigs, colConfigs Configs, opts Options) (*Result, error) {
	log := opts.logger()
	nRows, nCols := m.Data.Dims()
	if nRows != m.Rows.Len() || nCols != m.Cols.Len() {
		return nil, fmt.Errorf("matrix is %dx%d but the row and column spaces have %d and %d elements", nRows, nCols, m.Rows.Len(), m.Cols.Len())
	}
	if rowTemplate.Len() == 0 || colTemplate.Len() == 0 {
		return nil, fmt.Errorf("template spaces must not be empty")
	}

	colPlans, colErrs := planAxis(m.Cols, colTemplate, Column, colConfigs, opts)
	rowPlans, rowErrs := planAxis(m.Rows, rowTemplate, Row, rowConfigs, opts)
	if errs := append(colErrs, rowErrs...); len(errs) > 0 {
		return nil, errs
	}

	// progress counts structures over both passes plus one checkpoint per pass
	total := len(colPlans) + len(rowPlans) + 2
	passDone := func(completed int, axis Axis) {
		if opts.Progress != nil {
			opts.Progress(completed, total, fmt.Sprintf("%s pass done", axis))
		}
	}
	passOpts := func(done int) Options {
		o := opts
		if opts.Progress != nil {
			o.Progress = func(completed, _ int, message string) {
				opts.Progress(done+completed, total, message)
			}
		}
		return o
	}

	start := time.Now()
	log.Infof("Resampling %d columns to %d along column", nCols, colTemplate.Len())
	colAxis, err := executeAxis(View(m.Data, Column), colTemplate, Column, colPlans, passOpts(0))
	if err != nil {
		return nil, err
	}
	intermediate := colAxis.Matrix()
	colAxis.Data = nil
	passDone(len(colPlans)+1, Column)
	log.Infof("Column pass done in %s, intermediate matrix is %dx%d (%s)",
		time.Since(start), nRows, colTemplate.Len(), humanize.Bytes(uint64(8*nRows*colTemplate.Len())))

	start = time.Now()
	log.Infof("Resampling %d rows to %d along row", nRows, rowTemplate.Len())
	rowAxis, err := executeAxis(View(intermediate, Row), rowTemplate, Row, rowPlans, passOpts(len(colPlans)+1))
	if err != nil {
		return nil, err
	}
	final := rowAxis.Matrix()
	passDone(total, Row)
	log.Infof("Row pass done in %s, result is %dx%d (%s)",
		time.Since(start), rowTemplate.Len(), colTemplate.Len(), humanize.Bytes(uint64(8*rowTemplate.Len()*colTemplate.Len())))

	return &Result{
		Matrix:      &Matrix{Data: final, Rows: rowTemplate, Cols: colTemplate},
		ColumnStats: colAxis.Structures,
		RowStats:    rowAxis.Structures,
	}, nil
}
