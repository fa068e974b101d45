// Package summary derives the per-file and per-code views from parsed records.
package summary

import (
	"sort"

	"github.com/starford/triage/internal/models"
)

type codeAcc struct {
	key   string
	count int
	files map[string]struct{}
}

// Build aggregates records into a Summary. Both views are sorted by count,
// descending, with ties kept in first-seen order.
func Build(records []models.Record) models.Summary {
	var (
		fileOrder []*models.FileCount
		fileIdx   = make(map[string]*models.FileCount)
		codeOrder []*codeAcc
		codeIdx   = make(map[string]*codeAcc)
	)

	s := models.Summary{TotalEntries: len(records)}

	for i := range records {
		r := &records[i]
		switch r.Kind {
		case models.KindError:
			s.TotalErrors++
		case models.KindWarning:
			s.TotalWarnings++
		}

		file := r.File()
		if file != "" {
			fa, ok := fileIdx[file]
			if !ok {
				fa = &models.FileCount{File: file}
				fileIdx[file] = fa
				fileOrder = append(fileOrder, fa)
			}
			fa.Total++
			if r.Kind == models.KindError {
				fa.Errors++
			} else {
				fa.Warnings++
			}
		}

		key := r.CodeKey()
		ca, ok := codeIdx[key]
		if !ok {
			ca = &codeAcc{key: key, files: make(map[string]struct{})}
			codeIdx[key] = ca
			codeOrder = append(codeOrder, ca)
		}
		ca.count++
		if file != "" {
			ca.files[file] = struct{}{}
		}
	}

	s.FilesByCount = make([]models.FileCount, len(fileOrder))
	for i, fa := range fileOrder {
		s.FilesByCount[i] = *fa
	}
	sort.SliceStable(s.FilesByCount, func(i, j int) bool {
		return s.FilesByCount[i].Total > s.FilesByCount[j].Total
	})

	s.CodesByCount = make([]models.CodeCount, len(codeOrder))
	for i, ca := range codeOrder {
		files := make([]string, 0, len(ca.files))
		for f := range ca.files {
			files = append(files, f)
		}
		sort.Strings(files)
		s.CodesByCount[i] = models.CodeCount{Code: ca.key, Count: ca.count, AffectedFiles: files}
	}
	sort.SliceStable(s.CodesByCount, func(i, j int) bool {
		return s.CodesByCount[i].Count > s.CodesByCount[j].Count
	})

	return s
}
