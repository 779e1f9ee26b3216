package refiner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dtnitsch/school-kb/models"
	"github.com/dtnitsch/school-kb/pkg/knowledge"
	"github.com/dtnitsch/school-kb/pkg/llm"
)

// ErrRefinement means the completion failed or returned nothing usable as
// bilingual FAQ CSV.
var ErrRefinement = errors.New("refinement failed")

const systemPrompt = "You create bilingual FAQ CSV data for schools."

const instruction = `You are an assistant extracting bilingual FAQ pairs.
From the context below, create up to %d useful Q/A pairs for parents in English and Spanish.
Return CSV with header: question_en,answer_en,question_es,answer_es

CONTEXT:
%s
`

// Refined is validated, canonical bilingual CSV.
type Refined struct {
	CSV       []byte
	Rows      int
	Malformed int
}

type Refiner struct {
	completer llm.Completer
	maxRows   int
}

func New(c llm.Completer, maxRows int) *Refiner {
	if maxRows <= 0 {
		maxRows = models.DefaultRefineRows
	}
	return &Refiner{completer: c, maxRows: maxRows}
}

// Prompt returns the user prompt sent for rawContext.
func (r *Refiner) Prompt(rawContext string) string {
	return fmt.Sprintf(instruction, r.maxRows, rawContext)
}

// Refine asks the model for bilingual pairs and keeps only what parses as
// knowledge CSV. Rows without a complete English or Spanish pair are dropped.
func (r *Refiner) Refine(ctx context.Context, rawContext string) (*Refined, error) {
	if r.completer == nil {
		return nil, fmt.Errorf("%w: %w", ErrRefinement, llm.ErrNotConfigured)
	}
	reply, err := r.completer.Complete(ctx, systemPrompt, r.Prompt(rawContext))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRefinement, err)
	}

	ds, err := knowledge.ParseCSV(strings.NewReader(stripFences(reply)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRefinement, err)
	}
	if ds.Count(models.English) == 0 && ds.Count(models.Spanish) == 0 {
		return nil, fmt.Errorf("%w: response has no usable question/answer rows", ErrRefinement)
	}

	var buf bytes.Buffer
	rows, err := ds.WriteCSV(&buf, models.English, models.Spanish)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRefinement, err)
	}
	return &Refined{CSV: buf.Bytes(), Rows: rows, Malformed: ds.MalformedRows}, nil
}

// stripFences removes a surrounding markdown code fence (```csv ... ```).
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
