package knowledge

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dtnitsch/school-kb/models"
	"golang.org/x/text/cases"
)

// ErrEmptySource means the CSV had no data rows after its header.
var ErrEmptySource = errors.New("knowledge source has no data rows")

// columnSynonyms lists, per language, the accepted header names for the
// question and answer columns in priority order. Names are compared after
// normalizeHeader.
var columnSynonyms = []struct {
	lang     models.Language
	question []string
	answer   []string
}{
	{
		lang:     models.English,
		question: []string{"question_en", "question", "q", "q_en"},
		answer:   []string{"answer_en", "answer", "a", "a_en"},
	},
	{
		lang:     models.Spanish,
		question: []string{"question_es", "pregunta", "pregunta_es", "q_es"},
		answer:   []string{"answer_es", "respuesta", "respuesta_es", "a_es"},
	},
	{
		lang:     models.Japanese,
		question: []string{"question_ja", "q_ja", "質問"},
		answer:   []string{"answer_ja", "a_ja", "回答"},
	},
}

// Row is one CSV data row, holding an entry for every language whose
// question and answer were both present.
type Row struct {
	Line    int
	Entries map[models.Language]models.KnowledgeEntry
}

// Dataset is a parsed knowledge CSV.
type Dataset struct {
	Header        []string // normalized
	Rows          []Row
	Entries       map[models.Language][]models.KnowledgeEntry
	MalformedRows int // rows padded, truncated or unreadable
}

// Count returns the number of entries for lang.
func (d *Dataset) Count(lang models.Language) int {
	return len(d.Entries[lang])
}

type columnSet struct {
	lang     models.Language
	question []int
	answer   []int
}

// ParseCSV reads a knowledge CSV with tolerant header resolution. Short rows
// are padded, long rows truncated, unreadable rows skipped; none of these
// fail the parse. A header with no data rows returns ErrEmptySource.
func ParseCSV(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: missing header", ErrEmptySource)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	ds := &Dataset{
		Header:  make([]string, len(header)),
		Entries: make(map[models.Language][]models.KnowledgeEntry),
	}
	for i, name := range header {
		ds.Header[i] = normalizeHeader(name)
	}
	columns := resolveColumns(ds.Header)

	dataRows := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				dataRows++
				ds.MalformedRows++
				continue
			}
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}
		dataRows++
		line, _ := reader.FieldPos(0)

		if len(record) != len(ds.Header) {
			ds.MalformedRows++
			record = fitRecord(record, len(ds.Header))
		}

		row := Row{Line: line, Entries: make(map[models.Language]models.KnowledgeEntry)}
		for _, cols := range columns {
			q := firstValue(record, cols.question)
			a := firstValue(record, cols.answer)
			if q == "" || a == "" {
				continue
			}
			entry := models.KnowledgeEntry{Question: q, Answer: a}
			row.Entries[cols.lang] = entry
			ds.Entries[cols.lang] = append(ds.Entries[cols.lang], entry)
		}
		ds.Rows = append(ds.Rows, row)
	}

	if dataRows == 0 {
		return nil, ErrEmptySource
	}
	return ds, nil
}

// normalizeHeader strips a BOM, trims, case-folds and turns spaces and
// hyphens into underscores: " Question EN " -> "question_en".
func normalizeHeader(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\ufeff", ""))
	name = cases.Fold().String(name)
	name = strings.Join(strings.Fields(name), "_")
	return strings.ReplaceAll(name, "-", "_")
}

func resolveColumns(header []string) []columnSet {
	sets := make([]columnSet, 0, len(columnSynonyms))
	for _, syn := range columnSynonyms {
		sets = append(sets, columnSet{
			lang:     syn.lang,
			question: indexesOf(header, syn.question),
			answer:   indexesOf(header, syn.answer),
		})
	}
	return sets
}

// indexesOf returns header positions matching names, in names order.
func indexesOf(header, names []string) []int {
	var idx []int
	for _, name := range names {
		for i, h := range header {
			if h == name {
				idx = append(idx, i)
			}
		}
	}
	return idx
}

func firstValue(record []string, idx []int) string {
	for _, i := range idx {
		if v := strings.TrimSpace(record[i]); v != "" {
			return v
		}
	}
	return ""
}

func fitRecord(record []string, n int) []string {
	if len(record) > n {
		return record[:n]
	}
	padded := make([]string, n)
	copy(padded, record)
	return padded
}

// WriteCSV writes rows holding at least one of langs as a CSV with a
// question_<lang>,answer_<lang> column pair per language.
func (d *Dataset) WriteCSV(w io.Writer, langs ...models.Language) (int, error) {
	if len(langs) == 0 {
		langs = models.Languages
	}
	cw := csv.NewWriter(w)

	header := make([]string, 0, 2*len(langs))
	for _, lang := range langs {
		header = append(header, "question_"+string(lang), "answer_"+string(lang))
	}
	if err := cw.Write(header); err != nil {
		return 0, err
	}

	written := 0
	for _, row := range d.Rows {
		record := make([]string, 0, len(header))
		present := false
		for _, lang := range langs {
			entry, ok := row.Entries[lang]
			present = present || ok
			record = append(record, entry.Question, entry.Answer)
		}
		if !present {
			continue
		}
		if err := cw.Write(record); err != nil {
			return written, err
		}
		written++
	}
	cw.Flush()
	return written, cw.Error()
}
