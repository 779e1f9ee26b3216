package query

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/dtnitsch/school-kb/internal/common"
	"github.com/dtnitsch/school-kb/models"
	"github.com/dtnitsch/school-kb/pkg/knowledge"
	"github.com/urfave/cli/v2"
)

// Output is what query prints.
type Output struct {
	Source        string                  `yaml:"source"`
	Counts        map[models.Language]int `yaml:"counts"`
	MalformedRows int                     `yaml:"malformed_rows,omitempty"`
	Question      string                  `yaml:"question"`
	Cutoff        float64                 `yaml:"cutoff"`
	Match         *Match                  `yaml:"match"`
}

type Match struct {
	Question   string  `yaml:"question"`
	Answer     string  `yaml:"answer"`
	Similarity float64 `yaml:"similarity"`
}

func QueryAction(c *cli.Context) error {
	source := c.String("csv-url")
	if source == "" {
		return cli.Exit("Error: --csv-url is required", 2)
	}
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return cli.Exit("Error: a question argument is required", 2)
	}
	cutoff := c.Float64("cutoff")
	if err := models.ValidateCutoff(cutoff); err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 2)
	}

	client := &http.Client{Timeout: models.DefaultSourceTimeout}
	if err := Run(c.Context, os.Stdout, client, source, question, cutoff); err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	return nil
}

// Run loads source and writes the best match for question to w.
func Run(ctx context.Context, w io.Writer, client *http.Client, source, question string, cutoff float64) error {
	ds, err := knowledge.Load(ctx, client, source)
	if err != nil {
		return err
	}

	out := Output{
		Source:        knowledge.CleanSource(source),
		Counts:        make(map[models.Language]int, len(models.Languages)),
		MalformedRows: ds.MalformedRows,
		Question:      question,
		Cutoff:        cutoff,
	}
	for _, lang := range models.Languages {
		out.Counts[lang] = ds.Count(lang)
	}
	if best, ok := knowledge.Match(question, knowledge.Candidates(ds.Entries), cutoff); ok {
		out.Match = &Match{
			Question:   best.Question,
			Answer:     best.Answer,
			Similarity: knowledge.Similarity(best.Question, question),
		}
	}
	return common.PrintYAML(w, out)
}
