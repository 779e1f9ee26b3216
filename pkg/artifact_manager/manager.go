package artifact_manager

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"

	"github.com/dtnitsch/school-kb/models"
	"github.com/dtnitsch/school-kb/pkg/manifest"
	"github.com/dtnitsch/school-kb/pkg/storage"
)

// Artifact file names inside the output directory.
const (
	ContextFile       = "context_en.md"
	FAQCandidatesFile = "faq_candidates.csv"
	RefinedFile       = "faq_en_es.csv"
	ManifestFile      = "sources.yaml"
)

// Manager writes crawl artifacts into one output directory. Each write
// replaces the previous file of the same name.
type Manager struct {
	baseDir string
	storage *storage.Storage
}

// NewManager creates a Manager rooted at baseDir. The directory is created on
// first write.
func NewManager(baseDir string) *Manager {
	if baseDir == "" {
		baseDir = models.DefaultOutputDir
	}
	return &Manager{baseDir: storage.ExpandHome(baseDir), storage: &storage.Storage{}}
}

func (m *Manager) BaseDir() string {
	return m.baseDir
}

// Path returns the full path of an artifact.
func (m *Manager) Path(name string) string {
	return filepath.Join(m.baseDir, name)
}

// WriteContext writes the raw context, one block per line.
func (m *Manager) WriteContext(rawContext string) (string, error) {
	return m.save(ContextFile, []byte(rawContext))
}

// WriteFAQCandidates writes the heuristic pairs with their source page. The
// header is always written, even with no pairs.
func (m *Manager) WriteFAQCandidates(pairs []models.QAPair) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"question", "answer", "source_url"}); err != nil {
		return "", err
	}
	for _, p := range pairs {
		if err := w.Write([]string{p.Question, p.Answer, p.SourceURL}); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to encode FAQ candidates: %w", err)
	}
	return m.save(FAQCandidatesFile, buf.Bytes())
}

// WriteRefined writes already validated bilingual CSV.
func (m *Manager) WriteRefined(data []byte) (string, error) {
	return m.save(RefinedFile, data)
}

// RemoveRefined deletes a refined CSV left by an earlier run so it cannot be
// mistaken for output of this one.
func (m *Manager) RemoveRefined() (bool, error) {
	removed, err := m.storage.RemoveFile(m.Path(RefinedFile))
	if err != nil {
		return false, fmt.Errorf("failed to remove %s: %w", RefinedFile, err)
	}
	return removed, nil
}

func (m *Manager) WriteManifest(cm manifest.CrawlManifest) (string, error) {
	data, err := manifest.Marshal(cm)
	if err != nil {
		return "", err
	}
	return m.save(ManifestFile, data)
}

func (m *Manager) save(name string, data []byte) (string, error) {
	path := m.Path(name)
	if err := m.storage.SaveFile(path, data); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	return path, nil
}
