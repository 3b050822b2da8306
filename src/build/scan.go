package build

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// minLiteralLen keeps placeholder credentials from matching everywhere.
const minLiteralLen = 4

// Leak is a secret found in a rendered build context.
type Leak struct {
	File string
	Line int
	Rule string
}

func (l Leak) String() string {
	return fmt.Sprintf("%s:%d (%s)", l.File, l.Line, l.Rule)
}

// Scanner checks rendered build contexts for secrets before they are handed
// to the container engine or written to a layout directory.
type Scanner struct {
	detector *detect.Detector
	literals []string
}

// NewScanner returns a Scanner using the gitleaks default rules. Any
// literals given, typically the git password, are also searched for
// verbatim.
func NewScanner(literals ...string) (*Scanner, error) {
	d, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("loading leak detection rules: %w", err)
	}
	return newScanner(d, literals), nil
}

func newScanner(d *detect.Detector, literals []string) *Scanner {
	s := &Scanner{detector: d}
	for _, lit := range literals {
		if len(strings.TrimSpace(lit)) >= minLiteralLen {
			s.literals = append(s.literals, lit)
		}
	}
	return s
}

// ScanDir scans every regular file below dir. Paths in the returned leaks
// are relative to dir.
func (s *Scanner) ScanDir(dir string) ([]Leak, error) {
	var leaks []Leak
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, path)
		leaks = append(leaks, s.scan(filepath.ToSlash(rel), data)...)
		return nil
	})
	return leaks, err
}

func (s *Scanner) scan(file string, data []byte) []Leak {
	var leaks []Leak
	if s.detector != nil {
		for _, f := range s.detector.DetectBytes(data) {
			leaks = append(leaks, Leak{File: file, Line: f.StartLine + 1, Rule: f.RuleID})
		}
	}
	for _, lit := range s.literals {
		for i, line := range strings.Split(string(data), "\n") {
			if strings.Contains(line, lit) {
				leaks = append(leaks, Leak{File: file, Line: i + 1, Rule: "credential-literal"})
			}
		}
	}
	return leaks
}
