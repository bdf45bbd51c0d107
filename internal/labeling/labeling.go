// Package labeling stores solved CAPTCHAs as PNG files named after their
// label, building a training set as a side effect of normal use.
package labeling

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/Sparsh-ui/captcha-solver/internal/solver"
)

var illegal = strings.NewReplacer(
	"<", "_", ">", "_", ":", "_", `"`, "_", "/", "_",
	`\`, "_", "|", "_", "?", "_", "*", "_",
)

// SanitizeFilename replaces characters Windows refuses in file names.
func SanitizeFilename(name string) string {
	return strings.TrimSpace(illegal.Replace(name))
}

type Saver struct {
	dir string
	now func() time.Time
}

// NewSaver creates dir if needed.
func NewSaver(dir string) (*Saver, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "couldn't create %s", dir)
	}
	return &Saver{dir: dir, now: time.Now}, nil
}

// SaveLabeled stores a capture whose label is known to be right.
func (s *Saver) SaveLabeled(data []byte, label string) (string, error) {
	label = SanitizeFilename(strings.ToUpper(label))
	if label == "" {
		return "", errors.New("empty label")
	}
	return s.save(data, fmt.Sprintf("%s_%d", label, s.now().UnixMilli()))
}

// SavePrediction stores a capture whose predicted label was confirmed by
// navigation. The file is named after stashedAt, the moment the capture was
// solved, not the moment it is saved.
func (s *Saver) SavePrediction(data []byte, prediction string, stashedAt time.Time) (string, error) {
	prediction = SanitizeFilename(strings.ToUpper(prediction))
	if stashedAt.IsZero() {
		stashedAt = s.now()
	}
	return s.save(data, fmt.Sprintf("PRED_%s_%d", prediction, stashedAt.UnixMilli()))
}

// SaveUnlabeled stores a capture for manual labeling later.
func (s *Saver) SaveUnlabeled(data []byte) (string, error) {
	return s.save(data, fmt.Sprintf("captcha_%d", s.now().UnixMilli()))
}

func (s *Saver) save(data []byte, base string) (string, error) {
	img, err := solver.DecodeImage(data)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, base+".png")
	for i := 1; exists(path); i++ {
		path = filepath.Join(s.dir, fmt.Sprintf("%s (%d).png", base, i))
	}
	if err := imaging.Save(img, path); err != nil {
		return "", errors.Wrap(err, "couldn't save capture")
	}
	log.Info("[Labeling] Saved: ", filepath.Base(path))
	return path, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
