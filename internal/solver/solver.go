// Package solver runs the whole recognition pipeline: decode, grid removal,
// segmentation and per-glyph classification.
package solver

import (
	"context"
	"image"
	"io"
	"time"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/Sparsh-ui/captcha-solver/datastructures"
	"github.com/Sparsh-ui/captcha-solver/internal/classifier"
	"github.com/Sparsh-ui/captcha-solver/internal/mask"
	"github.com/Sparsh-ui/captcha-solver/internal/model"
	"github.com/Sparsh-ui/captcha-solver/internal/segment"
)

// LabelLength is the number of glyphs in every CAPTCHA.
const LabelLength = 6

var (
	ErrModelUnavailable = errors.New("model unavailable")
	ErrImageDecode      = errors.New("image decode failure")
	ErrNoCharacters     = errors.New("no characters found")
)

// Error carries one of the Err* kinds together with its cause. errors.Is
// matches the kind, errors.As reaches the cause.
type Error struct {
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == e.Kind }

type Result struct {
	Label       string
	Score       float32
	Predictions []classifier.Prediction
	ModelInfo   datastructures.ModelInfo
	Elapsed     time.Duration
}

// Solver is safe for concurrent use; the model is the only shared state.
type Solver struct {
	store *model.Store
}

func New(store *model.Store) *Solver {
	return &Solver{store: store}
}

// Ready reports whether the model has finished loading successfully.
func (s *Solver) Ready() bool {
	return s.store.Ready()
}

func (s *Solver) model(ctx context.Context) (*model.Model, error) {
	if !s.store.Ready() {
		log.Debug("[Solver] Waiting for model to load...")
	}
	m, err := s.store.Wait(ctx)
	if err == nil {
		return m, nil
	}
	if ctx.Err() != nil {
		return nil, errors.Wrap(err, "waiting for model")
	}
	return nil, &Error{Kind: ErrModelUnavailable, Err: err}
}

// Solve reads an encoded image from r and returns its label.
func (s *Solver) Solve(ctx context.Context, r io.Reader) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &Error{Kind: ErrImageDecode, Err: err}
	}
	return s.SolveBytes(ctx, data)
}

// SolveBytes accepts raw encoded images, data URLs and bare base64.
func (s *Solver) SolveBytes(ctx context.Context, data []byte) (*Result, error) {
	m, err := s.model(ctx)
	if err != nil {
		return nil, err
	}
	img, err := DecodeImage(data)
	if err != nil {
		return nil, &Error{Kind: ErrImageDecode, Err: err}
	}
	return s.run(m, img)
}

// SolveImage labels an already decoded image at its natural size.
func (s *Solver) SolveImage(ctx context.Context, img image.Image) (*Result, error) {
	m, err := s.model(ctx)
	if err != nil {
		return nil, err
	}
	return s.run(m, imaging.Clone(img))
}

// Tiles returns the normalized glyph tiles of img without classifying them.
func Tiles(img image.Image) [][]float32 {
	return segment.Segment(mask.RemoveGrid(imaging.Clone(img)), LabelLength)
}

func (s *Solver) run(m *model.Model, img *image.NRGBA) (*Result, error) {
	start := time.Now()
	w, h := img.Bounds().Dx(), img.Bounds().Dy()

	binary := mask.RemoveGrid(img)
	log.Debugf("[Solver] Image: %dx%d, grid removed", w, h)

	tiles := segment.Segment(binary, LabelLength)
	if len(tiles) == 0 {
		return nil, &Error{Kind: ErrNoCharacters}
	}
	log.Debugf("[Solver] Segmented %d characters", len(tiles))

	c := classifier.New(m)
	res := &Result{
		Predictions: make([]classifier.Prediction, len(tiles)),
		ModelInfo:   m.Info,
	}
	label := make([]byte, len(tiles))
	for i, tile := range tiles {
		p := c.Classify(tile)
		res.Predictions[i] = p
		label[i] = p.Char
		res.Score += p.Score
	}
	res.Label = string(label)
	res.Score /= float32(len(tiles))
	res.Elapsed = time.Since(start)

	log.Debugf("[Solver] Solved in %s: %s", res.Elapsed, res.Label)
	return res, nil
}
