// captcha-solve labels CAPTCHA images from the command line, either with a
// local model or through a running captcha-api.
package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/Sparsh-ui/captcha-solver/datastructures"
	"github.com/Sparsh-ui/captcha-solver/internal/model"
	"github.com/Sparsh-ui/captcha-solver/internal/segment"
	"github.com/Sparsh-ui/captcha-solver/internal/solver"
)

func main() {
	modelLocation := flag.String("model", "models/captcha_model.json", "Path or http(s) URL of the model parameters")
	server := flag.String("server", "", "Solve through the captcha-api at this base URL instead of locally")
	dumpDir := flag.String("dump-tiles", "", "Write the segmented 28x28 tiles of every image into this dir")
	timeout := flag.Duration("timeout", 30*time.Second, "Give up on an image after this long")
	debug := flag.Bool("debug", false, "Log at debug level")
	flag.Parse()

	if *debug {
		log.SetLevel(log.DebugLevel)
	}
	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: captcha-solve [flags] image...")
		flag.PrintDefaults()
		os.Exit(2)
	}

	var solve func(ctx context.Context, path string) (string, error)
	if *server != "" {
		client := resty.New().SetHostURL(strings.TrimRight(*server, "/"))
		solve = func(ctx context.Context, path string) (string, error) {
			return solveRemote(ctx, client, path)
		}
	} else {
		s := solver.New(model.NewStore(model.Open(*modelLocation)))
		solve = func(ctx context.Context, path string) (string, error) {
			return solveLocal(ctx, s, path, *dumpDir)
		}
	}

	failed := false
	for _, path := range flag.Args() {
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		label, err := solve(ctx, path)
		cancel()
		if err != nil {
			log.Error("[Main] ", path, ": ", err.Error())
			failed = true
			continue
		}
		fmt.Printf("%s\t%s\n", path, label)
	}
	if failed {
		os.Exit(1)
	}
}

func solveLocal(ctx context.Context, s *solver.Solver, path, dumpDir string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	res, err := s.SolveBytes(ctx, data)
	if err != nil {
		return "", err
	}
	log.Debug("[Main] ", path, " solved in ", res.Elapsed, " (score ", res.Score, ")")

	if dumpDir != "" {
		img, err := solver.DecodeImage(data)
		if err != nil {
			return "", err
		}
		if err := dumpTiles(dumpDir, path, solver.Tiles(img)); err != nil {
			return "", err
		}
	}
	return res.Label, nil
}

// dumpTiles writes every tile as a grayscale PNG, ink black on white.
func dumpTiles(dir, path string, tiles [][]float32) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for i, tile := range tiles {
		img := imaging.New(segment.TileSize, segment.TileSize, color.White)
		pix := segment.Denormalize(tile)
		for j, v := range pix {
			img.Pix[4*j] = v
			img.Pix[4*j+1] = v
			img.Pix[4*j+2] = v
			img.Pix[4*j+3] = 255
		}
		out := filepath.Join(dir, fmt.Sprintf("%s_%d.png", base, i))
		if err := imaging.Save(img, out); err != nil {
			return errors.Wrapf(err, "couldn't save tile %s", out)
		}
	}
	return nil
}

// solveRemote uploads the image and polls for the result the way a
// browser client does.
func solveRemote(ctx context.Context, client *resty.Client, path string) (string, error) {
	resp, err := client.R().
		SetContext(ctx).
		SetFile("image", path).
		Post("/v1/solve")
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != 202 {
		return "", errors.Errorf("upload answered %s", resp.Status())
	}
	uuid := resp.Header().Get("Location")
	if uuid == "" {
		return "", errors.New("upload answered without Location")
	}

	for {
		var res datastructures.SolveMeResult
		resp, err := client.R().
			SetContext(ctx).
			SetResult(&res).
			Get("/v1/solve/" + uuid)
		if err != nil {
			return "", err
		}
		if resp.IsError() {
			return "", errors.Errorf("status request answered %s", resp.Status())
		}
		if res.Error != "" {
			return "", errors.New(res.Error)
		}
		if res.Label != "" {
			return res.Label, nil
		}

		select {
		case <-time.After(500 * time.Millisecond):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}
