// Package api exposes the solver over HTTP. Uploads are queued for the
// worker and answered with 202 and a Location header; clients poll the
// location for the label.
package api

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/getsentry/raven-go"
	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/Sparsh-ui/captcha-solver/datastructures"
	"github.com/Sparsh-ui/captcha-solver/internal/labeling"
	"github.com/Sparsh-ui/captcha-solver/internal/solver"
	"github.com/Sparsh-ui/captcha-solver/internal/stash"
)

type Queue interface {
	Push(req datastructures.SolveRequest) error
}

type Results interface {
	Get(uuid string) (*datastructures.SolveResult, bool, error)
}

type Solver interface {
	SolveBytes(ctx context.Context, data []byte) (*solver.Result, error)
}

type Config struct {
	Queue      Queue
	Results    Results
	UploadsDir string
	// Solver enables POST /v1/solve/sync when set.
	Solver Solver
	// Stash and Saver enable the session and capture routes when set.
	Stash *stash.Stash
	Saver *labeling.Saver
}

type Server struct {
	cfg Config
}

func New(cfg Config) *Server {
	return &Server{cfg: cfg}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Requested-With, X-PINGOTHER, X-File-Name, Cache-Control")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Location")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatusJSON(http.StatusOK, struct{}{})
			return
		}
		c.Next()
	}
}

func internalError(c *gin.Context, msg string, err error) {
	log.Debug("[API] ", msg, ": ", err.Error())
	raven.CaptureError(err, map[string]string{"component": "api", "route": c.FullPath()})
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg + " - please try again later"})
}

func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), cors())

	router.POST("/v1/solve", s.postSolve)
	router.GET("/v1/solve/:uuid", s.getSolve)
	if s.cfg.Solver != nil {
		router.POST("/v1/solve/sync", s.postSolveSync)
	}
	if s.cfg.Saver != nil {
		router.POST("/v1/captures", s.postCapture)
	}
	if s.cfg.Stash != nil {
		router.PUT("/v1/sessions/:session/stash", s.putStash)
		router.DELETE("/v1/sessions/:session", s.deleteSession)
		if s.cfg.Saver != nil {
			router.POST("/v1/sessions/:session/navigate", s.postNavigate)
		}
	}
	return router
}

// readUpload takes the image from a multipart "image" field or from a JSON
// body carrying base64 or a data URL.
func readUpload(c *gin.Context) (data []byte, session string, err error) {
	if c.ContentType() == gin.MIMEJSON {
		var upload datastructures.ImageUpload
		if err := c.ShouldBindJSON(&upload); err != nil {
			return nil, "", err
		}
		if upload.Image == "" {
			return nil, "", errors.New("image_base64 is empty")
		}
		return []byte(upload.Image), upload.Session, nil
	}

	header, err := c.FormFile("image")
	if err != nil {
		return nil, "", err
	}
	f, err := header.Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	data, err = io.ReadAll(f)
	return data, c.PostForm("session"), err
}

func (s *Server) postSolve(c *gin.Context) {
	data, session, err := readUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Picture is missing"})
		return
	}

	id, err := uuid.NewV4()
	if err != nil {
		internalError(c, "Couldn't accept request", err)
		return
	}
	filename := filepath.Join(s.cfg.UploadsDir, id.String())
	if err := os.WriteFile(filename, data, 0644); err != nil {
		internalError(c, "Couldn't accept request", err)
		return
	}

	// add a solve request to the redis queue
	req := datastructures.SolveRequest{
		Uuid:     id.String(),
		Filename: filename,
		Created:  time.Now().Unix(),
		Session:  session,
	}
	if err := s.cfg.Queue.Push(req); err != nil {
		os.Remove(filename)
		internalError(c, "Couldn't accept request", err)
		return
	}

	c.Writer.Header().Set("Location", id.String())
	c.JSON(http.StatusAccepted, gin.H{})
}

func (s *Server) getSolve(c *gin.Context) {
	res, ok, err := s.cfg.Results.Get(c.Param("uuid"))
	if err != nil {
		internalError(c, "Couldn't get status of request", err)
		return
	}
	if !ok {
		// either the uuid is wrong or processing isn't finished;
		// at this point we don't care for the reason.
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, datastructures.SolveMeResult{
		Label:     res.Label,
		Score:     res.Score,
		Error:     res.Error,
		ModelInfo: res.ModelInfo,
	})
}

func (s *Server) postSolveSync(c *gin.Context) {
	data, _, err := readUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Picture is missing"})
		return
	}

	res, err := s.cfg.Solver.SolveBytes(c.Request.Context(), data)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, datastructures.SolveMeResult{
			Label:     res.Label,
			Score:     res.Score,
			ModelInfo: res.ModelInfo,
		})
	case errors.Is(err, solver.ErrImageDecode):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, solver.ErrNoCharacters):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, solver.ErrModelUnavailable):
		raven.CaptureError(err, map[string]string{"component": "api"})
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		internalError(c, "Couldn't solve", err)
	}
}

func (s *Server) postCapture(c *gin.Context) {
	var req datastructures.CaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Image == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Picture is missing"})
		return
	}

	var path string
	var err error
	if req.Label == "" {
		path, err = s.cfg.Saver.SaveUnlabeled([]byte(req.Image))
	} else {
		path, err = s.cfg.Saver.SaveLabeled([]byte(req.Image), req.Label)
	}
	if err != nil {
		log.Debug("[API] Couldn't save capture: ", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, datastructures.CaptureResult{Saved: true, Filename: filepath.Base(path)})
}

func (s *Server) putStash(c *gin.Context) {
	var req datastructures.StashRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Image == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Picture is missing"})
		return
	}

	session := c.Param("session")
	s.cfg.Stash.Put(session, stash.Entry{
		Image:      []byte(req.Image),
		Prediction: labeling.SanitizeFilename(req.Prediction),
		OriginURL:  req.OriginURL,
	})
	log.Debug("[API] Stashed CAPTCHA for session ", session, ": ", req.Prediction)
	c.JSON(http.StatusOK, gin.H{"status": "stashed"})
}

// postNavigate saves the stashed capture of a session once it leaves the
// page the CAPTCHA was solved on.
func (s *Server) postNavigate(c *gin.Context) {
	var req datastructures.NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is missing"})
		return
	}

	session := c.Param("session")
	entry, ok := s.cfg.Stash.Navigate(session, req.URL)
	if !ok {
		c.JSON(http.StatusOK, datastructures.CaptureResult{})
		return
	}

	log.Debug("[API] Navigation detected for session ", session, ", saving stashed CAPTCHA")
	path, err := s.cfg.Saver.SavePrediction(entry.Image, entry.Prediction, entry.Timestamp)
	if err != nil {
		internalError(c, "Couldn't save capture", err)
		return
	}
	c.JSON(http.StatusOK, datastructures.CaptureResult{Saved: true, Filename: filepath.Base(path)})
}

func (s *Server) deleteSession(c *gin.Context) {
	s.cfg.Stash.Remove(c.Param("session"))
	c.Status(http.StatusNoContent)
}
