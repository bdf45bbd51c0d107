package datastructures

type ModelInfo struct {
	Build     int32    `json:"build"`
	Created   string   `json:"created"`
	TrainedOn []string `json:"trained_on"`
	BasedOn   string   `json:"based_on"`
}

type SolveRequest struct {
	Uuid     string `json:"uuid"`
	Filename string `json:"filename"`
	Created  int64  `json:"created"`
	Session  string `json:"session,omitempty"`
}

type SolveResult struct {
	Uuid      string    `json:"uuid"`
	Session   string    `json:"session,omitempty"`
	Label     string    `json:"label"`
	Score     float32   `json:"score"`
	Error     string    `json:"error,omitempty"`
	ModelInfo ModelInfo `json:"model_info"`
}

// SolveMeResult is what GET /v1/solve/:uuid returns once a result exists.
type SolveMeResult struct {
	Label     string    `json:"label"`
	Score     float32   `json:"score"`
	Error     string    `json:"error,omitempty"`
	ModelInfo ModelInfo `json:"model_info"`
}

// ImageUpload is the JSON form of an image upload. Image may be plain
// base64 or a data URL.
type ImageUpload struct {
	Image   string `json:"image_base64"`
	Session string `json:"session,omitempty"`
}

type CaptureRequest struct {
	Image string `json:"image_base64"`
	Label string `json:"label"`
}

type StashRequest struct {
	Image      string `json:"image_base64"`
	Prediction string `json:"prediction"`
	OriginURL  string `json:"origin_url"`
}

type NavigateRequest struct {
	URL string `json:"url"`
}

type CaptureResult struct {
	Saved    bool   `json:"saved"`
	Filename string `json:"filename,omitempty"`
}
