package helper

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knights-analytics/hugot"
)

// PrepareModel downloads an ONNX model from the HuggingFace hub if it is not
// already present and returns the local model path. The model directory can be
// overridden with RETRIEVER_MODELS_DIR (defaults to ./models).
func PrepareModel(modelName string, onnxFilePath string) (string, error) {
	modelDir := os.Getenv("RETRIEVER_MODELS_DIR")
	if modelDir == "" {
		modelDir = "./models"
	}
	modelPath := filepath.Join(modelDir, strings.ReplaceAll(modelName, "/", "_"))

	// Check if model exists, if not download it
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		if err := os.MkdirAll(modelDir, 0755); err != nil {
			return "", fmt.Errorf("failed to create model directory: %w", err)
		}
		downloadOptions := hugot.NewDownloadOptions()
		downloadOptions.OnnxFilePath = onnxFilePath
		downloadedPath, err := hugot.DownloadModel(modelName, modelDir, downloadOptions)
		if err != nil {
			return "", fmt.Errorf("failed to download model: %w", err)
		}
		modelPath = downloadedPath
	}

	return modelPath, nil
}
