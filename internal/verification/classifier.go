package verification

import (
	"context"
	"fmt"
)

// Classifier sends media and an instruction to a multimodal model and returns
// the model's raw text reply.
type Classifier interface {
	Classify(ctx context.Context, image []byte, mimeType, category, instruction string) (string, error)
}

// Instruction is the fixed prompt asking the model for a verdict on category.
func Instruction(category string) string {
	return fmt.Sprintf(
		"Analyze this image to verify a civic report of type: %s. "+
			"Reply with a single JSON object with keys: is_relevant (boolean, whether the image shows this kind of issue), "+
			"severity (integer 1-10), description (one sentence), confidence (number 0.0-1.0).",
		category,
	)
}
