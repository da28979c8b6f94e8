package jobqueue

import "github.com/dukex/flowprobe/pkg/models"

var availableModels = []models.AIModel{
	{ID: 2, Name: "Qwen/Qwen2.5-1.5B-Instruct"},
}

// Models lists the selectable verification models.
func Models() []models.AIModel {
	out := make([]models.AIModel, len(availableModels))
	copy(out, availableModels)

	return out
}

// ResolveModel returns the name of the model with id. Unknown or nil ids
// resolve to "" so the verifier uses its default model.
func ResolveModel(id *int) string {
	if id == nil {
		return ""
	}

	for _, m := range availableModels {
		if m.ID == *id {
			return m.Name
		}
	}

	return ""
}
