package signal

import "github.com/sells-group/transition-cli/internal/model"

// Text scores textual similarity between the award abstract and the
// contract description, scaled linearly into the weight.
func Text(abstract, description string, weight float64) model.TextSignal {
	if abstract == "" || description == "" {
		return model.TextSignal{Status: model.SignalNoEvidence}
	}
	sim := CosineSimilarity(abstract, description)
	return model.TextSignal{
		Status:       model.SignalEvidence,
		Similarity:   sim,
		Contribution: weight * sim,
	}
}
