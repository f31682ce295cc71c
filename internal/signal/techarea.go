package signal

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/transition-cli/internal/model"
)

// Classifier infers a technology-area label from free text.
type Classifier interface {
	Classify(text string) (label string, ok bool)
}

// TechArea scores technology-area alignment. The contract label is taken
// from the record when present, otherwise inferred through classifier.
// Missing labels on either side report SignalNoEvidence.
func TechArea(award *model.Award, contract *model.Contract, classifier Classifier, weight float64) model.TechAreaSignal {
	s := model.TechAreaSignal{
		Status:       model.SignalNoEvidence,
		AwardArea:    award.TechArea,
		ContractArea: contract.TechArea,
	}
	if s.ContractArea == "" && classifier != nil && contract.Description != "" {
		if label, ok := classifier.Classify(contract.Description); ok {
			s.ContractArea = label
			s.ContractInferred = true
		}
	}
	if s.AwardArea == "" || s.ContractArea == "" {
		return s
	}

	s.Status = model.SignalEvidence
	s.Aligned = strings.EqualFold(strings.TrimSpace(s.AwardArea), strings.TrimSpace(s.ContractArea))
	if s.Aligned {
		s.Contribution = weight
	}
	return s
}

// KeywordArea is one technology area and its trigger phrases.
type KeywordArea struct {
	Label    string   `yaml:"label"`
	Keywords []string `yaml:"keywords"`
}

type keywordFile struct {
	Areas []KeywordArea `yaml:"areas"`
}

// KeywordClassifier assigns the area whose keywords occur most often in
// the text. Ties go to the area listed first.
type KeywordClassifier struct {
	areas []KeywordArea
}

// NewKeywordClassifier builds a classifier from areas. Keywords go through
// the same tokenizer as the text they are matched against; keywords that
// tokenize to nothing are dropped.
func NewKeywordClassifier(areas []KeywordArea) *KeywordClassifier {
	out := make([]KeywordArea, 0, len(areas))
	for _, a := range areas {
		kw := make([]string, 0, len(a.Keywords))
		for _, k := range a.Keywords {
			if toks := Tokenize(k); len(toks) > 0 {
				kw = append(kw, " "+strings.Join(toks, " ")+" ")
			}
		}
		if a.Label == "" || len(kw) == 0 {
			continue
		}
		out = append(out, KeywordArea{Label: a.Label, Keywords: kw})
	}
	return &KeywordClassifier{areas: out}
}

// LoadKeywordClassifier reads a YAML file of the form:
//
//	areas:
//	  - label: Artificial Intelligence
//	    keywords: [machine learning, neural network]
func LoadKeywordClassifier(path string) (*KeywordClassifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "signal: read keywords file %s", path)
	}
	var f keywordFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "signal: parse keywords file %s", path)
	}
	if len(f.Areas) == 0 {
		return nil, eris.Errorf("signal: keywords file %s defines no areas", path)
	}
	return NewKeywordClassifier(f.Areas), nil
}

// Classify implements Classifier.
func (c *KeywordClassifier) Classify(text string) (string, bool) {
	text = " " + strings.Join(Tokenize(text), " ") + " "
	best, bestHits := "", 0
	for _, a := range c.areas {
		hits := 0
		for _, k := range a.Keywords {
			hits += strings.Count(text, k)
		}
		if hits > bestHits {
			best, bestHits = a.Label, hits
		}
	}
	return best, bestHits > 0
}
