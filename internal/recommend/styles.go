package recommend

import (
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Style shapes the sommelier's voice in the communication stage.
type Style struct {
	Name  string `yaml:"name"`
	Voice string `yaml:"voice"` // one-line persona for the prompt
	Intro string `yaml:"intro"` // greeting line for the opening phase
}

// StyleSet maps style names to their prompt material. Venues pick a style
// by name; unknown names fall back to professional.
type StyleSet struct {
	Styles map[string]Style `yaml:"styles"`
}

// defaultStyles covers the four built-in personas so the engine works
// without a styles file.
func defaultStyles() *StyleSet {
	return &StyleSet{Styles: map[string]Style{
		"professional": {
			Name:  "professional",
			Voice: "a precise, courteous sommelier who keeps descriptions short and factual",
			Intro: "Good evening, and welcome. I will be your sommelier tonight.",
		},
		"friendly": {
			Name:  "friendly",
			Voice: "a warm, approachable sommelier who speaks plainly and avoids jargon",
			Intro: "Hi there! I'm here to help you find a bottle you'll love.",
		},
		"expert": {
			Name:  "expert",
			Voice: "a deeply knowledgeable sommelier who references terroir, vintage and producer when relevant",
			Intro: "Welcome. Let's find a wine worthy of your table.",
		},
		"playful": {
			Name:  "playful",
			Voice: "a lighthearted sommelier who keeps things fun without losing the facts",
			Intro: "Hello! Ready to find tonight's perfect pour?",
		},
	}}
}

// LoadStyles reads a style set from a YAML file, merging it over the
// built-in defaults. A missing file is not an error: the defaults serve.
func LoadStyles(path string) (*StyleSet, error) {
	set := defaultStyles()
	if path == "" {
		return set, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			zap.L().Debug("styles file not found, using defaults", zap.String("path", path))
			return set, nil
		}
		return nil, eris.Wrapf(err, "recommend: read styles %s", path)
	}

	var loaded StyleSet
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, eris.Wrap(err, "recommend: parse styles")
	}
	for name, s := range loaded.Styles {
		if s.Name == "" {
			s.Name = name
		}
		set.Styles[name] = s
	}
	return set, nil
}

// Get returns the named style, falling back to professional.
func (s *StyleSet) Get(name string) Style {
	if st, ok := s.Styles[name]; ok {
		return st
	}
	return s.Styles["professional"]
}
