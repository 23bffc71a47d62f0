package supervisor

import (
	"context"
	_ "embed"

	"gopkg.in/yaml.v3"

	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/store"
)

//go:embed seed_keywords.yaml
var seedKeywordsYAML []byte

type seedFile struct {
	Audio    []string `yaml:"audio"`
	Subtitle []string `yaml:"subtitle"`
	Meta     []string `yaml:"meta"`
}

// seedKeywords loads the built-in keyword list on first run only (spec
// §4.6: "seed default keyword lists on first start"), so an operator who
// has since deleted every keyword isn't force-fed the defaults again.
func (sv *Supervisor) seedKeywords(ctx context.Context) error {
	n, err := sv.Store.CountKeywords(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var seed seedFile
	if err := yaml.Unmarshal(seedKeywordsYAML, &seed); err != nil {
		return err
	}

	for _, kw := range seed.Audio {
		if err := sv.Store.AddKeyword(ctx, store.KeywordAudio, kw); err != nil {
			return err
		}
	}
	for _, kw := range seed.Subtitle {
		if err := sv.Store.AddKeyword(ctx, store.KeywordSubtitle, kw); err != nil {
			return err
		}
	}
	for _, kw := range seed.Meta {
		if err := sv.Store.AddKeyword(ctx, store.KeywordMeta, kw); err != nil {
			return err
		}
	}
	sv.Log.Info().Int("count", len(seed.Audio)+len(seed.Subtitle)+len(seed.Meta)).Msg("seeded default keyword list")
	return nil
}
