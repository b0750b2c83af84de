package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/lunaugust/plantracker/internal/kvcache"

	log "github.com/sirupsen/logrus"
)

const DefaultLanguage = "es"

var ErrUnsupportedLanguage = errors.New("unsupported language")

var supportedLanguages = map[string]bool{
	"es": true,
	"en": true,
}

// Service keeps per-scope UI preferences in the key-value cache. Currently
// that is just the plan language.
type Service struct {
	cache           *kvcache.Store
	defaultLanguage string
}

func NewService(cache *kvcache.Store, defaultLanguage string) *Service {
	if !supportedLanguages[defaultLanguage] {
		defaultLanguage = DefaultLanguage
	}
	return &Service{
		cache:           cache,
		defaultLanguage: defaultLanguage,
	}
}

// Language returns the persisted language for the scope, the configured
// default when nothing is stored or the read fails.
func (s *Service) Language(ctx context.Context, scope string) string {
	var language string
	if err := s.cache.GetJSON(ctx, kvcache.LanguageKey(scope), &language); err != nil {
		if !errors.Is(err, kvcache.ErrKeyNotFound) {
			log.Errorf("settings: get language [scope %s]: %s", scope, err)
		}
		return s.defaultLanguage
	}
	if !supportedLanguages[language] {
		return s.defaultLanguage
	}
	return language
}

func (s *Service) SetLanguage(ctx context.Context, scope, language string) error {
	if !supportedLanguages[language] {
		return fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
	}
	return s.cache.SetJSON(ctx, kvcache.LanguageKey(scope), language)
}
