// Package i18n, server'ın ürettiği kullanıcıya dönük metinleri çevirir:
// bildirim başlıkları, Telegram bot yanıtları, ws rejection mesajları.
//
// Kullanım:
//
//	loc := i18n.NewLocalizer("id")
//	loc.TWithParams("notify.title", map[string]string{"username": "Azz"})
//	// → "Pesan baru dari Azz"
package i18n

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"sync"
)

// SupportedLanguages, desteklenen dil kodları.
var SupportedLanguages = []string{"en", "id"}

// DefaultLanguage, bilinmeyen dil ve eksik anahtar için fallback.
const DefaultLanguage = "en"

// translations, map[lang]map[key]value. Load'dan sonra sadece okunur.
var (
	translations map[string]map[string]string
	loadOnce     sync.Once
	loadErr      error
)

// Load, çeviri dosyalarını localesFS'ten bir kez yükler.
// Her dil için <lang>.json beklenir; nested anahtarlar "a.b" biçiminde düzleşir.
func Load(localesFS fs.FS) error {
	loadOnce.Do(func() {
		loaded := make(map[string]map[string]string, len(SupportedLanguages))

		for _, lang := range SupportedLanguages {
			fileName := lang + ".json"

			data, err := fs.ReadFile(localesFS, fileName)
			if err != nil {
				loadErr = fmt.Errorf("failed to read translation file %s: %w", fileName, err)
				return
			}

			var nested map[string]any
			if err := json.Unmarshal(data, &nested); err != nil {
				loadErr = fmt.Errorf("failed to parse translation file %s: %w", fileName, err)
				return
			}

			flat := make(map[string]string)
			flattenMap("", nested, flat)
			loaded[lang] = flat
		}

		translations = loaded
	})

	return loadErr
}

// LoadEmbedded, binary'ye gömülü locales/ dizinini yükler.
func LoadEmbedded() error {
	sub, err := fs.Sub(LocalesFS, "locales")
	if err != nil {
		return err
	}
	return Load(sub)
}

// Localizer, tek bir dile bağlı çevirmen.
type Localizer struct {
	lang string
}

// NewLocalizer, desteklenmeyen dil verilirse varsayılana düşer.
func NewLocalizer(lang string) *Localizer {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if !isSupported(lang) {
		lang = DefaultLanguage
	}
	return &Localizer{lang: lang}
}

// Lang, localizer'ın dil kodunu döner.
func (l *Localizer) Lang() string {
	return l.lang
}

// T, anahtarın çevirisini döner. Sırasıyla: kendi dili, İngilizce, anahtarın kendisi.
func (l *Localizer) T(key string) string {
	if msg, ok := translations[l.lang][key]; ok {
		return msg
	}
	if msg, ok := translations[DefaultLanguage][key]; ok {
		return msg
	}
	return key
}

// TWithParams, çevirideki {{param}} yer tutucularını doldurur.
func (l *Localizer) TWithParams(key string, params map[string]string) string {
	msg := l.T(key)
	for k, v := range params {
		msg = strings.ReplaceAll(msg, "{{"+k+"}}", v)
	}
	return msg
}

// DetectLanguage, Accept-Language header'ından ilk desteklenen dili seçer.
// "id-ID,id;q=0.9,en;q=0.8" → "id"
func DetectLanguage(acceptLanguage string) string {
	for _, part := range strings.Split(acceptLanguage, ",") {
		lang := strings.TrimSpace(strings.Split(part, ";")[0])
		lang = strings.ToLower(strings.Split(lang, "-")[0])
		if isSupported(lang) {
			return lang
		}
	}
	return DefaultLanguage
}

func isSupported(lang string) bool {
	return slices.Contains(SupportedLanguages, lang)
}

// flattenMap: {"notify": {"title": "x"}} → {"notify.title": "x"}
func flattenMap(prefix string, src map[string]any, dst map[string]string) {
	for k, v := range src {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}

		switch val := v.(type) {
		case string:
			dst[key] = val
		case map[string]any:
			flattenMap(key, val, dst)
		}
	}
}
