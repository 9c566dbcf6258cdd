package i18n

import "embed"

// LocalesFS, locales/*.json çeviri dosyalarını binary'ye gömer.
// Kullanım: fs.Sub(LocalesFS, "locales").
//
//go:embed locales/*.json
var LocalesFS embed.FS
