// Package locale loads the embedded translations and renders user-facing text.
package locale

import (
	"embed"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/tartampluch/go-friendcare/internal/config"
	"github.com/tartampluch/go-friendcare/internal/friend"
	"github.com/tartampluch/go-friendcare/internal/reminder"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Localizer translates message keys into the active language.
type Localizer struct {
	bundle  *i18n.Bundle
	matcher language.Matcher

	// Languages lists the language codes found in the embedded files.
	Languages []string

	mu  sync.RWMutex
	loc *i18n.Localizer
}

// New loads every embedded locale file and selects lang (or the closest match).
func New(lang string) *Localizer {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	l := &Localizer{bundle: bundle}

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		slog.Error(config.ErrLocalesAccess,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyError, err,
		)
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "active.") || !strings.HasSuffix(name, ".json") {
			slog.Debug(config.MsgLocaleSkip,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
			)
			continue
		}

		langCode := strings.TrimSuffix(strings.TrimPrefix(name, "active."), ".json")
		if langCode == "" {
			slog.Warn(config.MsgLocaleBadName,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
			)
			continue
		}

		if _, err := bundle.LoadMessageFileFS(localeFS, "locales/"+name); err != nil {
			slog.Error(config.ErrLocaleLoad,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
				config.LogKeyError, err,
			)
			continue
		}
		l.Languages = append(l.Languages, langCode)
		slog.Debug(config.MsgLocaleLoaded,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyLang, langCode,
		)
	}

	l.matcher = language.NewMatcher(bundle.LanguageTags())
	l.SetLanguage(lang)
	return l
}

// SetLanguage switches the active language. Regional variants such as "ko-KR"
// resolve to the closest loaded language; unknown values fall back to English.
func (l *Localizer) SetLanguage(lang string) {
	if lang == "" {
		lang = config.DefaultLanguage
	}
	tag, _ := language.MatchStrings(l.matcher, lang)
	base, _ := tag.Base()

	l.mu.Lock()
	l.loc = i18n.NewLocalizer(l.bundle, base.String(), config.DefaultLanguage)
	l.mu.Unlock()
}

// Msg translates key, returning the key itself when no translation exists.
func (l *Localizer) Msg(key string) string {
	return l.localize(&i18n.LocalizeConfig{MessageID: key})
}

// Format translates key with template data.
func (l *Localizer) Format(key string, data map[string]any) string {
	return l.localize(&i18n.LocalizeConfig{MessageID: key, TemplateData: data})
}

// Plural translates key choosing the plural form for count. Count is also available to the template.
func (l *Localizer) Plural(key string, count int) string {
	return l.localize(&i18n.LocalizeConfig{
		MessageID:    key,
		PluralCount:  count,
		TemplateData: map[string]any{"Count": count},
	})
}

// ReminderText renders the notification text of a trigger. It has the shape of reminder.TextFunc.
func (l *Localizer) ReminderText(kind reminder.Kind, f friend.Friend) (title, body string) {
	data := map[string]any{"Name": f.Name}

	switch kind {
	case reminder.KindBirthday:
		return l.Msg(config.TKeyNotifBirthdayTitle), l.Format(config.TKeyNotifBirthdayBody, data)
	case reminder.KindAnniversary:
		title = l.Msg(config.TKeyNotifAnniversaryTitle)
		data["Title"] = title
		if f.Anniversary != nil && f.Anniversary.Title != "" {
			data["Title"] = f.Anniversary.Title
		}
		return title, l.Format(config.TKeyNotifAnniversaryBody, data)
	default:
		return l.Msg(config.TKeyNotifRegularTitle), l.Format(config.TKeyNotifRegularBody, data)
	}
}

func (l *Localizer) localize(cfg *i18n.LocalizeConfig) string {
	l.mu.RLock()
	loc := l.loc
	l.mu.RUnlock()

	if loc == nil {
		return cfg.MessageID
	}
	msg, err := loc.Localize(cfg)
	if err != nil {
		slog.Debug(config.MsgTransMissing,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyKey, cfg.MessageID,
			config.LogKeyError, err,
		)
		return cfg.MessageID
	}
	return msg
}
