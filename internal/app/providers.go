package app

import (
	"fyne.io/fyne/v2"
	"github.com/tartampluch/go-friendcare/internal/config"
	"github.com/tartampluch/go-friendcare/internal/identity"
)

// Providers builds both identity providers from preferences. Endpoints default to the public ones;
// client ids have no default and must be configured.
func Providers(prefs fyne.Preferences) []identity.Provider {
	kakao := identity.NewKakaoProvider(identity.KakaoConfig{
		ClientID:     prefs.String(config.PrefKakaoClientID),
		AuthURL:      prefs.StringWithFallback(config.PrefKakaoAuthURL, config.DefaultKakaoAuthURL),
		TokenURL:     prefs.StringWithFallback(config.PrefKakaoTokenURL, config.DefaultKakaoTokenURL),
		TokenInfoURL: prefs.StringWithFallback(config.PrefKakaoTokenInfoURL, config.DefaultKakaoTokenInfoURL),
	})
	apple := identity.NewAppleProvider(identity.AppleConfig{
		ClientID: prefs.String(config.PrefAppleClientID),
		AuthURL:  prefs.StringWithFallback(config.PrefAppleAuthURL, config.DefaultAppleAuthURL),
		TokenURL: prefs.StringWithFallback(config.PrefAppleTokenURL, config.DefaultAppleTokenURL),
	})
	return []identity.Provider{kakao, apple}
}
