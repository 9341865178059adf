package config

import (
	"io/fs"
	"time"
)

// -----------------------------------------------------------------------------
// Build Information
// -----------------------------------------------------------------------------

// Build variables are injected via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// UserAgent identifies the HTTP client.
var UserAgent = "Go-FriendCare/" + Version

// -----------------------------------------------------------------------------
// Application Constants
// -----------------------------------------------------------------------------

const (
	AppName           = "Go FriendCare"
	AppID             = "com.github.tartampluch.go-friendcare"
	KeyringService    = "com.github.tartampluch.go-friendcare"
	LocalhostBindAddr = "127.0.0.1"
	LogFileName       = "app.log"
	StoreFileName     = "friendcare.json"
)

// -----------------------------------------------------------------------------
// Exit Codes
// -----------------------------------------------------------------------------

const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
)

// -----------------------------------------------------------------------------
// System & File Permissions
// -----------------------------------------------------------------------------

const (
	// FilePermUserRW represents -rw------- (Read/Write for owner only).
	FilePermUserRW fs.FileMode = 0600

	// DirPermUserRWX represents drwx------ (Read/Write/Exec for owner only).
	DirPermUserRWX fs.FileMode = 0700

	// ChannelBufferSize defines the standard buffer size for internal signaling channels.
	ChannelBufferSize = 1

	// SelectionBufferSize bounds how many resolved friends wait for the UI layer.
	SelectionBufferSize = 8
)

// -----------------------------------------------------------------------------
// CLI Flags & Descriptions
// -----------------------------------------------------------------------------

const (
	FlagVersion      = "version"
	FlagDebug        = "debug"
	FlagImport       = "import"
	FlagDescVersion  = "Show application version and exit"
	FlagDescDebug    = "Enable debug logging to stdout"
	FlagDescImport   = "Import friends from a .vcf file or http(s) URL after login"
	MsgVersionOutput = "%s version %s (%s/%s)\n"
)

// -----------------------------------------------------------------------------
// Preferences (fyne.Preferences keys)
// -----------------------------------------------------------------------------

const (
	PrefBackendURL        = "backend_url"
	PrefServerPort        = "feed_port"
	PrefLanguage          = "language"
	PrefKakaoClientID     = "kakao_client_id"
	PrefKakaoAuthURL      = "kakao_auth_url"
	PrefKakaoTokenURL     = "kakao_token_url"
	PrefKakaoTokenInfoURL = "kakao_token_info_url"
	PrefAppleClientID     = "apple_client_id"
	PrefAppleAuthURL      = "apple_auth_url"
	PrefAppleTokenURL     = "apple_token_url"
	PrefMigrated          = "migrated"
	PrefAgreedTermsPrefix = "agreed_terms_"
	PrefDidSeeOnboarding  = "did_see_onboarding"
	PrefLastPushToken     = "last_push_token"
	PrefDeviceToken       = "device_token"
	PrefNotifRequested    = "notification_permission_requested"
	PrefNotifGranted      = "notification_permission_granted"
	PrefLastRun           = "last_run_version"
	PrefSyncInterval      = "sync_interval_min"
)

// DefaultSyncMin is the friend list refresh period when no preference is stored.
const DefaultSyncMin = 60

// SupportedLanguages defines the list of available UI languages (ISO 639-1).
var SupportedLanguages = []string{"en", "ko"}

// DefaultLanguage is used when no language preference is stored.
const DefaultLanguage = "en"

// -----------------------------------------------------------------------------
// Token Store (keyring account names)
// -----------------------------------------------------------------------------

const (
	TokenClassKakao  = "kakao"
	TokenClassApple  = "apple"
	TokenClassServer = "server"

	TokenSuffixAccess  = ".access"
	TokenSuffixRefresh = ".refresh"
)

// -----------------------------------------------------------------------------
// Identity Providers
// -----------------------------------------------------------------------------

const (
	ProviderKakao = "KAKAO"
	ProviderApple = "APPLE"

	DefaultKakaoAuthURL      = "https://kauth.kakao.com/oauth/authorize"
	DefaultKakaoTokenURL     = "https://kauth.kakao.com/oauth/token"
	DefaultKakaoTokenInfoURL = "https://kapi.kakao.com/v1/user/access_token_info"
	DefaultAppleAuthURL      = "https://appleid.apple.com/auth/authorize"
	DefaultAppleTokenURL     = "https://appleid.apple.com/auth/token"

	OAuthCallbackPath  = "/callback"
	OAuthParamCode     = "code"
	OAuthParamState    = "state"
	OAuthParamError    = "error"
	OAuthExtraIDToken  = "id_token"
	OAuthScopeOpenID   = "openid"
	OAuthScopeName     = "name"
	OAuthStateBytes    = 16
	HTTPMsgSignedIn    = "Signed in. You can close this window."
	HTTPMsgSignInError = "Sign-in failed. You can close this window."
)

// -----------------------------------------------------------------------------
// Backend REST API
// -----------------------------------------------------------------------------

const (
	DefaultBackendURL = "https://api.friendcare.app"

	PathMemberMe        = "/member/me"
	PathAuthSocial      = "/auth/social"
	PathAuthRenew       = "/auth/renew"
	PathMemberMigration = "/member/migration"
	PathMemberWithdraw  = "/member/withdraw"
	PathMemberPushToken = "/member/push-token"
	PathFriendList      = "/friend/list"
	PathFriendInit      = "/friend/init"
	PathFriendCheckFmt  = "/friend/%s/check"

	// WithdrawReasonDefault is sent when the user gives no reason for leaving.
	WithdrawReasonDefault = "OTHER"

	AuthScheme = "Bearer "
)

// -----------------------------------------------------------------------------
// Session & Scheduling Policy
// -----------------------------------------------------------------------------

const (
	// MaxAutoLoginRetries bounds how many times auto-login restarts after a token refresh.
	MaxAutoLoginRetries = 1

	// MigrationDelay postpones the one-time migration check after a session is established.
	MigrationDelay = 2 * time.Second

	// ReminderHour and ReminderMinute are the fixed time of day for every trigger kind.
	ReminderHour   = 9
	ReminderMinute = 0

	// ReminderWeekday is the fixed weekday used by weekly cadences.
	ReminderWeekday = time.Monday

	// BiweeklyDays is the distance of the one-shot trigger that stands in for a biweekly cadence.
	BiweeklyDays = 14

	// DeliveryInterval is how often the notification center checks for due triggers.
	DeliveryInterval = 30 * time.Second

	// StoreSaveDelay debounces writes of the offline store.
	StoreSaveDelay = 500 * time.Millisecond

	TriggerSuffixBirthday    = "-birthday"
	TriggerSuffixAnniversary = "-anniversary"

	PayloadKeyFriendID   = "friend_id"
	PayloadKeyReminderID = "reminder_id"
	PayloadKeyKind       = "kind"
)

// -----------------------------------------------------------------------------
// Translation Keys (I18n)
// -----------------------------------------------------------------------------

const (
	TKeyNotifRegularTitle     = "notif_regular_title"
	TKeyNotifRegularBody      = "notif_regular_body" // Requires Name
	TKeyNotifBirthdayTitle    = "notif_birthday_title"
	TKeyNotifBirthdayBody     = "notif_birthday_body" // Requires Name
	TKeyNotifAnniversaryTitle = "notif_anniversary_title"
	TKeyNotifAnniversaryBody  = "notif_anniversary_body" // Requires Name, Title
	TKeyMenuSync              = "menu_sync"
	TKeyMenuLogout            = "menu_logout"
	TKeyMenuCheckIn           = "menu_check_in" // Requires Name
	TKeyMenuCheckInList       = "menu_check_in_list"
	TKeyTrayStatus            = "tray_status"   // Requires Count > 0
	TKeyTrayStatusZero        = "tray_status_zero"
	TKeyTrayLoggedOut         = "tray_logged_out"
	TKeyTrayTerms             = "tray_terms"
	TKeySignInTitle           = "signin_title"
	TKeySignInBody            = "signin_body"
	TKeyMenuLoginKakao        = "menu_login_kakao"
	TKeyMenuLoginApple        = "menu_login_apple"
	TKeyMenuAgreeTerms        = "menu_agree_terms"
	TKeyMenuFeed              = "menu_feed"
	TKeyMenuWithdraw          = "menu_withdraw"
	TKeyNotifImported         = "notif_imported" // Requires Count
	TKeyNotifError            = "notif_error"
)

// -----------------------------------------------------------------------------
// UI Fallbacks (used when localization fails)
// -----------------------------------------------------------------------------

const (
	FallbackTrayLabel   = "Go FriendCare"
	FallbackTrayError   = "Sync error"
	FallbackTrayDefault = "%d friends to check in with"
	TitleStartupError   = "Startup error"
	MsgPortBusy         = "Port %s is unavailable. The reminder feed is disabled."
)

// -----------------------------------------------------------------------------
// Data Formats & vCard
// -----------------------------------------------------------------------------

const (
	VCardBDAY        = "BDAY"
	VCardANNIVERSARY = "ANNIVERSARY"
	VCardFN          = "FN"
	VCardTEL         = "TEL"
	VCardNOTE        = "NOTE"
	VCardPHOTO       = "PHOTO"
	VCardCATEGORIES  = "CATEGORIES"
	VCardUID         = "UID"

	DateFormatFullDash  = "2006-01-02"
	DateFormatFullBasic = "20060102"
	DateFormatRFC3339   = time.RFC3339
	DateFormatFullT     = "2006-01-02T15:04:05Z"
	DateFormatNoYearD   = "--01-02"
	DateFormatNoYearB   = "--0102"
	DefaultLeapYear     = 2000 // Leap year fallback for dates like --02-29

	FallbackName = "Unknown"
)

// -----------------------------------------------------------------------------
// Standards: iCalendar
// -----------------------------------------------------------------------------

const (
	ICalVersion   = "2.0"
	ICalProdid    = "-//Go FriendCare//Reminders//EN"
	ICalCalName   = "Check-ins"
	ICalMethod    = "PUBLISH"
	ICalScale     = "GREGORIAN"
	ICalComponent = "VALARM"
	ICalAction    = "DISPLAY"
	ICalDomain    = "friendcare"

	ContactIDPrefix = "friendcare:contact:"

	PropUID         = "UID"
	PropSummary     = "SUMMARY"
	PropDTStart     = "DTSTART"
	PropDTStamp     = "DTSTAMP"
	PropRefresh     = "REFRESH-INTERVAL"
	PropAction      = "ACTION"
	PropDescription = "DESCRIPTION"
	PropTrigger     = "TRIGGER"
	PropVersion     = "VERSION"
	PropProdid      = "PRODID"
	PropXWRCalName  = "X-WR-CALNAME"
	PropCalScale    = "CALSCALE"
	PropMethod      = "METHOD"

	ICalAlarmAtStart   = "PT0M"
	ICalFloatingFormat = "20060102T150405"
	FormatUID          = "%s@%s"
	DefaultICalRefresh = 1 * time.Hour

	StubVCalendar = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:" + ICalProdid + "\r\nEND:VCALENDAR\r\n"
)

// -----------------------------------------------------------------------------
// Network & Timeouts
// -----------------------------------------------------------------------------

const (
	DefaultPort         = "18081"
	HTTPTimeout         = 30 * time.Second
	SignInTimeout       = 5 * time.Minute
	ShutdownTimeout     = 5 * time.Second
	ServerReadTimeout   = 10 * time.Second
	ServerWriteTimeout  = 30 * time.Second
	ServerIdleTimeout   = 60 * time.Second
	RetryAfterSeconds   = "10"
	AllowedMethods      = "GET, HEAD"
	MaxHTTPResponseSize = 16 * 1024 * 1024 // 16MB
	SchemeHTTP          = "http"
	SchemeHTTPS         = "https"
	RouteCalendar       = "/reminders.ics"
	RouteReminders      = "/reminders"
	AddrSeparator       = ":"
)

// -----------------------------------------------------------------------------
// HTTP Headers & MIME Types
// -----------------------------------------------------------------------------

const (
	HeaderAuthorization   = "Authorization"
	HeaderAccept          = "Accept"
	HeaderContentType     = "Content-Type"
	HeaderCacheControl    = "Cache-Control"
	HeaderETag            = "ETag"
	HeaderLastModified    = "Last-Modified"
	HeaderRetryAfter      = "Retry-After"
	HeaderAllow           = "Allow"
	HeaderXContentType    = "X-Content-Type-Options"
	HeaderUserAgent       = "User-Agent"
	HeaderIfNoneMatch     = "If-None-Match"
	HeaderIfModifiedSince = "If-Modified-Since"

	MimeJSON            = "application/json"
	MimeTextCalendar    = "text/calendar; charset=utf-8"
	MimeTextHTML        = "text/html; charset=utf-8"
	MimeNoSniff         = "nosniff"
	CacheControlPrivate = "private, no-cache"

	// FormatETag expects a string argument.
	FormatETag = `"%s"`
)

// -----------------------------------------------------------------------------
// Error Messages (Technical/Logs)
// -----------------------------------------------------------------------------

const (
	ErrMissingToken       = "required credential is missing"
	ErrInvalidRecurrence  = "recurrence rule cannot be scheduled"
	ErrResolution         = "notification does not map to a known friend"
	ErrPermissionDenied   = "notification permission denied"
	ErrInvalidToken       = "provider token is invalid or expired"
	ErrMissingAnchor      = "no presentation anchor for interactive sign-in"
	ErrNoRefreshToken     = "no provider refresh token stored"
	ErrNoIDToken          = "no id_token in provider token response"
	ErrStateMismatch      = "oauth state mismatch"
	ErrAuthDenied         = "provider denied authorization"
	ErrSignInTimeout      = "interactive sign-in timed out"
	ErrUnknownProvider    = "unknown identity provider"
	ErrTransport          = "backend request failed"
	ErrUnexpectedStatus   = "unexpected status"
	ErrDecode             = "failed to decode response"
	ErrEncode             = "failed to encode request"
	ErrInvalidSession     = "session requires access and refresh tokens"
	ErrInvalidPayload     = "notification payload is malformed"
	ErrUnknownKind        = "unknown trigger kind"
	ErrTokenSave          = "failed to persist token"
	ErrTokenRead          = "failed to read token"
	ErrTokenDelete        = "failed to delete token"
	ErrStoreLoad          = "failed to load offline store"
	ErrStoreSave          = "failed to save offline store"
	ErrVCardParse         = "failed to parse vCard stream"
	ErrICalEncode         = "failed to encode iCalendar data"
	ErrDateParse          = "unable to parse date"
	ErrLogFile            = "failed to open log file"
	ErrCacheDir           = "could not determine user cache dir"
	ErrCreateDir          = "could not create app cache dir"
	ErrAppFailed          = "application failed unexpectedly"
	ErrServerStartup      = "server startup failed"
	ErrServerShutdown     = "server shutdown failed"
	ErrPortRequired       = "server port is required"
	ErrWriteResp          = "failed to write response body"
	ErrLocalesAccess      = "failed to access embedded locales"
	ErrLocaleLoad         = "failed to load locale file"
	ErrTrayNotSupported   = "system tray not supported on this platform/driver"
	ErrSchedule           = "failed to schedule reminder"
	ErrMigration          = "migration failed"
	ErrProfileFetch       = "profile fetch failed"
	ErrFriendSync         = "friend sync failed"
	ErrCheckIn            = "check-in failed"
	ErrImport             = "contact import failed"
	ErrInvalidURL         = "invalid URL format"
	ErrProtocol           = "unsupported protocol scheme"
	ErrPushRegister       = "push token registration failed"
)

// -----------------------------------------------------------------------------
// HTTP Server Responses
// -----------------------------------------------------------------------------

const (
	HTTPMsgInitializing = "Reminders initializing, please try again shortly."
	HTTPMsgMethodNotAll = "Method Not Allowed"
)

// -----------------------------------------------------------------------------
// Log Messages
// -----------------------------------------------------------------------------

const (
	MsgAppStarting      = "Starting application"
	MsgAppStop          = "Application stopped gracefully"
	MsgCtxCancel        = "Context cancelled, shutting down UI"
	MsgLogWarning       = "Warning: %s at %s: %v\n"
	MsgStateChange      = "Session state changed"
	MsgAutoLoginStart   = "Attempting auto-login"
	MsgAutoLoginStep    = "Auto-login step finished"
	MsgAutoLoginRetry   = "Retrying auto-login after token refresh"
	MsgAutoLoginGiveUp  = "Auto-login retry budget exhausted"
	MsgLoggedIn         = "Session established"
	MsgLoggedOut        = "Session cleared"
	MsgWithdrawn        = "Account withdrawn"
	MsgMigrationSkip    = "Migration check skipped"
	MsgMigrationDone    = "Migration state persisted"
	MsgPushRegistered   = "Push token registered"
	MsgPushUnchanged    = "Push token unchanged, skipping registration"
	MsgTokenMissing     = "Token not found in keyring"
	MsgScheduled        = "Reminder trigger registered"
	MsgCancelled        = "Reminder triggers removed"
	MsgSkippedRule      = "Recurrence has no trigger, skipping"
	MsgPermRequested    = "Notification permission requested"
	MsgPermDenied       = "Notification permission denied, reminders disabled"
	MsgDelivered        = "Reminder delivered"
	MsgDeliveryPaused   = "Notification delivery paused"
	MsgDeliveryResumed  = "Notification delivery resumed"
	MsgWorkerStart      = "Background worker started"
	MsgWorkerStop       = "Worker stopping due to context cancellation"
	MsgResolved         = "Notification resolved to friend"
	MsgResolveFailed    = "Notification could not be resolved"
	MsgRechained        = "One-shot cadence re-scheduled"
	MsgSelectionDropped = "Selection channel full, dropping friend"
	MsgSyncReq          = "Friend sync requested"
	MsgSyncDone         = "Friend sync completed"
	MsgCheckedIn        = "Check-in recorded"
	MsgImported         = "Contacts imported"
	MsgSkippedCard      = "Skipping malformed vCard"
	MsgSkippedDate      = "Skipping invalid date format"
	MsgServerListen     = "HTTP server listening"
	MsgServerStop       = "Shutting down HTTP server..."
	MsgCacheUpdated     = "Calendar cache updated"
	MsgStoreSaved       = "Offline store saved"
	MsgLocaleSkip       = "Skipping non-locale file"
	MsgLocaleBadName    = "Skipping malformed locale filename"
	MsgLocaleLoaded     = "Locale loaded successfully"
	MsgTransMissing     = "Missing translation key"
	MsgRequest          = "Backend request"
	MsgSignInOpen       = "Opening provider sign-in page"
	MsgUpdateSync       = "Sync interval updated"
	MsgSelected         = "Friend selected from notification"
	MsgPrunedTriggers   = "Removed triggers of deleted friends"
	MsgOwnerChanged     = "Offline data belongs to another account, discarding"
	MsgDeviceToken      = "Generated device token"
	MsgFetchStart       = "Initiating vCard download"
	MsgFetchDone        = "vCards downloading"
)

// -----------------------------------------------------------------------------
// Structured Logging Keys (slog)
// -----------------------------------------------------------------------------

const (
	LogKeyComponent = "component"
	LogKeyError     = "error"
	LogKeyURL       = "url"
	LogKeyMethod    = "method"
	LogKeyStatus    = "status_code"
	LogKeyFile      = "file"
	LogKeyLang      = "lang"
	LogKeyKey       = "key"
	LogKeyPort      = "port"
	LogKeyState     = "state"
	LogKeyStep      = "step"
	LogKeyOutcome   = "outcome"
	LogKeyAttempt   = "attempt"
	LogKeyProvider  = "provider"
	LogKeyClass     = "token_class"
	LogKeyFriend    = "friend_id"
	LogKeyTrigger   = "trigger_id"
	LogKeyKind      = "kind"
	LogKeyRule      = "recurrence"
	LogKeyFireAt    = "fire_at"
	LogKeyInterval  = "interval"
	LogKeyCount     = "count"
	LogKeyMigrated  = "migrated"
	LogKeySizeBytes = "size_bytes"
	LogKeyETag      = "etag"
	LogKeyDuration  = "duration_ms"
	LogKeyManual    = "manual"
	LogKeyOld       = "old"
	LogKeyNew       = "new"

	LogKeyBuild   = "build"
	LogKeyApp     = "app"
	LogKeyVersion = "version"
	LogKeyGoVer   = "go_version"
	LogKeyEnv     = "env"
	LogKeyOS      = "os"
	LogKeyArch    = "arch"
	LogKeyPID     = "pid"
)

// -----------------------------------------------------------------------------
// Log Components
// -----------------------------------------------------------------------------

const (
	CompMain      = "main"
	CompApp       = "app"
	CompSession   = "session"
	CompTokens    = "tokenstore"
	CompBackend   = "backend"
	CompIdentity  = "identity"
	CompScheduler = "scheduler"
	CompCenter    = "notify"
	CompRouter    = "router"
	CompStore     = "store"
	CompServer    = "server"
	CompFriend    = "friend"
	CompI18n      = "i18n"
	CompWorker    = "worker"
	CompFetcher   = "fetcher"
)
