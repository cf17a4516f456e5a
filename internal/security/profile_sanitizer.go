package security

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hitoshi/sociallogin/internal/model"
)

// maxDisplayNameRunes は保存する表示名の最大文字数。accounts.display_nameの桁数に合わせる。
const maxDisplayNameRunes = 255

// ProfileSanitizerService はIdPから受け取ったプロフィールを保存前に無害化する。
type ProfileSanitizerService interface {
	// SanitizeProfile は表示名からマークアップを除去し、
	// 安全でないアバターURLを空文字列に置き換えたコピーを返す。
	// Emailとプロバイダー名は変更しない。
	SanitizeProfile(profile model.RemoteProfile) model.RemoteProfile
}

// profileSanitizer はProfileSanitizerServiceの実装。
// bluemondayのStrictPolicyは全てのタグを除去し、テキストのみを残す。
type profileSanitizer struct {
	policy *bluemonday.Policy
	guard  SSRFGuardService
}

// NewProfileSanitizer はProfileSanitizerServiceの新しいインスタンスを生成する。
func NewProfileSanitizer(guard SSRFGuardService) *profileSanitizer {
	return &profileSanitizer{
		policy: bluemonday.StrictPolicy(),
		guard:  guard,
	}
}

// SanitizeProfile はプロフィールの無害化済みコピーを返す。
func (s *profileSanitizer) SanitizeProfile(profile model.RemoteProfile) model.RemoteProfile {
	profile.DisplayName = s.SanitizeDisplayName(profile.DisplayName)
	profile.AvatarURL = s.SanitizeAvatarURL(profile.AvatarURL)
	return profile
}

// SanitizeDisplayName はHTMLタグを除去し、前後の空白を取り除いた表示名を返す。
// bluemondayはテキストをエスケープして返すため、保存用にアンエスケープする。
func (s *profileSanitizer) SanitizeDisplayName(name string) string {
	cleaned := html.UnescapeString(s.policy.Sanitize(name))
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if utf8.RuneCountInString(cleaned) > maxDisplayNameRunes {
		cleaned = string([]rune(cleaned)[:maxDisplayNameRunes])
	}
	return cleaned
}

// SanitizeAvatarURL はhttpsかつ公開ホストを指すURLのみを返す。それ以外は空文字列。
func (s *profileSanitizer) SanitizeAvatarURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	if err := s.guard.ValidateURL(rawURL); err != nil {
		return ""
	}
	return rawURL
}
