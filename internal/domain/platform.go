package domain

import (
	"fmt"
	"strings"
)

// Platform identifies the chat platform a frontend bridges.
type Platform string

const (
	PlatformUnknown          Platform = ""
	PlatformQQ               Platform = "qq"
	PlatformEnterpriseWeChat Platform = "enterprise_wechat"
	PlatformTelegram         Platform = "telegram"
	PlatformDiscord          Platform = "discord"
	PlatformLLOneBot         Platform = "llonebot"
)

func (p Platform) String() string {
	if p == PlatformUnknown {
		return "unknown"
	}
	return string(p)
}

// ParsePlatform validates a wire platform name. The empty string is allowed
// and maps to PlatformUnknown; a heartbeat-first frontend has not declared
// its platform yet.
func ParsePlatform(s string) (Platform, error) {
	switch p := Platform(strings.ToLower(s)); p {
	case PlatformUnknown, Platform("unknown"):
		return PlatformUnknown, nil
	case PlatformQQ, PlatformEnterpriseWeChat,
		PlatformTelegram, PlatformDiscord, PlatformLLOneBot:
		return p, nil
	}
	return PlatformUnknown, fmt.Errorf("unknown platform %q", s)
}
