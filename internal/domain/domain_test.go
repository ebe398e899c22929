package domain

import "testing"

func TestParsePlatform(t *testing.T) {
	tests := []struct {
		in   string
		want Platform
	}{
		{"telegram", PlatformTelegram},
		{"discord", PlatformDiscord},
		{"qq", PlatformQQ},
		{"enterprise_wechat", PlatformEnterpriseWeChat},
		{"llonebot", PlatformLLOneBot},
		{"Telegram", PlatformTelegram},
		{"", PlatformUnknown},
		{"unknown", PlatformUnknown},
	}
	for _, tt := range tests {
		got, err := ParsePlatform(tt.in)
		if err != nil {
			t.Errorf("ParsePlatform(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParsePlatform(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}

	if _, err := ParsePlatform("matrix"); err == nil {
		t.Error("expected error for unrecognized platform")
	}
}

func TestParseCloseReason(t *testing.T) {
	for _, r := range []CloseReason{CloseGraceful, CloseSuperseded, CloseEvicted, CloseError} {
		if got := ParseCloseReason(string(r)); got != r {
			t.Errorf("ParseCloseReason(%q) = %s", r, got)
		}
	}
	if got := ParseCloseReason("???"); got != CloseError {
		t.Errorf("unrecognized reason should map to error, got %s", got)
	}
}

func TestCommandNormalized(t *testing.T) {
	cmd := BotCommand{CommandType: CommandSendMessage}.Normalized()
	if cmd.CommandID == "" {
		t.Error("expected generated command id")
	}
	if cmd.Timestamp == 0 {
		t.Error("expected timestamp to be filled")
	}

	fixed := BotCommand{CommandID: "c1", CommandType: CommandShutdown, Timestamp: 42}.Normalized()
	if fixed.CommandID != "c1" || fixed.Timestamp != 42 {
		t.Errorf("explicit fields must survive normalization: %+v", fixed)
	}
}
