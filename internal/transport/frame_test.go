package transport

import "testing"

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		kind    frameKind
		channel string
	}{
		{"pong object", `{"type":"pong"}`, framePong, ""},
		{"bare pong", `pong`, framePong, ""},
		{"quoted pong", `"pong"`, framePong, ""},
		{"pong with whitespace", "  pong\n", framePong, ""},
		{"auth error type", `{"type":"auth_error"}`, frameAuthError, ""},
		{"auth error code", `{"code":401,"message":"expired"}`, frameAuthError, ""},
		{"auth error both", `{"type":"auth_error","code":401}`, frameAuthError, ""},
		{"channel field", `{"channel":"ticks:AAPL","price":190.2}`, frameChannel, "ticks:AAPL"},
		{"topic field", `{"topic":"news","headline":"x"}`, frameChannel, "news"},
		{"channel wins over topic", `{"channel":"a","topic":"b"}`, frameChannel, "a"},
		{"no routing key", `{"type":"hello"}`, frameOpaque, ""},
		{"malformed json", `{not json`, frameOpaque, ""},
		{"empty payload", ``, frameOpaque, ""},
		{"code not 401", `{"code":500,"channel":"a"}`, frameChannel, "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := parseFrame([]byte(tt.data))
			if f.kind != tt.kind {
				t.Errorf("kind = %d, want %d", f.kind, tt.kind)
			}
			if f.channel != tt.channel {
				t.Errorf("channel = %q, want %q", f.channel, tt.channel)
			}
		})
	}
}

func TestConnectURL(t *testing.T) {
	tests := []struct {
		base  string
		token string
		want  string
	}{
		{"wss://host/ws", "", "wss://host/ws"},
		{"wss://host/ws", "abc", "wss://host/ws?token=abc"},
		{"wss://host/ws?v=2", "abc", "wss://host/ws?v=2&token=abc"},
		{"wss://host/ws", "a b+c", "wss://host/ws?token=a+b%2Bc"},
	}

	for _, tt := range tests {
		if got := connectURL(tt.base, tt.token); got != tt.want {
			t.Errorf("connectURL(%q, %q) = %q, want %q", tt.base, tt.token, got, tt.want)
		}
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusIdle, "idle"},
		{StatusConnecting, "connecting"},
		{StatusOpen, "open"},
		{StatusClosed, "closed"},
		{StatusError, "error"},
		{Status(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}
