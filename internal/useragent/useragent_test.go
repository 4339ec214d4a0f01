package useragent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Attributes
	}{
		{
			name: "chrome on windows desktop",
			raw:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			want: Attributes{Browser: "Chrome", OS: "Windows", Device: "Desktop"},
		},
		{
			name: "safari on iphone",
			raw:  "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			want: Attributes{Browser: "Safari", OS: "iOS", Device: "Mobile"},
		},
		{
			name: "firefox on linux",
			raw:  "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
			want: Attributes{Browser: "Firefox", OS: "Linux", Device: "Desktop"},
		},
		{
			name: "googlebot",
			raw:  "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
			want: Attributes{Browser: "Googlebot", OS: "Other", Device: "Bot"},
		},
		{
			name: "empty header",
			raw:  "",
			want: Attributes{Browser: "Other", OS: "Other", Device: "Other"},
		},
		{
			name: "garbage header",
			raw:  "definitely-not-a-browser",
			want: Attributes{Browser: "Other", OS: "Other", Device: "Other"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.raw))
		})
	}
}
