package ragsync_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/akowalczyk/ragsync"
)

func TestNormalizeCaptionText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "collapses whitespace",
			in:   "  A   circuit\nboard  ",
			want: "A circuit board",
		},
		{
			name: "strips a single-word opener",
			in:   "Sure, a red car parked outside a garage",
			want: "a red car parked outside a garage",
		},
		{
			name: "strips stacked openers",
			in:   "OK, here is: a red car parked outside a garage",
			want: "a red car parked outside a garage",
		},
		{
			name: "strips chinese courtesy opener",
			in:   "好的，一辆红色汽车停在车库外",
			want: "一辆红色汽车停在车库外",
		},
		{
			name: "trims boundary punctuation",
			in:   "- a wiring diagram。",
			want: "a wiring diagram",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, ragsync.NormalizeCaptionText(tt.in))
		})
	}
}

func TestIsBadCaption(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want bool
	}{
		{name: "too short", in: "ok", want: true},
		{name: "generic english placeholder", in: "Image", want: true},
		{name: "generic chinese placeholder", in: "图片", want: true},
		{name: "english refusal", in: "Sorry, I cannot describe this image", want: true},
		{name: "chinese refusal", in: "抱歉，我无法识别", want: true},
		{name: "upload prompt response", in: "请上传图片以便我描述", want: true},
		{name: "ai disclaimer", in: "As an AI I do not have vision", want: true},
		{name: "spanish refusal", in: "Lo siento, no puedo ver", want: true},
		{name: "real caption", in: "A block diagram of the measurement setup", want: false},
		{name: "real chinese caption", in: "测量装置的方框图", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, ragsync.IsBadCaption(tt.in))
		})
	}
}

func TestFallbackTitle(t *testing.T) {
	t.Parallel()

	t.Run("empty caption yields a generic title", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, "Image", ragsync.FallbackTitle(""))
	})

	t.Run("short caption is used verbatim", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, "A red car", ragsync.FallbackTitle("A red car"))
	})

	t.Run("first sentence wins when it fits", func(t *testing.T) {
		t.Parallel()

		got := ragsync.FallbackTitle("A diagram of the system. It shows every module in detail.")
		assert.Equal(t, "A diagram of the system", got)
	})

	t.Run("first clause wins when no sentence fits", func(t *testing.T) {
		t.Parallel()

		got := ragsync.FallbackTitle("An oscilloscope trace, captured at fifty megahertz with averaging enabled")
		assert.Equal(t, "An oscilloscope trace", got)
	})

	t.Run("falls back to a fixed-length prefix", func(t *testing.T) {
		t.Parallel()

		long := strings.Repeat("x", 50)
		got := ragsync.FallbackTitle(long)
		assert.Equal(t, strings.Repeat("x", 20), got)
	})
}
