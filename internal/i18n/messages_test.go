package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		locale string
		want   language.Tag
	}{
		{"", language.English},
		{"C", language.English},
		{"C.UTF-8", language.English},
		{"en_US.UTF-8", language.English},
		{"zh_CN.UTF-8", language.SimplifiedChinese},
		{"zh", language.SimplifiedChinese},
		{"zh-Hans", language.SimplifiedChinese},
		{"not a locale!", language.English},
	}
	for _, tt := range tests {
		t.Run(tt.locale, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.locale))
		})
	}
}

func TestPrinterTranslations(t *testing.T) {
	en := NewPrinter("en_US.UTF-8")
	zh := NewPrinter("zh_CN.UTF-8")

	assert.Equal(t, "✓ Image saved: out/generated_1.png\n", en.Sprintf(MsgSaved, "out/generated_1.png"))
	assert.Equal(t, "✓ 图片已保存: out/generated_1.png\n", zh.Sprintf(MsgSaved, "out/generated_1.png"))
	assert.Equal(t, "\n生成完成！共 2 张图片\n", zh.Sprintf(MsgDone, 2))
	assert.Equal(t, "Task submitted, ID: t-1\n", en.Sprintf(MsgSubmitted, "t-1"))
}

func TestEveryMessageHasChinese(t *testing.T) {
	for _, key := range []string{
		MsgGenerating, MsgPrompt, MsgSize, MsgCount, MsgSubmitted, MsgWaiting,
		MsgCompleted, MsgSaved, MsgDone, MsgError, MsgMissingKey, MsgMissingKeyTip, MsgPartial,
	} {
		_, ok := zhHans[key]
		assert.True(t, ok, "missing translation for %q", key)
	}
}
