// Package i18n holds the user-facing lines printed by the command, in English
// and Simplified Chinese.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message keys double as the English format strings.
const (
	MsgGenerating    = "Generating images...\n"
	MsgPrompt        = "Prompt: %s\n"
	MsgSize          = "Size: %s\n"
	MsgCount         = "Count: %d\n"
	MsgSubmitted     = "Task submitted, ID: %s\n"
	MsgWaiting       = "Waiting for generation to finish...\n"
	MsgCompleted     = "Task succeeded with %d image(s)\n"
	MsgSaved         = "✓ Image saved: %s\n"
	MsgDone          = "\nDone! %d image(s) generated\n"
	MsgError         = "Error: %v\n"
	MsgMissingKey    = "Error: please set the DASHSCOPE_API_KEY environment variable\n"
	MsgMissingKeyTip = "Example: export DASHSCOPE_API_KEY=your-api-key\n"
	MsgPartial       = "%d of %d image(s) were saved before the failure\n"
)

var zhHans = map[string]string{
	MsgGenerating:    "正在生成图片...\n",
	MsgPrompt:        "描述: %s\n",
	MsgSize:          "尺寸: %s\n",
	MsgCount:         "数量: %d\n",
	MsgSubmitted:     "任务已提交，ID: %s\n",
	MsgWaiting:       "等待生成完成...\n",
	MsgCompleted:     "任务完成，共 %d 张图片\n",
	MsgSaved:         "✓ 图片已保存: %s\n",
	MsgDone:          "\n生成完成！共 %d 张图片\n",
	MsgError:         "错误: %v\n",
	MsgMissingKey:    "错误: 请设置 DASHSCOPE_API_KEY 环境变量\n",
	MsgMissingKeyTip: "示例: export DASHSCOPE_API_KEY=your-api-key\n",
	MsgPartial:       "失败前已保存 %d/%d 张图片\n",
}

var (
	supported = []language.Tag{language.English, language.SimplifiedChinese}
	matcher   = language.NewMatcher(supported)
)

func init() {
	for key, msg := range zhHans {
		if err := message.SetString(language.SimplifiedChinese, key, msg); err != nil {
			panic(err)
		}
	}
}

// Match picks a supported language for a locale string such as
// "zh_CN.UTF-8", "zh-Hans" or "en_US". Unknown or empty locales get English.
func Match(locale string) language.Tag {
	locale = strings.TrimSpace(locale)
	if i := strings.IndexAny(locale, ".@"); i >= 0 {
		locale = locale[:i]
	}
	locale = strings.ReplaceAll(locale, "_", "-")
	if locale == "" || locale == "C" || locale == "POSIX" {
		return language.English
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return language.English
	}
	_, index, confidence := matcher.Match(tag)
	if confidence == language.No {
		return language.English
	}
	return supported[index]
}

// NewPrinter returns a printer for the best match of locale.
func NewPrinter(locale string) *message.Printer {
	return message.NewPrinter(Match(locale))
}
